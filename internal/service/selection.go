package service

import (
	"sort"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
)

// LatestPerStudent keeps each student's most recent submission. Equal
// timestamps are broken by the lexicographically greatest ID. The result is
// ordered by student ID.
func LatestPerStudent(submissions []models.Submission) []models.Submission {
	latest := make(map[string]models.Submission)
	for _, s := range submissions {
		current, ok := latest[s.StudentID]
		if !ok || isNewer(s, current) {
			latest[s.StudentID] = s
		}
	}

	result := make([]models.Submission, 0, len(latest))
	for _, s := range latest {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StudentID < result[j].StudentID
	})

	return result
}

func isNewer(a, b models.Submission) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.After(b.SubmittedAt)
	}
	return a.ID > b.ID
}

func distinctStudents(submissions []models.Submission) int {
	students := make(map[string]struct{})
	for _, s := range submissions {
		students[s.StudentID] = struct{}{}
	}
	return len(students)
}

func differentStudents(a, b models.Submission) bool {
	return a.StudentID != b.StudentID
}
