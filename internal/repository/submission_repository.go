package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/rs/zerolog"
)

// SubmissionRepository reads submissions owned by the course system.
type SubmissionRepository interface {
	GetAllByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error)
	GetByID(ctx context.Context, id string) (*models.Submission, error)
}

type submissionRepository struct {
	*PostgresRepository
}

func NewSubmissionRepository(db *sql.DB, logger zerolog.Logger) SubmissionRepository {
	return &submissionRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const submissionColumns = `id, student_id, assignment_id, code_content, code_hash, submitted_at`

func (r *submissionRepository) GetAllByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE assignment_id = $1
		ORDER BY submitted_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var submissions []models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(
			&s.ID,
			&s.StudentID,
			&s.AssignmentID,
			&s.CodeContent,
			&s.CodeHash,
			&s.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}

	r.logger.Debug().
		Str("assignment_id", assignmentID).
		Int("count", len(submissions)).
		Msg("Loaded submissions")

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE id = $1
	`

	s := &models.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.StudentID,
		&s.AssignmentID,
		&s.CodeContent,
		&s.CodeHash,
		&s.SubmittedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s, nil
}
