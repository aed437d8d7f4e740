package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
)

func TestGenerateModes(t *testing.T) {
	tests := []struct {
		name           string
		mode           models.ReportMode
		studentID      string
		wantSubmission int
		wantPairs      int
	}{
		{"latest only", models.ReportModeLatestOnly, "", 3, 3},
		{"full history skips same-student pairs", models.ReportModeFullHistory, "", 4, 5},
		{"student target", models.ReportModeStudentTarget, "alice", 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(classroom(), Settings{SimilarityThreshold: 80}, 0)

			report, err := f.coordinator.Generate(context.Background(), tt.mode, GenerateRequest{
				AssignmentID: "hw1",
				ExecutorID:   "prof-1",
				StudentID:    tt.studentID,
			})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			if report.Status != models.ReportStatusCompleted.String() {
				t.Errorf("status = %s, want COMPLETED", report.Status)
			}
			if report.Mode != tt.mode.String() {
				t.Errorf("mode = %s, want %s", report.Mode, tt.mode)
			}
			if report.TotalSubmissions != tt.wantSubmission {
				t.Errorf("total submissions = %d, want %d", report.TotalSubmissions, tt.wantSubmission)
			}
			if report.TotalPairs != tt.wantPairs {
				t.Errorf("total pairs = %d, want %d", report.TotalPairs, tt.wantPairs)
			}
			if report.CompletedAt == nil {
				t.Error("completed_at is not set")
			}

			stored, err := f.coordinator.GetSimilarities(context.Background(), report.ID, false)
			if err != nil {
				t.Fatalf("GetSimilarities() error = %v", err)
			}
			if len(stored) != tt.wantPairs {
				t.Fatalf("stored %d similarities, want %d", len(stored), tt.wantPairs)
			}
			for _, s := range stored {
				if s.ReportID != report.ID {
					t.Errorf("similarity report_id = %s, want %s", s.ReportID, report.ID)
				}
				if s.Submission1ID == s.Submission2ID {
					t.Errorf("self pair stored: %s", s.Submission1ID)
				}
			}
		})
	}
}

func TestGenerateLatestOnlyUsesNewestSubmission(t *testing.T) {
	f := newFixture(classroom(), Settings{}, 0)

	report, err := f.coordinator.GenerateLatestOnly(context.Background(), GenerateRequest{AssignmentID: "hw1"})
	if err != nil {
		t.Fatalf("GenerateLatestOnly() error = %v", err)
	}

	sims, _ := f.coordinator.GetSimilarities(context.Background(), report.ID, false)
	for _, s := range sims {
		if s.Submission1ID == "a1" || s.Submission2ID == "a1" {
			t.Errorf("superseded submission a1 was compared: %+v", s)
		}
	}
	// bob and carol submitted identical code.
	if sims[0].Submission1ID != "b1" || sims[0].Submission2ID != "c1" || sims[0].SimilarityScore != 100 {
		t.Errorf("top pair = %s/%s %.2f, want b1/c1 100", sims[0].Submission1ID, sims[0].Submission2ID, sims[0].SimilarityScore)
	}
}

func TestGenerateForStudentKeepsTargetOnTheLeft(t *testing.T) {
	f := newFixture(classroom(), Settings{}, 0)

	report, err := f.coordinator.GenerateForStudent(context.Background(), GenerateRequest{
		AssignmentID: "hw1",
		StudentID:    "alice",
	})
	if err != nil {
		t.Fatalf("GenerateForStudent() error = %v", err)
	}

	sims, _ := f.coordinator.GetSimilarities(context.Background(), report.ID, false)
	for _, s := range sims {
		if s.Submission1ID != "a2" {
			t.Errorf("submission1 = %s, want a2", s.Submission1ID)
		}
	}
}

func TestGenerateRejections(t *testing.T) {
	tests := []struct {
		name        string
		submissions []models.Submission
		mode        models.ReportMode
		studentID   string
		wantErr     error
	}{
		{
			name:        "single student latest",
			submissions: []models.Submission{sub("a1", "alice", factorialCode, 0), sub("a2", "alice", factorialCode, 1)},
			mode:        models.ReportModeLatestOnly,
			wantErr:     ErrInsufficientSubmissions,
		},
		{
			name:        "single student history",
			submissions: []models.Submission{sub("a1", "alice", factorialCode, 0), sub("a2", "alice", factorialCode, 1)},
			mode:        models.ReportModeFullHistory,
			wantErr:     ErrInsufficientSubmissions,
		},
		{
			name:        "empty assignment",
			submissions: nil,
			mode:        models.ReportModeLatestOnly,
			wantErr:     ErrInsufficientSubmissions,
		},
		{
			name:        "student missing",
			submissions: classroom(),
			mode:        models.ReportModeStudentTarget,
			wantErr:     ErrStudentRequired,
		},
		{
			name:        "student without submission",
			submissions: classroom(),
			mode:        models.ReportModeStudentTarget,
			studentID:   "dave",
			wantErr:     ErrSubmissionNotFound,
		},
		{
			name:        "no peers",
			submissions: []models.Submission{sub("a1", "alice", factorialCode, 0)},
			mode:        models.ReportModeStudentTarget,
			studentID:   "alice",
			wantErr:     ErrNoComparisonTarget,
		},
		{
			name:        "unknown mode",
			submissions: classroom(),
			mode:        models.ReportMode("everything"),
			wantErr:     ErrInvalidMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.submissions, Settings{}, 0)

			_, err := f.coordinator.Generate(context.Background(), tt.mode, GenerateRequest{
				AssignmentID: "hw1",
				StudentID:    tt.studentID,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Generate() error = %v, want %v", err, tt.wantErr)
			}
			if n := f.reports.reportCount(); n != 0 {
				t.Errorf("%d reports stored, want none", n)
			}
		})
	}
}

func TestGenerateRollsBackOnStoreFailure(t *testing.T) {
	f := newFixture(classroom(), Settings{}, 0)
	f.reports.createSimilaritiesErr = errors.New("disk full")

	_, err := f.coordinator.GenerateLatestOnly(context.Background(), GenerateRequest{AssignmentID: "hw1", ExecutorID: "prof-1"})
	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("error = %v, want ErrPersistenceFailure", err)
	}
	if n := f.reports.reportCount(); n != 0 {
		t.Errorf("%d reports committed, want none", n)
	}
	if n := f.reports.similarityCount(); n != 0 {
		t.Errorf("%d similarities committed, want none", n)
	}

	entries := f.audit.all()
	if len(entries) != 1 || entries[0].Result != models.AuditResultFailure {
		t.Fatalf("audit entries = %+v, want one failure", entries)
	}
	if entries[0].ActorID != "prof-1" {
		t.Errorf("audit actor = %s, want prof-1", entries[0].ActorID)
	}
}

func TestGenerateLoadFailure(t *testing.T) {
	f := newFixture(nil, Settings{}, 0)
	f.submissions.err = errors.New("connection refused")

	_, err := f.coordinator.GenerateFullHistory(context.Background(), GenerateRequest{AssignmentID: "hw1"})
	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("error = %v, want ErrPersistenceFailure", err)
	}
}

func TestGenerateCancelled(t *testing.T) {
	f := newFixture(classroom(), Settings{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.coordinator.GenerateLatestOnly(ctx, GenerateRequest{AssignmentID: "hw1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrPersistenceFailure) {
		t.Errorf("cancellation reported as persistence failure: %v", err)
	}
	if n := f.reports.reportCount(); n != 0 {
		t.Errorf("%d reports committed, want none", n)
	}
}

func TestGenerateProgress(t *testing.T) {
	f := newFixture(classroom(), Settings{}, 1)

	var mu sync.Mutex
	var values []float64
	_, err := f.coordinator.GenerateFullHistory(context.Background(), GenerateRequest{
		AssignmentID: "hw1",
		Progress: func(p float64) {
			mu.Lock()
			values = append(values, p)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("GenerateFullHistory() error = %v", err)
	}

	if len(values) == 0 {
		t.Fatal("no progress reported")
	}
	if values[0] != progressCreated {
		t.Errorf("first progress = %v, want %v", values[0], progressCreated)
	}
	if last := values[len(values)-1]; last != progressDone {
		t.Errorf("last progress = %v, want 1.0", last)
	}
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			t.Fatalf("progress went backwards at %d: %v", i, values)
		}
	}

	// BatchSize 1 writes one row per store call.
	if f.reports.batches != 5 {
		t.Errorf("store calls = %d, want 5", f.reports.batches)
	}
}

func TestGenerateAudit(t *testing.T) {
	f := newFixture(classroom(), Settings{}, 0)

	report, err := f.coordinator.GenerateLatestOnly(context.Background(), GenerateRequest{AssignmentID: "hw1", ExecutorID: "prof-1"})
	if err != nil {
		t.Fatalf("GenerateLatestOnly() error = %v", err)
	}

	entries := f.audit.all()
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Action != models.AuditActionGenerateReport || entry.Result != models.AuditResultSuccess {
		t.Errorf("audit entry = %s/%s", entry.Action, entry.Result)
	}
	if entry.TargetID == nil || *entry.TargetID != report.ID {
		t.Errorf("audit target = %v, want %s", entry.TargetID, report.ID)
	}
	if entry.Details == nil {
		t.Error("audit details missing")
	}
}

func TestGetSimilaritiesOnlyFlagged(t *testing.T) {
	f := newFixture(classroom(), Settings{SimilarityThreshold: 90}, 0)

	report, err := f.coordinator.GenerateLatestOnly(context.Background(), GenerateRequest{AssignmentID: "hw1"})
	if err != nil {
		t.Fatalf("GenerateLatestOnly() error = %v", err)
	}

	flagged, err := f.coordinator.GetSimilarities(context.Background(), report.ID, true)
	if err != nil {
		t.Fatalf("GetSimilarities() error = %v", err)
	}
	if len(flagged) != 1 {
		t.Fatalf("got %d flagged pairs, want 1", len(flagged))
	}
	if flagged[0].SimilarityScore < 90 {
		t.Errorf("flagged score %.2f below threshold", flagged[0].SimilarityScore)
	}
}

func TestGetReportNotFound(t *testing.T) {
	f := newFixture(nil, Settings{}, 0)

	if _, err := f.coordinator.GetReport(context.Background(), "missing"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("GetReport() error = %v, want ErrReportNotFound", err)
	}
	if _, err := f.coordinator.GetSimilarities(context.Background(), "missing", false); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("GetSimilarities() error = %v, want ErrReportNotFound", err)
	}
}

func TestListReports(t *testing.T) {
	f := newFixture(classroom(), Settings{}, 0)

	for _, mode := range []models.ReportMode{models.ReportModeLatestOnly, models.ReportModeFullHistory} {
		if _, err := f.coordinator.Generate(context.Background(), mode, GenerateRequest{AssignmentID: "hw1"}); err != nil {
			t.Fatalf("Generate(%s) error = %v", mode, err)
		}
	}

	reports, err := f.coordinator.ListReports(context.Background(), "hw1")
	if err != nil {
		t.Fatalf("ListReports() error = %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("got %d reports, want 2", len(reports))
	}
}

func TestCompareNewSubmission(t *testing.T) {
	submissions := append(classroom(), sub("b0", "bob", greetingCode, 1))
	f := newFixture(submissions, Settings{}, 0)
	ctx := WithActor(context.Background(), "student-bob")

	matches, err := f.coordinator.CompareNewSubmission(ctx, "hw1", "b1", nil)
	if err != nil {
		t.Fatalf("CompareNewSubmission() error = %v", err)
	}

	// a1, a2 and c1; bob's own b0 is excluded.
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	for i, m := range matches {
		if m.StudentID == "bob" {
			t.Errorf("matched own submission %s", m.SubmissionID)
		}
		if i > 0 && m.SimilarityScore > matches[i-1].SimilarityScore {
			t.Errorf("matches not ordered by score: %+v", matches)
		}
	}
	if matches[0].SimilarityScore != 100 {
		t.Errorf("top score = %.2f, want 100", matches[0].SimilarityScore)
	}

	threshold := 99.0
	flagged, err := f.coordinator.CompareNewSubmission(ctx, "hw1", "b1", &threshold)
	if err != nil {
		t.Fatalf("CompareNewSubmission() error = %v", err)
	}
	// a1 and c1 are identical to b1.
	if len(flagged) != 2 {
		t.Errorf("got %d matches above threshold, want 2", len(flagged))
	}

	if f.reports.reportCount() != 0 {
		t.Error("comparison persisted a report")
	}

	entries := f.audit.all()
	if len(entries) != 2 || entries[0].ActorID != "student-bob" || entries[0].Action != models.AuditActionCompareNew {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestCompareNewSubmissionEdgeCases(t *testing.T) {
	f := newFixture([]models.Submission{sub("a1", "alice", factorialCode, 0)}, Settings{}, 0)

	matches, err := f.coordinator.CompareNewSubmission(context.Background(), "hw1", "a1", nil)
	if err != nil {
		t.Fatalf("CompareNewSubmission() error = %v", err)
	}
	if matches == nil || len(matches) != 0 {
		t.Errorf("matches = %v, want empty list", matches)
	}

	if _, err := f.coordinator.CompareNewSubmission(context.Background(), "hw1", "zzz", nil); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("unknown submission error = %v, want ErrSubmissionNotFound", err)
	}
	if _, err := f.coordinator.CompareNewSubmission(context.Background(), "hw2", "a1", nil); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("foreign assignment error = %v, want ErrSubmissionNotFound", err)
	}
}

func TestGenerateHighlightsOnlyFlaggedPairs(t *testing.T) {
	f := newFixture(classroom(), Settings{SimilarityThreshold: 90}, 0)

	report, err := f.coordinator.Generate(context.Background(), models.ReportModeLatestOnly, GenerateRequest{AssignmentID: "hw1"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	stored, err := f.coordinator.GetSimilarities(context.Background(), report.ID, false)
	if err != nil {
		t.Fatalf("GetSimilarities() error = %v", err)
	}
	for _, s := range stored {
		empty := string(s.HighlightData) == "[]"
		if s.SimilarityScore >= 90 && empty {
			t.Errorf("pair %s/%s scored %.2f but has no highlight", s.Submission1ID, s.Submission2ID, s.SimilarityScore)
		}
		if s.SimilarityScore < 90 && !empty {
			t.Errorf("pair %s/%s scored %.2f but has highlight %s", s.Submission1ID, s.Submission2ID, s.SimilarityScore, s.HighlightData)
		}
	}
}
