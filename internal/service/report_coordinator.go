package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service/analyzer"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type GenerateRequest struct {
	AssignmentID string
	ExecutorID   string
	// StudentID is the target of student_target generation.
	StudentID string
	Progress  ProgressFunc
}

type ReportCoordinator interface {
	// Generate dispatches on mode.
	Generate(ctx context.Context, mode models.ReportMode, req GenerateRequest) (*models.Report, error)
	GenerateLatestOnly(ctx context.Context, req GenerateRequest) (*models.Report, error)
	GenerateFullHistory(ctx context.Context, req GenerateRequest) (*models.Report, error)
	GenerateForStudent(ctx context.Context, req GenerateRequest) (*models.Report, error)
	// CompareNewSubmission scores one submission against the other students'
	// submissions of its assignment without persisting anything. A nil
	// threshold returns every match.
	CompareNewSubmission(ctx context.Context, assignmentID, submissionID string, threshold *float64) ([]models.ComparisonMatch, error)

	GetReport(ctx context.Context, reportID string) (*models.Report, error)
	GetSimilarities(ctx context.Context, reportID string, onlyFlagged bool) ([]models.Similarity, error)
	ListReports(ctx context.Context, assignmentID string) ([]models.Report, error)
}

type CoordinatorConfig struct {
	// BatchSize is the number of similarity rows written per store call.
	BatchSize int
}

type reportCoordinator struct {
	submissionRepo repository.SubmissionRepository
	reportRepo     repository.ReportRepository
	engine         analyzer.PlagiarismEngine
	settings       SettingsProvider
	audit          AuditLogger
	logger         zerolog.Logger
	config         CoordinatorConfig
}

func NewReportCoordinator(
	submissionRepo repository.SubmissionRepository,
	reportRepo repository.ReportRepository,
	engine analyzer.PlagiarismEngine,
	settings SettingsProvider,
	audit AuditLogger,
	logger zerolog.Logger,
	config CoordinatorConfig,
) ReportCoordinator {
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}

	return &reportCoordinator{
		submissionRepo: submissionRepo,
		reportRepo:     reportRepo,
		engine:         engine,
		settings:       settings,
		audit:          audit,
		logger:         logger,
		config:         config,
	}
}

// detectFunc runs one engine pass over an already selected submission set.
type detectFunc func(ctx context.Context, opts analyzer.CompareOptions, progress analyzer.ProgressFunc) ([]models.Similarity, error)

type generationPlan struct {
	mode        models.ReportMode
	submissions int
	detect      detectFunc
}

func (c *reportCoordinator) Generate(ctx context.Context, mode models.ReportMode, req GenerateRequest) (*models.Report, error) {
	switch mode {
	case models.ReportModeLatestOnly:
		return c.GenerateLatestOnly(ctx, req)
	case models.ReportModeFullHistory:
		return c.GenerateFullHistory(ctx, req)
	case models.ReportModeStudentTarget:
		return c.GenerateForStudent(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

func (c *reportCoordinator) GenerateLatestOnly(ctx context.Context, req GenerateRequest) (*models.Report, error) {
	mode := models.ReportModeLatestOnly

	submissions, err := c.loadSubmissions(ctx, req.AssignmentID)
	if err != nil {
		return nil, c.rejected(ctx, req, mode, err)
	}

	latest := LatestPerStudent(submissions)
	if len(latest) < 2 {
		return nil, c.rejected(ctx, req, mode, ErrInsufficientSubmissions)
	}

	return c.generate(ctx, req, generationPlan{
		mode:        mode,
		submissions: len(latest),
		detect: func(ctx context.Context, opts analyzer.CompareOptions, progress analyzer.ProgressFunc) ([]models.Similarity, error) {
			return c.engine.DetectPlagiarism(ctx, latest, opts, progress)
		},
	})
}

// GenerateFullHistory compares every historical submission through the
// candidate selector. Pairs of the same student are skipped.
func (c *reportCoordinator) GenerateFullHistory(ctx context.Context, req GenerateRequest) (*models.Report, error) {
	mode := models.ReportModeFullHistory

	submissions, err := c.loadSubmissions(ctx, req.AssignmentID)
	if err != nil {
		return nil, c.rejected(ctx, req, mode, err)
	}

	if distinctStudents(submissions) < 2 {
		return nil, c.rejected(ctx, req, mode, ErrInsufficientSubmissions)
	}

	return c.generate(ctx, req, generationPlan{
		mode:        mode,
		submissions: len(submissions),
		detect: func(ctx context.Context, opts analyzer.CompareOptions, progress analyzer.ProgressFunc) ([]models.Similarity, error) {
			opts.Filter = differentStudents
			return c.engine.DetectPlagiarismFast(ctx, submissions, opts, progress)
		},
	})
}

// GenerateForStudent compares the student's latest submission with the latest
// submission of every other student.
func (c *reportCoordinator) GenerateForStudent(ctx context.Context, req GenerateRequest) (*models.Report, error) {
	mode := models.ReportModeStudentTarget

	if req.StudentID == "" {
		return nil, c.rejected(ctx, req, mode, ErrStudentRequired)
	}

	submissions, err := c.loadSubmissions(ctx, req.AssignmentID)
	if err != nil {
		return nil, c.rejected(ctx, req, mode, err)
	}

	var target *models.Submission
	others := make([]models.Submission, 0)
	for _, s := range LatestPerStudent(submissions) {
		if s.StudentID == req.StudentID {
			target = &s
			continue
		}
		others = append(others, s)
	}

	if target == nil {
		return nil, c.rejected(ctx, req, mode, fmt.Errorf("%w: student %s has no submission", ErrSubmissionNotFound, req.StudentID))
	}
	if len(others) == 0 {
		return nil, c.rejected(ctx, req, mode, ErrNoComparisonTarget)
	}

	return c.generate(ctx, req, generationPlan{
		mode:        mode,
		submissions: len(others) + 1,
		detect: func(ctx context.Context, opts analyzer.CompareOptions, progress analyzer.ProgressFunc) ([]models.Similarity, error) {
			return c.engine.CompareOne(ctx, *target, others, opts, progress)
		},
	})
}

// generate runs the report lifecycle in one transaction: the PENDING row,
// scoring, the similarity batch and the COMPLETED flip commit together or not
// at all.
func (c *reportCoordinator) generate(ctx context.Context, req GenerateRequest, plan generationPlan) (*models.Report, error) {
	startTime := time.Now()
	progress := newProgressReporter(req.Progress)
	settings := c.settings.Settings(ctx)
	opts := analyzer.CompareOptions{
		RawTokens:          settings.FastCompareMode,
		HighlightThreshold: settings.SimilarityThreshold,
	}

	report := &models.Report{
		ID:               uuid.New().String(),
		AssignmentID:     req.AssignmentID,
		ExecutorID:       req.ExecutorID,
		Status:           models.ReportStatusPending.String(),
		Mode:             plan.mode.String(),
		TotalSubmissions: plan.submissions,
		CreatedAt:        startTime.UTC(),
	}

	c.logger.Info().
		Str("report_id", report.ID).
		Str("assignment_id", req.AssignmentID).
		Str("mode", report.Mode).
		Int("submissions", plan.submissions).
		Bool("fast_compare_mode", settings.FastCompareMode).
		Msg("Starting report generation")

	err := c.reportRepo.RunInTx(ctx, func(tx repository.ReportRepository) error {
		if err := tx.Create(ctx, report); err != nil {
			return fmt.Errorf("%w: create report: %w", ErrPersistenceFailure, err)
		}
		progress.Report(progressCreated)

		similarities, err := plan.detect(ctx, opts, progress.Stage(progressCreated, progressScored))
		if err != nil {
			return fmt.Errorf("detect plagiarism: %w", err)
		}
		progress.Report(progressScored)

		createdAt := time.Now().UTC()
		for i := range similarities {
			similarities[i].ID = uuid.New().String()
			similarities[i].ReportID = report.ID
			similarities[i].CreatedAt = createdAt
		}

		if err := c.persistSimilarities(ctx, tx, similarities, progress); err != nil {
			return err
		}

		completedAt := time.Now().UTC()
		report.Status = models.ReportStatusCompleted.String()
		report.TotalPairs = len(similarities)
		report.CompletedAt = &completedAt

		if err := tx.Update(ctx, report); err != nil {
			return fmt.Errorf("%w: complete report: %w", ErrPersistenceFailure, err)
		}
		return nil
	})

	if err != nil {
		if !errors.Is(err, ErrPersistenceFailure) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
		}

		c.logger.Error().
			Err(err).
			Str("report_id", report.ID).
			Str("assignment_id", req.AssignmentID).
			Str("mode", report.Mode).
			Msg("Report generation failed")

		c.audit.Log(ctx, req.ExecutorID, models.AuditActionGenerateReport, models.AuditTargetAssignment,
			&req.AssignmentID, models.AuditResultFailure, auditDetails(map[string]interface{}{
				"mode":  report.Mode,
				"error": err.Error(),
			}))
		return nil, err
	}

	progress.Report(progressDone)

	c.logger.Info().
		Str("report_id", report.ID).
		Str("assignment_id", req.AssignmentID).
		Str("mode", report.Mode).
		Int("total_pairs", report.TotalPairs).
		Dur("duration", time.Since(startTime)).
		Msg("Report generated")

	c.audit.Log(ctx, req.ExecutorID, models.AuditActionGenerateReport, models.AuditTargetReport,
		&report.ID, models.AuditResultSuccess, auditDetails(map[string]interface{}{
			"assignment_id":     req.AssignmentID,
			"mode":              report.Mode,
			"total_submissions": report.TotalSubmissions,
			"total_pairs":       report.TotalPairs,
			"duration_ms":       time.Since(startTime).Milliseconds(),
		}))

	return report, nil
}

func (c *reportCoordinator) persistSimilarities(ctx context.Context, tx repository.ReportRepository, similarities []models.Similarity, progress *progressReporter) error {
	total := len(similarities)
	stage := progress.Stage(progressScored, progressPersisted)

	for start := 0; start < total; start += c.config.BatchSize {
		end := min(start+c.config.BatchSize, total)
		if err := tx.CreateSimilarities(ctx, similarities[start:end]); err != nil {
			return fmt.Errorf("%w: store similarities: %w", ErrPersistenceFailure, err)
		}
		stage(end, total)
	}

	progress.Report(progressPersisted)
	return nil
}

// rejected audits a generation that failed before any report row existed.
func (c *reportCoordinator) rejected(ctx context.Context, req GenerateRequest, mode models.ReportMode, err error) error {
	c.logger.Warn().
		Err(err).
		Str("assignment_id", req.AssignmentID).
		Str("mode", mode.String()).
		Msg("Report generation rejected")

	c.audit.Log(ctx, req.ExecutorID, models.AuditActionGenerateReport, models.AuditTargetAssignment,
		&req.AssignmentID, models.AuditResultFailure, auditDetails(map[string]interface{}{
			"mode":  mode.String(),
			"error": err.Error(),
		}))

	return err
}

func (c *reportCoordinator) CompareNewSubmission(ctx context.Context, assignmentID, submissionID string, threshold *float64) ([]models.ComparisonMatch, error) {
	actor := ActorFromContext(ctx)

	matches, err := c.compareNew(ctx, assignmentID, submissionID, threshold)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("assignment_id", assignmentID).
			Str("submission_id", submissionID).
			Msg("Submission comparison failed")

		c.audit.Log(ctx, actor, models.AuditActionCompareNew, models.AuditTargetSubmission,
			&submissionID, models.AuditResultFailure, auditDetails(map[string]interface{}{
				"assignment_id": assignmentID,
				"error":         err.Error(),
			}))
		return nil, err
	}

	details := map[string]interface{}{
		"assignment_id": assignmentID,
		"matches":       len(matches),
	}
	if threshold != nil {
		details["threshold"] = *threshold
	}
	c.audit.Log(ctx, actor, models.AuditActionCompareNew, models.AuditTargetSubmission,
		&submissionID, models.AuditResultSuccess, auditDetails(details))

	return matches, nil
}

func (c *reportCoordinator) compareNew(ctx context.Context, assignmentID, submissionID string, threshold *float64) ([]models.ComparisonMatch, error) {
	target, err := c.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("%w: get submission: %w", ErrPersistenceFailure, err)
	}
	if target == nil || target.AssignmentID != assignmentID {
		return nil, ErrSubmissionNotFound
	}

	submissions, err := c.loadSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Submission, len(submissions))
	others := make([]models.Submission, 0, len(submissions))
	for _, s := range submissions {
		if s.ID == target.ID || s.StudentID == target.StudentID {
			continue
		}
		byID[s.ID] = s
		others = append(others, s)
	}

	matches := []models.ComparisonMatch{}
	if len(others) == 0 {
		return matches, nil
	}

	settings := c.settings.Settings(ctx)
	opts := analyzer.CompareOptions{
		RawTokens:          settings.FastCompareMode,
		HighlightThreshold: settings.SimilarityThreshold,
	}
	if threshold != nil {
		opts.HighlightThreshold = *threshold
	}
	similarities, err := c.engine.CompareOne(ctx, *target, others, opts, nil)
	if err != nil {
		return nil, fmt.Errorf("compare submission: %w", err)
	}

	for _, s := range similarities {
		if threshold != nil && s.SimilarityScore < *threshold {
			continue
		}
		matches = append(matches, models.ComparisonMatch{
			SubmissionID:    s.Submission2ID,
			StudentID:       byID[s.Submission2ID].StudentID,
			SimilarityScore: s.SimilarityScore,
			JaccardScore:    s.JaccardScore,
			LCSScore:        s.LCSScore,
			HighlightData:   s.HighlightData,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SimilarityScore > matches[j].SimilarityScore
	})

	return matches, nil
}

func (c *reportCoordinator) GetReport(ctx context.Context, reportID string) (*models.Report, error) {
	report, err := c.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("%w: get report: %w", ErrPersistenceFailure, err)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// GetSimilarities lists a report's pairs. onlyFlagged keeps scores at or above
// the configured similarity threshold.
func (c *reportCoordinator) GetSimilarities(ctx context.Context, reportID string, onlyFlagged bool) ([]models.Similarity, error) {
	if _, err := c.GetReport(ctx, reportID); err != nil {
		return nil, err
	}

	var minScore *float64
	if onlyFlagged {
		threshold := c.settings.Settings(ctx).SimilarityThreshold
		minScore = &threshold
	}

	similarities, err := c.reportRepo.GetSimilaritiesByReport(ctx, reportID, minScore)
	if err != nil {
		return nil, fmt.Errorf("%w: get similarities: %w", ErrPersistenceFailure, err)
	}
	return similarities, nil
}

func (c *reportCoordinator) ListReports(ctx context.Context, assignmentID string) ([]models.Report, error) {
	reports, err := c.reportRepo.GetByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: list reports: %w", ErrPersistenceFailure, err)
	}
	return reports, nil
}

func (c *reportCoordinator) loadSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	submissions, err := c.submissionRepo.GetAllByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: load submissions: %w", ErrPersistenceFailure, err)
	}
	return submissions, nil
}

func auditDetails(fields map[string]interface{}) *string {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}
