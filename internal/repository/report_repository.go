package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/rs/zerolog"
)

var ErrDuplicateSimilarity = errors.New("similarity pair already stored for report")

type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	Update(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	GetByAssignment(ctx context.Context, assignmentID string) ([]models.Report, error)

	CreateSimilarity(ctx context.Context, similarity *models.Similarity) error
	CreateSimilarities(ctx context.Context, similarities []models.Similarity) error
	// GetSimilaritiesByReport returns rows ordered by score, highest first.
	// A nil minScore returns every row.
	GetSimilaritiesByReport(ctx context.Context, reportID string, minScore *float64) ([]models.Similarity, error)

	// RunInTx runs fn against a repository bound to one transaction. The
	// transaction commits only if fn returns nil.
	RunInTx(ctx context.Context, fn func(tx ReportRepository) error) error
	Ping(ctx context.Context) error
}

type reportRepository struct {
	*PostgresRepository
	q querier
}

func NewReportRepository(db *sql.DB, logger zerolog.Logger) ReportRepository {
	return &reportRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
		q:                  db,
	}
}

// similarityBatchSize keeps a multi-row insert well under the Postgres limit
// of 65535 bind parameters.
const similarityBatchSize = 500

func (r *reportRepository) RunInTx(ctx context.Context, fn func(tx ReportRepository) error) error {
	if _, ok := r.q.(*sql.Tx); ok {
		return fn(r)
	}

	tx, err := r.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&reportRepository{PostgresRepository: r.PostgresRepository, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (
			id, assignment_id, executor_id, status, mode,
			total_submissions, total_pairs, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		report.ID,
		report.AssignmentID,
		report.ExecutorID,
		report.Status,
		report.Mode,
		report.TotalSubmissions,
		report.TotalPairs,
		report.CreatedAt,
		report.CompletedAt,
	)

	return err
}

func (r *reportRepository) Update(ctx context.Context, report *models.Report) error {
	query := `
		UPDATE reports
		SET status = $2, total_submissions = $3, total_pairs = $4, completed_at = $5
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		report.ID,
		report.Status,
		report.TotalSubmissions,
		report.TotalPairs,
		report.CompletedAt,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("report %s not found", report.ID)
	}

	return nil
}

const reportColumns = `id, assignment_id, executor_id, status, mode, total_submissions, total_pairs, created_at, completed_at`

func scanReport(row interface{ Scan(dest ...interface{}) error }, report *models.Report) error {
	var completedAt sql.NullTime
	if err := row.Scan(
		&report.ID,
		&report.AssignmentID,
		&report.ExecutorID,
		&report.Status,
		&report.Mode,
		&report.TotalSubmissions,
		&report.TotalPairs,
		&report.CreatedAt,
		&completedAt,
	); err != nil {
		return err
	}

	if completedAt.Valid {
		report.CompletedAt = &completedAt.Time
	}
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report := &models.Report{}
	err := scanReport(r.q.QueryRowContext(ctx, query, id), report)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return report, nil
}

func (r *reportRepository) GetByAssignment(ctx context.Context, assignmentID string) ([]models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE assignment_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.q.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		var report models.Report
		if err := scanReport(rows, &report); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

func (r *reportRepository) CreateSimilarity(ctx context.Context, similarity *models.Similarity) error {
	return r.CreateSimilarities(ctx, []models.Similarity{*similarity})
}

func (r *reportRepository) CreateSimilarities(ctx context.Context, similarities []models.Similarity) error {
	for start := 0; start < len(similarities); start += similarityBatchSize {
		end := min(start+similarityBatchSize, len(similarities))
		if err := r.insertSimilarities(ctx, similarities[start:end]); err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: %v", ErrDuplicateSimilarity, err)
			}
			return err
		}
	}

	r.logger.Debug().Int("count", len(similarities)).Msg("Similarities stored")
	return nil
}

func (r *reportRepository) insertSimilarities(ctx context.Context, batch []models.Similarity) error {
	const columns = 10

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO similarities (
			id, report_id, submission1_id, submission2_id, similarity_score,
			jaccard_score, lcs_score, highlight_data, ai_analysis, created_at
		) VALUES `)

	args := make([]interface{}, 0, len(batch)*columns)
	for i, s := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * columns
		sb.WriteString("(")
		for c := 1; c <= columns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+c)
		}
		sb.WriteString(")")

		highlight := string(s.HighlightData)
		if highlight == "" {
			highlight = "[]"
		}

		// jsonb is passed as text; pq would send []byte as bytea.
		args = append(args,
			s.ID,
			s.ReportID,
			s.Submission1ID,
			s.Submission2ID,
			s.SimilarityScore,
			s.JaccardScore,
			s.LCSScore,
			highlight,
			s.AIAnalysis,
			s.CreatedAt,
		)
	}

	_, err := r.q.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *reportRepository) GetSimilaritiesByReport(ctx context.Context, reportID string, minScore *float64) ([]models.Similarity, error) {
	query := `
		SELECT
			id, report_id, submission1_id, submission2_id, similarity_score,
			jaccard_score, lcs_score, highlight_data, ai_analysis, created_at
		FROM similarities
		WHERE report_id = $1
		  AND ($2::double precision IS NULL OR similarity_score >= $2)
		ORDER BY similarity_score DESC, submission1_id, submission2_id
	`

	rows, err := r.q.QueryContext(ctx, query, reportID, minScore)
	if err != nil {
		return nil, fmt.Errorf("failed to query similarities: %w", err)
	}
	defer rows.Close()

	similarities := []models.Similarity{}
	for rows.Next() {
		var s models.Similarity
		var highlight []byte
		var aiAnalysis sql.NullString

		if err := rows.Scan(
			&s.ID,
			&s.ReportID,
			&s.Submission1ID,
			&s.Submission2ID,
			&s.SimilarityScore,
			&s.JaccardScore,
			&s.LCSScore,
			&highlight,
			&aiAnalysis,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan similarity: %w", err)
		}

		s.HighlightData = highlight
		if aiAnalysis.Valid {
			s.AIAnalysis = &aiAnalysis.String
		}
		similarities = append(similarities, s)
	}

	return similarities, rows.Err()
}
