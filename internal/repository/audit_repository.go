package repository

import (
	"context"
	"database/sql"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/rs/zerolog"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

type auditRepository struct {
	*PostgresRepository
}

func NewAuditRepository(db *sql.DB, logger zerolog.Logger) AuditRepository {
	return &auditRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, actor_id, action, target_type, target_id, result, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Result,
		entry.Details,
		entry.CreatedAt,
	)

	return err
}
