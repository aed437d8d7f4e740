package service

import (
	"context"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditLogger records one entry per finished operation. It never fails the
// caller: store errors and panics are logged and dropped.
type AuditLogger interface {
	Log(ctx context.Context, actorID, action, targetType string, targetID *string, result string, details *string)
}

type auditLogger struct {
	repo    repository.AuditRepository
	timeout time.Duration
	logger  zerolog.Logger
}

func NewAuditLogger(repo repository.AuditRepository, logger zerolog.Logger) AuditLogger {
	return &auditLogger{
		repo:    repo,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (a *auditLogger) Log(ctx context.Context, actorID, action, targetType string, targetID *string, result string, details *string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Interface("panic", r).
				Str("action", action).
				Msg("Audit logger recovered from panic")
		}
	}()

	// A cancelled operation is still audited.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	entry := &models.AuditLog{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Result:     result,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}

	if err := a.repo.Create(writeCtx, entry); err != nil {
		a.logger.Error().
			Err(err).
			Str("actor_id", actorID).
			Str("action", action).
			Str("result", result).
			Msg("Failed to write audit log")
	}
}
