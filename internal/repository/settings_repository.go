package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
)

const (
	SettingSimilarityThreshold = "similarity_threshold"
	SettingFastCompareMode     = "fast_compare_mode"
)

// SettingsRepository reads the key/value app_settings table maintained by the
// admin side of the course system.
type SettingsRepository interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
}

type settingsRepository struct {
	*PostgresRepository
}

func NewSettingsRepository(db *sql.DB, logger zerolog.Logger) SettingsRepository {
	return &settingsRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return value, true, nil
}
