package service

import (
	"context"
	"strconv"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/repository"
	"github.com/rs/zerolog"
)

type Settings struct {
	// SimilarityThreshold is on the 0-100 score scale.
	SimilarityThreshold float64
	// FastCompareMode skips token normalization.
	FastCompareMode bool
}

type SettingsProvider interface {
	Settings(ctx context.Context) Settings
}

type settingsProvider struct {
	repo     repository.SettingsRepository
	defaults Settings
	logger   zerolog.Logger
}

// NewSettingsProvider reads app_settings on every call; a missing, invalid or
// unreadable value falls back to defaults.
func NewSettingsProvider(repo repository.SettingsRepository, defaults Settings, logger zerolog.Logger) SettingsProvider {
	return &settingsProvider{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
	}
}

func (p *settingsProvider) Settings(ctx context.Context) Settings {
	settings := p.defaults

	if raw, ok := p.lookup(ctx, repository.SettingSimilarityThreshold); ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 100 {
			p.logger.Warn().Str("value", raw).Msg("Ignoring invalid similarity_threshold setting")
		} else {
			settings.SimilarityThreshold = v
		}
	}

	if raw, ok := p.lookup(ctx, repository.SettingFastCompareMode); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			p.logger.Warn().Str("value", raw).Msg("Ignoring invalid fast_compare_mode setting")
		} else {
			settings.FastCompareMode = v
		}
	}

	return settings
}

func (p *settingsProvider) lookup(ctx context.Context, key string) (string, bool) {
	if p.repo == nil {
		return "", false
	}

	value, ok, err := p.repo.Get(ctx, key)
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("Failed to read setting, using default")
		return "", false
	}
	return value, ok
}

// StaticSettings always returns the same settings.
type StaticSettings Settings

func (s StaticSettings) Settings(context.Context) Settings {
	return Settings(s)
}
