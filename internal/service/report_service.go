package service

import (
	"context"
	"math"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/rs/zerolog"
)

// summaryBucketWidth splits the 0-100 score range into five histogram buckets.
const summaryBucketWidth = 20.0

// ReportService derives read-only statistics from stored reports.
type ReportService interface {
	GetReportSummary(ctx context.Context, reportID string) (*models.ReportSummary, error)
}

type reportService struct {
	coordinator ReportCoordinator
	settings    SettingsProvider
	logger      zerolog.Logger
}

func NewReportService(coordinator ReportCoordinator, settings SettingsProvider, logger zerolog.Logger) ReportService {
	return &reportService{
		coordinator: coordinator,
		settings:    settings,
		logger:      logger,
	}
}

func (s *reportService) GetReportSummary(ctx context.Context, reportID string) (*models.ReportSummary, error) {
	report, err := s.coordinator.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	similarities, err := s.coordinator.GetSimilarities(ctx, reportID, false)
	if err != nil {
		return nil, err
	}

	threshold := s.settings.Settings(ctx).SimilarityThreshold

	summary := &models.ReportSummary{
		ReportID:         report.ID,
		AssignmentID:     report.AssignmentID,
		Mode:             report.Mode,
		TotalSubmissions: report.TotalSubmissions,
		TotalPairs:       len(similarities),
		Threshold:        threshold,
		Distribution:     newDistribution(),
	}

	var sum float64
	for _, sim := range similarities {
		score := sim.SimilarityScore
		sum += score
		summary.MaxScore = math.Max(summary.MaxScore, score)
		if score >= threshold {
			summary.FlaggedPairs++
		}

		bucket := int(score / summaryBucketWidth)
		if bucket >= len(summary.Distribution) {
			bucket = len(summary.Distribution) - 1
		}
		if bucket < 0 {
			bucket = 0
		}
		summary.Distribution[bucket].Count++
	}

	if len(similarities) > 0 {
		summary.AverageScore = math.Round(sum/float64(len(similarities))*100) / 100
	}

	s.logger.Debug().
		Str("report_id", reportID).
		Int("pairs", summary.TotalPairs).
		Int("flagged", summary.FlaggedPairs).
		Msg("Report summary computed")

	return summary, nil
}

func newDistribution() []models.ScoreBucket {
	buckets := make([]models.ScoreBucket, 0, int(100/summaryBucketWidth))
	for from := 0.0; from < 100; from += summaryBucketWidth {
		buckets = append(buckets, models.ScoreBucket{From: from, To: from + summaryBucketWidth})
	}
	return buckets
}
