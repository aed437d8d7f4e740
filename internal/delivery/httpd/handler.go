package httpd

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PingFunc reports whether a backing store is reachable.
type PingFunc func(ctx context.Context) error

type PoolStats interface {
	GetActiveWorkers() int
	GetQueueLength() int
	GetStats() map[string]interface{}
}

type ConsumerStats interface {
	GetStats() models.ConsumerStats
}

// HealthDeps are optional; nil members are reported as absent.
type HealthDeps struct {
	Database PingFunc
	Redis    PingFunc
	Pool     PoolStats
	Consumer ConsumerStats
}

type Handler struct {
	coordinator service.ReportCoordinator
	reports     service.ReportService
	tasks       service.TaskManager
	health      HealthDeps
	logger      zerolog.Logger
	startTime   time.Time
}

func NewHandler(
	coordinator service.ReportCoordinator,
	reports service.ReportService,
	tasks service.TaskManager,
	health HealthDeps,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		coordinator: coordinator,
		reports:     reports,
		tasks:       tasks,
		health:      health,
		logger:      logger,
		startTime:   time.Now(),
	}
}

// RegisterRoutes mounts the API. middlewares guard /api/v1 only.
func (h *Handler) RegisterRoutes(router chi.Router, middlewares ...func(http.Handler) http.Handler) {
	// Health check
	router.Get("/health", h.HealthCheck)
	router.Get("/status", h.GetServiceStatus)

	// Versioned API
	router.Route("/api/v1", func(api chi.Router) {
		api.Use(middlewares...)

		api.Route("/assignments/{assignment_id}", func(r chi.Router) {
			r.Post("/reports", h.GenerateReport)
			r.Get("/reports", h.ListReports)
			r.Post("/submissions/{submission_id}/compare", h.CompareSubmission)
		})

		api.Route("/reports/{report_id}", func(r chi.Router) {
			r.Get("/", h.GetReport)
			r.Get("/similarities", h.GetSimilarities)
			r.Get("/summary", h.GetReportSummary)
		})

		api.Route("/tasks/{task_id}", func(r chi.Router) {
			r.Get("/", h.GetTask)
			r.Delete("/", h.CancelTask)
		})
	})
}

func getBoolQueryParam(r *http.Request, key string) *bool {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return nil
	}

	return &boolValue
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeData(w, http.StatusOK, data)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}
