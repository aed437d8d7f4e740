package httpd

import (
	"context"
	"net/http"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
)

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "plagiarism-service",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}

	writeJSON(w, http.StatusOK, response)
}

// GetServiceStatus pings the stores; it answers 503 when the database is down.
func (h *Handler) GetServiceStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := models.HealthCheckResponse{
		Status:       "healthy",
		Database:     ping(ctx, h.health.Database),
		Redis:        ping(ctx, h.health.Redis),
		RunningTasks: h.tasks.Running(),
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:    time.Now().UTC(),
	}
	if h.health.Pool != nil {
		status.ActiveWorkers = h.health.Pool.GetActiveWorkers()
		status.QueueLength = h.health.Pool.GetQueueLength()
		status.Pool = h.health.Pool.GetStats()
	}
	if h.health.Consumer != nil {
		consumer := h.health.Consumer.GetStats()
		status.Consumer = &consumer
	}

	code := http.StatusOK
	if !status.Database {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeData(w, code, status)
}

func ping(ctx context.Context, fn PingFunc) bool {
	return fn != nil && fn(ctx) == nil
}
