package httpd

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service"
	"github.com/go-chi/chi/v5"
)

// GenerateReport schedules a generation and answers 202 with the task to poll.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignment_id")
	if assignmentID == "" {
		writeError(w, http.StatusBadRequest, "Assignment ID is required")
		return
	}

	var req models.GenerateReportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Mode == "" {
		req.Mode = models.ReportModeLatestOnly.String()
	}

	ctx := r.Context()
	task, err := h.tasks.Start(ctx, service.TaskRequest{
		AssignmentID: assignmentID,
		ExecutorID:   service.ActorFromContext(ctx),
		Mode:         models.ReportMode(req.Mode),
		StudentID:    strings.TrimSpace(req.StudentID),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusAccepted, models.GenerateReportResponse{
		TaskID:    task.ID(),
		StatusURL: "/api/v1/tasks/" + task.ID(),
	})
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignment_id")
	if assignmentID == "" {
		writeError(w, http.StatusBadRequest, "Assignment ID is required")
		return
	}

	reports, err := h.coordinator.ListReports(r.Context(), assignmentID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, reports)
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "report_id")
	if reportID == "" {
		writeError(w, http.StatusBadRequest, "Report ID is required")
		return
	}

	report, err := h.coordinator.GetReport(r.Context(), reportID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, report)
}

func (h *Handler) GetSimilarities(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "report_id")
	if reportID == "" {
		writeError(w, http.StatusBadRequest, "Report ID is required")
		return
	}

	onlyFlagged := false
	if flagged := getBoolQueryParam(r, "flagged"); flagged != nil {
		onlyFlagged = *flagged
	}

	similarities, err := h.coordinator.GetSimilarities(r.Context(), reportID, onlyFlagged)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, similarities)
}

func (h *Handler) GetReportSummary(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "report_id")
	if reportID == "" {
		writeError(w, http.StatusBadRequest, "Report ID is required")
		return
	}

	summary, err := h.reports.GetReportSummary(r.Context(), reportID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, summary)
}
