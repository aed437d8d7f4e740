package httpd

import (
	"net/http"
	"strconv"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) CompareSubmission(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignment_id")
	submissionID := chi.URLParam(r, "submission_id")
	if assignmentID == "" || submissionID == "" {
		writeError(w, http.StatusBadRequest, "Assignment ID and submission ID are required")
		return
	}

	var threshold *float64
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 100 {
			writeError(w, http.StatusBadRequest, "Threshold must be a number between 0 and 100")
			return
		}
		threshold = &v
	}

	matches, err := h.coordinator.CompareNewSubmission(r.Context(), assignmentID, submissionID, threshold)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, models.CompareResponse{
		SubmissionID: submissionID,
		AssignmentID: assignmentID,
		Threshold:    threshold,
		Matches:      matches,
	})
}
