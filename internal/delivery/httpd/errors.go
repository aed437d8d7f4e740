package httpd

import (
	"context"
	"errors"
	"net/http"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service"
)

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidMode), errors.Is(err, service.ErrStudentRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, service.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrGenerationInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInsufficientSubmissions), errors.Is(err, service.ErrNoComparisonTarget):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		h.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
