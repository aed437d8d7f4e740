package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	snapshot, err := h.tasks.Snapshot(r.Context(), taskID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, snapshot)
}

// CancelTask only reaches tasks owned by this replica.
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	if err := h.tasks.Cancel(taskID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"status":  "cancelling",
	})
}
