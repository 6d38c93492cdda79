package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/paideia-labs/paideia/internal/agents/models"
	"github.com/paideia-labs/paideia/pkg/httpext"
)

type progressResponse struct {
	RequestID string                 `json:"request_id"`
	Events    []models.ProgressEvent `json:"events"`
}

// HandleProgress replays every buffered progress event for the request.
// An expired or unknown channel yields an empty list; progress is
// best-effort telemetry and its absence is not an error.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["request_id"]
	if requestID == "" {
		httpext.JsonError(w, "request_id is required", http.StatusBadRequest)
		return
	}

	events, err := h.svc.Bus.ProgressEvents(r.Context(), requestID)
	if err != nil {
		httpext.JsonError(w, "progress unavailable", http.StatusServiceUnavailable)
		return
	}
	if events == nil {
		events = []models.ProgressEvent{}
	}

	httpext.JsonResponse(w, progressResponse{RequestID: requestID, Events: events}, http.StatusOK)
}
