package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/flightrisk/internal/app"
	"github.com/okian/flightrisk/internal/domain/model"
)

// AnalyzeDependencies defines the interface for re-analysis requests.
type AnalyzeDependencies interface {
	Trigger(ctx context.Context, reason string) (model.Trigger, error)
}

// AnalyzeHandler handles re-analysis requests.
type AnalyzeHandler struct {
	deps AnalyzeDependencies
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(deps AnalyzeDependencies) *AnalyzeHandler {
	return &AnalyzeHandler{deps: deps}
}

type acceptedResponse struct {
	Status    string `json:"status"`
	TriggerID string `json:"triggerId"`
}

// HandlePostAnalyze handles POST /analyze requests.
func (h *AnalyzeHandler) HandlePostAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "analyze.post"

	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	t, err := h.deps.Trigger(r.Context(), "api")
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", TriggerID: t.ID})
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}
