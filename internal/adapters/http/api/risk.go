package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/flightrisk/internal/app"
)

const maxUnitLength = 256

// RiskDependencies defines the interface for risk reads.
type RiskDependencies interface {
	View(ctx context.Context, unit string) (View, error)
}

// RiskHandler handles risk view requests.
type RiskHandler struct {
	deps RiskDependencies
}

// NewRiskHandler creates a new risk handler.
func NewRiskHandler(deps RiskDependencies) *RiskHandler {
	return &RiskHandler{deps: deps}
}

// HandleGetRisk handles GET /risk?unit=<selector>. A missing unit selects
// every unit.
func (h *RiskHandler) HandleGetRisk(w http.ResponseWriter, r *http.Request) {
	const op = "risk.get"

	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	unit := r.URL.Query().Get("unit")
	if len(unit) > maxUnitLength {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	view, err := h.deps.View(r.Context(), unit)
	if err != nil {
		if errors.Is(err, service.ErrNotReady) {
			writeError(w, http.StatusServiceUnavailable, "not_ready", WrapKind(op, ErrNotReady, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
