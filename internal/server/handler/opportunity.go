package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tmcalloway/spreadbot/internal/domain"
	"github.com/tmcalloway/spreadbot/internal/server/middleware"
)

// OpportunityHandler serves the latest computed opportunity and the
// execution history for a user.
type OpportunityHandler struct {
	opps       domain.OpportunityCache
	executions domain.ExecutionStore
	logger     *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(opps domain.OpportunityCache, executions domain.ExecutionStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opps:       opps,
		executions: executions,
		logger:     logger.With(slog.String("handler", "opportunity")),
	}
}

// Latest returns the most recent scan result for the caller. "scanned" is
// false when no recent cycle has evaluated this user at all; a null
// opportunity with scanned=true means the last cycle found nothing
// actionable.
// GET /api/opportunity
func (h *OpportunityHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	opp, err := h.opps.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{
				"scanned":     false,
				"opportunity": nil,
			})
			return
		}
		h.logger.Error("opportunity lookup failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scanned":     true,
		"opportunity": opp,
	})
}

// Executions returns the caller's execution history, newest first.
// GET /api/executions
func (h *OpportunityHandler) Executions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	results, err := h.executions.ListByUser(r.Context(), userID, queryLimit(r))
	if err != nil {
		h.logger.Error("list executions failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}
	if results == nil {
		results = []domain.ExecutionResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": results})
}
