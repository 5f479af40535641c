package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tmcalloway/spreadbot/internal/domain"
	"github.com/tmcalloway/spreadbot/internal/server/middleware"
)

// PreferenceHandler reads and updates a user's trading settings.
type PreferenceHandler struct {
	prefs  domain.PreferenceStore
	logger *slog.Logger
}

// NewPreferenceHandler creates a PreferenceHandler.
func NewPreferenceHandler(prefs domain.PreferenceStore, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		prefs:  prefs,
		logger: logger.With(slog.String("handler", "preference")),
	}
}

// updatePreferenceRequest uses pointers so a PUT can change any subset of
// fields without clobbering the rest.
type updatePreferenceRequest struct {
	NotionalAmount   *decimal.Decimal `json:"notional_amount"`
	AutoTradeEnabled *bool            `json:"auto_trade_enabled"`
	ProfitThreshold  *decimal.Decimal `json:"profit_threshold"`
}

// Get returns the caller's preference, defaults included.
// GET /api/preferences
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	pref, err := h.prefs.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get preference failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

// Update applies partial changes to the caller's preference.
// PUT /api/preferences
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req updatePreferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.NotionalAmount != nil && req.NotionalAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, "notional_amount must not be negative")
		return
	}
	if req.ProfitThreshold != nil && req.ProfitThreshold.IsNegative() {
		writeError(w, http.StatusBadRequest, "profit_threshold must not be negative")
		return
	}

	pref, err := h.prefs.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get preference failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}

	if req.NotionalAmount != nil {
		pref.NotionalAmount = *req.NotionalAmount
	}
	if req.AutoTradeEnabled != nil {
		pref.AutoTradeEnabled = *req.AutoTradeEnabled
	}
	if req.ProfitThreshold != nil {
		pref.ProfitThreshold = *req.ProfitThreshold
	}

	if err := h.prefs.Upsert(r.Context(), pref); err != nil {
		h.logger.Error("update preference failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}
