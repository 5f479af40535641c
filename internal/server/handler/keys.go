package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tmcalloway/spreadbot/internal/domain"
	"github.com/tmcalloway/spreadbot/internal/server/middleware"
)

// KeysHandler manages a user's per-exchange API credentials. Secrets are
// write-only through this surface: they are accepted on save and never
// echoed back.
type KeysHandler struct {
	creds     domain.CredentialStore
	exchanges map[string]bool
	logger    *slog.Logger
}

// NewKeysHandler creates a KeysHandler. exchanges lists the identifiers
// credentials may be stored for.
func NewKeysHandler(creds domain.CredentialStore, exchanges []string, logger *slog.Logger) *KeysHandler {
	known := make(map[string]bool, len(exchanges))
	for _, e := range exchanges {
		known[e] = true
	}
	return &KeysHandler{
		creds:     creds,
		exchanges: known,
		logger:    logger.With(slog.String("handler", "keys")),
	}
}

type saveKeysRequest struct {
	Exchange  string `json:"exchange"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

type keysResponse struct {
	Exchange  string    `json:"exchange"`
	APIKey    string    `json:"api_key"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Save stores or replaces the caller's credentials for one exchange.
// POST /api/keys
func (h *KeysHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req saveKeysRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !h.exchanges[req.Exchange] {
		writeError(w, http.StatusBadRequest, "unknown exchange")
		return
	}
	if req.APIKey == "" || req.APISecret == "" {
		writeError(w, http.StatusBadRequest, "api_key and api_secret are required")
		return
	}

	cred := domain.Credential{
		UserID:    userID,
		Exchange:  req.Exchange,
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
	}
	if err := h.creds.Upsert(r.Context(), cred); err != nil {
		h.logger.Error("save credentials failed",
			slog.String("user_id", userID),
			slog.String("exchange", req.Exchange),
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// List returns the caller's stored credentials with secrets omitted.
// GET /api/keys
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	creds, err := h.creds.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list credentials failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}

	out := make([]keysResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, keysResponse{
			Exchange:  c.Exchange,
			APIKey:    c.APIKey,
			UpdatedAt: c.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": out})
}
