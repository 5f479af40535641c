package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmcalloway/spreadbot/internal/domain"
	"github.com/tmcalloway/spreadbot/internal/server/middleware"
)

// BalanceHandler reports the caller's free balances on every exchange they
// have stored credentials for.
type BalanceHandler struct {
	creds    domain.CredentialStore
	balances domain.BalanceSource
	symbol   string
	logger   *slog.Logger
}

// NewBalanceHandler creates a BalanceHandler. symbol is the configured
// trading pair; its base and quote assets are what gets reported.
func NewBalanceHandler(creds domain.CredentialStore, balances domain.BalanceSource, symbol string, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		creds:    creds,
		balances: balances,
		symbol:   symbol,
		logger:   logger.With(slog.String("handler", "balance")),
	}
}

type exchangeBalance struct {
	Exchange string            `json:"exchange"`
	Balances map[string]string `json:"balances"`
	Error    string            `json:"error,omitempty"`
}

// List fetches balances per exchange. A venue that fails to answer is
// reported with its error rather than failing the whole response.
// GET /api/balances
func (h *BalanceHandler) List(w http.ResponseWriter, r *http.Request) {
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

	base, quote, _ := strings.Cut(h.symbol, "/")
	assets := []string{base, quote}

	out := make([]exchangeBalance, 0, len(creds))
	for _, c := range creds {
		entry := exchangeBalance{
			Exchange: c.Exchange,
			Balances: make(map[string]string, len(assets)),
		}
		for _, asset := range assets {
			bal, err := h.balances.GetBalance(r.Context(), c, asset)
			if err != nil {
				h.logger.Warn("balance fetch failed",
					slog.String("user_id", userID),
					slog.String("exchange", c.Exchange),
					slog.String("asset", asset),
					slog.String("error", err.Error()),
				)
				entry.Error = "balance unavailable"
				break
			}
			entry.Balances[asset] = bal.String()
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"exchanges": out})
}
