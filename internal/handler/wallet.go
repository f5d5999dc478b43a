package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pairly/wallet/internal/auth"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/service"
)

// WalletHandler serves the wallet summary.
type WalletHandler struct {
	credits *service.CreditsService
	logger  *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(credits *service.CreditsService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{credits: credits, logger: logger}
}

// GetWallet handles GET /api/wallet?limit&offset.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		RespondError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		RespondError(w, err)
		return
	}

	view, err := h.credits.Wallet(r.Context(), userID, limit, offset)
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

func userIDFromContext(r *http.Request) (string, error) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		return "", domain.ErrUnauthorized("authentication required")
	}
	return userID, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ErrFieldValidation(name, name+" must be an integer")
	}
	return n, nil
}
