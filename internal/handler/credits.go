package handler

import (
	"log/slog"
	"net/http"

	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/pricing"
	"github.com/pairly/wallet/internal/service"
)

// CreditsHandler handles credit purchases and debits.
type CreditsHandler struct {
	credits *service.CreditsService
	logger  *slog.Logger
}

// NewCreditsHandler creates a new CreditsHandler.
func NewCreditsHandler(credits *service.CreditsService, logger *slog.Logger) *CreditsHandler {
	return &CreditsHandler{credits: credits, logger: logger}
}

type purchaseRequest struct {
	AmountEUR       *float64 `json:"amountEur" validate:"required"`
	PricingMode     string   `json:"pricingMode" validate:"omitempty,oneof=preset custom"`
	PresetKey       *int     `json:"presetKey"`
	ConsentAccepted bool     `json:"consentAccepted" validate:"accepted"`
}

// Purchase handles POST /api/credits/purchase.
func (h *CreditsHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req purchaseRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	checkout, err := h.credits.Purchase(r.Context(), userID, service.PurchaseInput{
		AmountEUR:   *req.AmountEUR,
		PricingMode: pricing.Mode(req.PricingMode),
		PresetKey:   req.PresetKey,
	})
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, checkout)
}

type spendRequest struct {
	Amount       int64   `json:"amount" validate:"gt=0"`
	Reason       string  `json:"reason" validate:"required,max=200"`
	GenerationID *string `json:"generationId" validate:"omitempty,max=128"`
}

type spendResponse struct {
	Transaction *domain.CreditTransaction `json:"transaction"`
	Balance     int64                     `json:"balance"`
}

// Spend handles POST /api/credits/spend.
func (h *CreditsHandler) Spend(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req spendRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.credits.Spend(r.Context(), userID, service.SpendInput{
		Amount:       req.Amount,
		Reason:       req.Reason,
		GenerationID: req.GenerationID,
	})
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, spendResponse{Transaction: res.Transaction, Balance: res.Balance})
}

// Balance handles GET /api/credits/balance.
func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	balance, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"balance":  balance,
		"currency": domain.Currency,
	})
}
