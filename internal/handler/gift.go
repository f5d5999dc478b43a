package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/pairly/wallet/internal/provider"
	"github.com/pairly/wallet/internal/service"
)

// GiftHandler handles the gift catalog, inventory and sends.
type GiftHandler struct {
	gifts  *service.GiftService
	logger *slog.Logger
}

// NewGiftHandler creates a new GiftHandler.
func NewGiftHandler(gifts *service.GiftService, logger *slog.Logger) *GiftHandler {
	return &GiftHandler{gifts: gifts, logger: logger}
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

func items[T any](list []T) itemsResponse[T] {
	if list == nil {
		list = []T{}
	}
	return itemsResponse[T]{Items: list}
}

// Catalog handles GET /api/gifts/catalog.
func (h *GiftHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	list, err := h.gifts.Catalog(r.Context())
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, items(list))
}

// Inventory handles GET /api/gifts/inventory.
func (h *GiftHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	list, err := h.gifts.Inventory(r.Context(), userID)
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, items(list))
}

// History handles GET /api/gifts/history?limit.
func (h *GiftHandler) History(w http.ResponseWriter, r *http.Request) {
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
	list, err := h.gifts.History(r.Context(), userID, limit)
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, items(list))
}

type buyGiftRequest struct {
	GiftID string `json:"giftId" validate:"required,uuid"`
}

// Buy handles POST /api/gifts/buy.
func (h *GiftHandler) Buy(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req buyGiftRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.gifts.Buy(r.Context(), userID, uuid.MustParse(req.GiftID))
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

type sendGiftRequest struct {
	RecipientUserID int64  `json:"recipientUserId" validate:"gt=0"`
	GiftID          string `json:"giftId" validate:"required,uuid"`
}

// Send handles POST /api/gifts/send. The dating session cookie is forwarded
// to the match service to prove the recipient is a match.
func (h *GiftHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req sendGiftRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	var sessionID string
	if c, err := r.Cookie(provider.SessionCookie); err == nil {
		sessionID = c.Value
	}

	res, err := h.gifts.Send(r.Context(), service.SendGiftInput{
		SenderUserID:    userID,
		RecipientUserID: req.RecipientUserID,
		GiftID:          uuid.MustParse(req.GiftID),
		SessionID:       sessionID,
	})
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}
