package domain

import (
	"time"

	"github.com/google/uuid"
)

// GiftCatalogItem is reference data for a purchasable gift.
type GiftCatalogItem struct {
	ID         uuid.UUID `json:"id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	ImagePath  string    `json:"imagePath"`
	PriceCoins int64     `json:"priceCoins"`
	IsActive   bool      `json:"-"`
	SortOrder  int       `json:"-"`
}

// GiftInventoryItem is one gift the user holds, joined with its catalog entry.
type GiftInventoryItem struct {
	GiftID        uuid.UUID `json:"giftId"`
	GiftName      string    `json:"giftName"`
	GiftImagePath string    `json:"giftImagePath"`
	Quantity      int64     `json:"quantity"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GiftSend is an append-only gift_sends row.
type GiftSend struct {
	ID              uuid.UUID `json:"id"`
	SenderUserID    string    `json:"senderUserId"`
	RecipientUserID int64     `json:"recipientUserId"`
	GiftID          uuid.UUID `json:"giftId"`
	PriceCoins      int64     `json:"priceCoins"`
	CreatedAt       time.Time `json:"createdAt"`
}

// GiftHistoryItem is a sent gift joined with its catalog entry.
type GiftHistoryItem struct {
	ID              uuid.UUID `json:"id"`
	GiftID          uuid.UUID `json:"giftId"`
	GiftName        string    `json:"giftName"`
	GiftImagePath   string    `json:"giftImagePath"`
	RecipientUserID int64     `json:"recipientUserId"`
	PriceCoins      int64     `json:"priceCoins"`
	CreatedAt       time.Time `json:"createdAt"`
}

// BuyGiftResult is returned by a successful gift purchase.
type BuyGiftResult struct {
	GiftID            uuid.UUID `json:"giftId"`
	PurchasedQuantity int64     `json:"purchasedQuantity"`
	InventoryQuantity int64     `json:"inventoryQuantity"`
	SpentCoins        int64     `json:"spentCoins"`
	RemainingBalance  int64     `json:"remainingBalance"`
}

// SendGiftResult is returned by a successful gift send.
type SendGiftResult struct {
	GiftSendID         uuid.UUID `json:"giftSendId"`
	GiftID             uuid.UUID `json:"giftId"`
	RecipientUserID    int64     `json:"recipientUserId"`
	RemainingInventory int64     `json:"remainingInventory"`
	CreatedAt          time.Time `json:"createdAt"`
}
