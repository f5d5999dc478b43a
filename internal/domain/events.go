package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func newDraft(agg AggregateType, aggID string, evt EventType, partitionKey string, payload interface{}) OutboxDraft {
	data, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID,
		EventType:     evt,
		PartitionKey:  partitionKey,
		Headers:       json.RawMessage(`{}`),
		Payload:       data,
		OccurredAt:    time.Now(),
	}
}

// NewPurchaseStartedEvent records that a checkout was issued for a pending grant.
func NewPurchaseStartedEvent(token *PaymentToken, tx *CreditTransaction) OutboxDraft {
	return newDraft(AggregatePayment, token.ID.String(), EventPurchaseStarted, token.UserID, map[string]interface{}{
		"payment_token_id": token.ID.String(),
		"user_id":          token.UserID,
		"amount_cents":     token.AmountCents,
		"currency":         token.Currency,
		"credits":          tx.Amount,
	})
}

// NewCreditsPurchasedEvent records a grant that settled and moved the balance.
func NewCreditsPurchasedEvent(tx *CreditTransaction, balance int64) OutboxDraft {
	return newDraft(AggregateWallet, tx.UserID, EventCreditsPurchased, tx.UserID, map[string]interface{}{
		"transaction":   tx,
		"balance_after": balance,
	})
}

// NewPurchaseFailedEvent records a grant that will never settle.
func NewPurchaseFailedEvent(tx *CreditTransaction, gatewayStatus PaymentTokenStatus) OutboxDraft {
	return newDraft(AggregateWallet, tx.UserID, EventPurchaseFailed, tx.UserID, map[string]interface{}{
		"transaction":    tx,
		"gateway_status": gatewayStatus,
	})
}

// NewCreditsSpentEvent records a generic spend against the balance.
func NewCreditsSpentEvent(tx *CreditTransaction, balance int64) OutboxDraft {
	return newDraft(AggregateWallet, tx.UserID, EventCreditsSpent, tx.UserID, map[string]interface{}{
		"transaction":   tx,
		"balance_after": balance,
	})
}

// NewGiftPurchasedEvent records a gift bought with credits.
func NewGiftPurchasedEvent(userID string, gift *GiftCatalogItem, res *BuyGiftResult) OutboxDraft {
	return newDraft(AggregateGift, gift.ID.String(), EventGiftPurchased, userID, map[string]interface{}{
		"user_id":            userID,
		"gift_id":            gift.ID.String(),
		"gift_slug":          gift.Slug,
		"spent_coins":        res.SpentCoins,
		"inventory_quantity": res.InventoryQuantity,
		"remaining_balance":  res.RemainingBalance,
	})
}

// NewGiftSentEvent records a gift handed to a matched user.
func NewGiftSentEvent(send *GiftSend, remaining int64) OutboxDraft {
	return newDraft(AggregateGift, send.GiftID.String(), EventGiftSent, send.SenderUserID, map[string]interface{}{
		"gift_send":           send,
		"remaining_inventory": remaining,
	})
}
