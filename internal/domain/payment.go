package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentTokenStatus tracks a checkout from creation to a gateway verdict.
type PaymentTokenStatus string

const (
	PaymentCreated    PaymentTokenStatus = "CREATED"
	PaymentPending    PaymentTokenStatus = "PENDING"
	PaymentSuccessful PaymentTokenStatus = "SUCCESSFUL"
	PaymentFailed     PaymentTokenStatus = "FAILED"
	PaymentDeclined   PaymentTokenStatus = "DECLINED"
	PaymentExpired    PaymentTokenStatus = "EXPIRED"
	PaymentError      PaymentTokenStatus = "ERROR"
)

// IsFailure reports whether the status is a terminal unsuccessful verdict.
func (s PaymentTokenStatus) IsFailure() bool {
	switch s {
	case PaymentFailed, PaymentDeclined, PaymentExpired, PaymentError:
		return true
	}
	return false
}

// PaymentToken is a payment_tokens row: one checkout attempt.
type PaymentToken struct {
	ID           uuid.UUID          `json:"id"`
	UserID       string             `json:"userId"`
	Status       PaymentTokenStatus `json:"status"`
	GatewayUID   *string            `json:"gatewayUid,omitempty"`
	GatewayToken *string            `json:"gatewayToken,omitempty"`
	RawPayload   json.RawMessage    `json:"rawPayload,omitempty"`
	AmountCents  int64              `json:"amountCents"`
	Currency     string             `json:"currency"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// PaymentTokenUpdate carries the fields written when a gateway verdict arrives.
type PaymentTokenUpdate struct {
	Status     PaymentTokenStatus
	GatewayUID *string
	RawPayload json.RawMessage
}

// CheckoutResult is returned to the caller after a purchase is started.
type CheckoutResult struct {
	CheckoutToken string `json:"checkoutToken"`
	RedirectURL   string `json:"redirectUrl,omitempty"`
}

// ReconcileResult is the outcome of applying one gateway notification.
type ReconcileResult struct {
	PaymentTokenID uuid.UUID          `json:"paymentTokenId"`
	Status         PaymentTokenStatus `json:"status"`
	Transaction    *CreditTransaction `json:"transaction,omitempty"`
	Credited       bool               `json:"credited"`
}
