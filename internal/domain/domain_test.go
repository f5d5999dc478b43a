package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- AppError ---

func TestAppError_ErrorString(t *testing.T) {
	err := ErrValidation("amount is required")
	assert.Equal(t, "VALIDATION_ERROR: amount is required", err.Error())

	withCause := ErrInternal("insert token", errors.New("conn reset"))
	assert.Equal(t, "INTERNAL_ERROR: insert token: conn reset", withCause.Error())
}

func TestAppError_UnwrapAndAs(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	wrapped := fmt.Errorf("purchase: %w", ErrUpstream("payment gateway unavailable", cause))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "UPSTREAM_ERROR", appErr.Code)
	assert.Equal(t, 502, appErr.Status)
	assert.ErrorIs(t, wrapped, cause)

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
}

func TestAppError_StatusClasses(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		status      int
		operational bool
	}{
		{"validation", ErrValidation("x"), 400, true},
		{"insufficient", ErrInsufficientBalance(), 400, true},
		{"unauthorized", ErrUnauthorized("x"), 401, true},
		{"forbidden", ErrForbidden("x"), 403, true},
		{"not found", ErrNotFound("gift", "g1"), 404, true},
		{"conflict", ErrConflict("x"), 409, true},
		{"rate limited", ErrRateLimited("x"), 429, true},
		{"internal", ErrInternal("x", nil), 500, false},
		{"upstream", ErrUpstream("x", nil), 502, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.operational, tt.err.Operational())
		})
	}
}

func TestErrFieldValidation_CarriesField(t *testing.T) {
	err := ErrFieldValidation("limit", "limit must be between 1 and 100")
	require.Len(t, err.Fields, 1)
	assert.Equal(t, "limit", err.Fields[0].Field)
	assert.Equal(t, "limit must be between 1 and 100", err.Fields[0].Message)
}

// --- Wallet totals ---

func TestSummarizeTransactions(t *testing.T) {
	txs := []CreditTransaction{
		{Type: TxGrant, Amount: 100, Status: TxStatusSuccessful},
		{Type: TxGrant, Amount: 50, Status: TxStatusPending},
		{Type: TxSpend, Amount: -30, Status: TxStatusSuccessful},
	}

	totals := SummarizeTransactions(txs)
	assert.Equal(t, WalletTotals{TotalPurchased: 100, PendingCredits: 50, TotalSpent: 30}, totals)
}

func TestSummarizeTransactions_IgnoresFailedAndAdjustments(t *testing.T) {
	txs := []CreditTransaction{
		{Type: TxGrant, Amount: 230, Status: TxStatusFailed},
		{Type: TxAdjustment, Amount: 40, Status: TxStatusSuccessful},
		{Type: TxRefund, Amount: 10, Status: TxStatusSuccessful},
		{Type: TxSpend, Amount: -5, Status: TxStatusPending},
	}

	assert.Equal(t, WalletTotals{}, SummarizeTransactions(txs))
}

// --- Payment status ---

func TestPaymentTokenStatus_IsFailure(t *testing.T) {
	for _, s := range []PaymentTokenStatus{PaymentFailed, PaymentDeclined, PaymentExpired, PaymentError} {
		assert.True(t, s.IsFailure(), s)
	}
	for _, s := range []PaymentTokenStatus{PaymentCreated, PaymentPending, PaymentSuccessful} {
		assert.False(t, s.IsFailure(), s)
	}
}

// --- Events ---

func TestNewGiftSentEvent(t *testing.T) {
	send := &GiftSend{
		ID:              uuid.New(),
		SenderUserID:    "user-1",
		RecipientUserID: 42,
		GiftID:          uuid.New(),
		PriceCoins:      120,
	}

	evt := NewGiftSentEvent(send, 2)
	assert.Equal(t, AggregateGift, evt.AggregateType)
	assert.Equal(t, EventGiftSent, evt.EventType)
	assert.Equal(t, "user-1", evt.PartitionKey)
	assert.Equal(t, "pairly.gift.wallet.gift.sent", evt.Topic())

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, float64(2), payload["remaining_inventory"])
}

func TestNewCreditsPurchasedEvent(t *testing.T) {
	tokenID := uuid.New()
	tx := &CreditTransaction{ID: uuid.New(), UserID: "user-9", Type: TxGrant, Amount: 230, Status: TxStatusSuccessful, PaymentTokenID: &tokenID}

	evt := NewCreditsPurchasedEvent(tx, 260)
	assert.Equal(t, "user-9", evt.AggregateID)
	assert.NotEqual(t, uuid.Nil, evt.EventID)
	assert.JSONEq(t, `{}`, string(evt.Headers))

	var payload struct {
		Transaction  CreditTransaction `json:"transaction"`
		BalanceAfter int64             `json:"balance_after"`
	}
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, int64(260), payload.BalanceAfter)
	assert.Equal(t, int64(230), payload.Transaction.Amount)
}
