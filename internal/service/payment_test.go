package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pairly/wallet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startPurchase runs a 5 EUR preset purchase and returns the payment token id.
func startPurchase(t *testing.T, f *fixture, userID string) uuid.UUID {
	t.Helper()
	_, err := f.credits.Purchase(context.Background(), userID, PurchaseInput{AmountEUR: 5, PresetKey: intPtr(5)})
	require.NoError(t, err)
	for _, tok := range f.store.AllTokens() {
		if tok.UserID == userID && tok.Status == domain.PaymentPending {
			return tok.ID
		}
	}
	t.Fatal("no pending token")
	return uuid.Nil
}

func webhookBody(tokenID uuid.UUID, status string) []byte {
	return []byte(fmt.Sprintf(`{"status":%q,"uid":"gw-1","metadata":{"payment_token_id":%q}}`, status, tokenID))
}

func TestReconcile_SuccessCreditsOnce(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	f.store.SetBalance("user-1", 30)
	tokenID := startPurchase(t, f, "user-1")

	first, err := f.payments.Reconcile(ctx, webhookBody(tokenID, "successful"), "sig")
	require.NoError(t, err)
	assert.True(t, first.Credited)
	assert.Equal(t, domain.PaymentSuccessful, first.Status)
	assert.Equal(t, domain.TxStatusSuccessful, first.Transaction.Status)

	second, err := f.payments.Reconcile(ctx, webhookBody(tokenID, "successful"), "sig")
	require.NoError(t, err)
	assert.False(t, second.Credited)

	bal, _ := f.store.Balance("user-1")
	assert.Equal(t, int64(260), bal)

	token, _ := f.store.Token(tokenID)
	assert.Equal(t, domain.PaymentSuccessful, token.Status)
	require.NotNil(t, token.GatewayUID)
	assert.Equal(t, "gw-1", *token.GatewayUID)

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, notification{"user-1", 230, 260}, f.notifier.sent[0])
}

func TestReconcile_ConcurrentDeliveriesCreditOnce(t *testing.T) {
	f := newFixture(nil)
	tokenID := startPurchase(t, f, "user-1")
	body := webhookBody(tokenID, "successful")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payments.Reconcile(context.Background(), body, "sig")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	bal, _ := f.store.Balance("user-1")
	assert.Equal(t, int64(230), bal)
	assert.Equal(t, 1, f.notifier.count())
}

func TestReconcile_FailureThenLateSuccess(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	tokenID := startPurchase(t, f, "user-1")

	res, err := f.payments.Reconcile(ctx, webhookBody(tokenID, "declined"), "sig")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentDeclined, res.Status)
	assert.Equal(t, domain.TxStatusFailed, res.Transaction.Status)
	assert.False(t, res.Credited)

	bal, _ := f.store.Balance("user-1")
	assert.Equal(t, int64(0), bal)

	res, err = f.payments.Reconcile(ctx, webhookBody(tokenID, "successful"), "sig")
	require.NoError(t, err)
	assert.True(t, res.Credited)
	bal, _ = f.store.Balance("user-1")
	assert.Equal(t, int64(230), bal)
}

func TestReconcile_SuccessfulTokenNeverDowngraded(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	tokenID := startPurchase(t, f, "user-1")

	_, err := f.payments.Reconcile(ctx, webhookBody(tokenID, "successful"), "sig")
	require.NoError(t, err)

	body := webhookBody(tokenID, "failed")
	res, err := f.payments.Reconcile(ctx, body, "sig")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccessful, res.Status)
	assert.Equal(t, domain.TxStatusSuccessful, res.Transaction.Status)

	token, _ := f.store.Token(tokenID)
	assert.Equal(t, domain.PaymentSuccessful, token.Status)
	assert.JSONEq(t, string(body), string(token.RawPayload))

	bal, _ := f.store.Balance("user-1")
	assert.Equal(t, int64(230), bal)
}

func TestReconcile_PendingIsNoop(t *testing.T) {
	f := newFixture(nil)
	tokenID := startPurchase(t, f, "user-1")

	res, err := f.payments.Reconcile(context.Background(), webhookBody(tokenID, "processing"), "sig")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, res.Status)
	assert.Equal(t, domain.TxStatusPending, res.Transaction.Status)
	assert.False(t, res.Credited)
}

func TestReconcile_Errors(t *testing.T) {
	f := newFixture(nil)
	tokenID := startPurchase(t, f, "user-1")

	tests := []struct {
		name   string
		body   []byte
		sig    string
		status int
	}{
		{"bad signature", webhookBody(tokenID, "successful"), "bad", 403},
		{"invalid json", []byte(`{`), "sig", 400},
		{"missing token id", []byte(`{"status":"successful"}`), "sig", 400},
		{"unknown token", webhookBody(uuid.New(), "successful"), "sig", 404},
		{"malformed token", []byte(`{"status":"successful","payment_token_id":"nope"}`), "sig", 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.payments.Reconcile(context.Background(), tt.body, tt.sig)
			appErr := requireAppError(t, err)
			assert.Equal(t, tt.status, appErr.Status)
		})
	}

	bal, _ := f.store.Balance("user-1")
	assert.Equal(t, int64(0), bal)
	token, _ := f.store.Token(tokenID)
	assert.Equal(t, domain.PaymentPending, token.Status)
}

func TestReconcile_NotificationFailureIsIgnored(t *testing.T) {
	f := newFixture(nil)
	f.notifier.err = errGatewayDown
	tokenID := startPurchase(t, f, "user-1")

	res, err := f.payments.Reconcile(context.Background(), webhookBody(tokenID, "successful"), "sig")
	require.NoError(t, err)
	assert.True(t, res.Credited)
}

// --- HandleReturn ---

func TestHandleReturn_RecordsStatusWithoutCrediting(t *testing.T) {
	f := newFixture(nil)
	tokenID := startPurchase(t, f, "user-1")
	q := url.Values{"token": {tokenID.String()}, "status": {"successful"}, "uid": {"gw-9"}}

	res, err := f.payments.HandleReturn(context.Background(), ReturnParams{
		Token: tokenID.String(), Status: "successful", UID: "gw-9", Query: q,
	})
	require.NoError(t, err)
	assert.Equal(t, "successful", res.Status)

	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "app.pairly.test", u.Host)
	assert.Equal(t, "/wallet", u.Path)
	assert.Equal(t, tokenID.String(), u.Query().Get("token"))
	assert.Equal(t, "gw-9", u.Query().Get("uid"))

	token, _ := f.store.Token(tokenID)
	assert.Equal(t, domain.PaymentSuccessful, token.Status)
	assert.JSONEq(t, fmt.Sprintf(`{"token":%q,"status":"successful","uid":"gw-9"}`, tokenID), string(token.RawPayload))

	txs := f.store.AllTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxStatusPending, txs[0].Status)
	bal, _ := f.store.Balance("user-1")
	assert.Equal(t, int64(0), bal)
}

func TestHandleReturn_NoFrontend(t *testing.T) {
	f := newFixture(nil)
	f.payments.frontendURL = ""
	tokenID := startPurchase(t, f, "user-1")

	res, err := f.payments.HandleReturn(context.Background(), ReturnParams{Token: tokenID.String()})
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Status)
	assert.Empty(t, res.RedirectURL)
}

func TestHandleReturn_MissingToken(t *testing.T) {
	f := newFixture(nil)

	_, err := f.payments.HandleReturn(context.Background(), ReturnParams{Status: "successful"})
	appErr := requireAppError(t, err)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "token", appErr.Fields[0].Field)
}
