package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*Engine, *memory.Store) {
	store := memory.New()
	return NewEngine(store.Credits(), store.Transactions(), store.Outbox()), store
}

func openGrant(t *testing.T, e *Engine, store *memory.Store, userID string, credits int64) *domain.CreditTransaction {
	t.Helper()
	grant, err := e.OpenGrant(context.Background(), store, OpenGrantParams{
		UserID:         userID,
		Credits:        credits,
		Reason:         "Purchase 5.00 EUR",
		PaymentTokenID: uuid.New(),
	})
	require.NoError(t, err)
	return grant
}

// --- OpenGrant ---

func TestOpenGrant_PendingWithoutCredit(t *testing.T) {
	e, store := newTestEngine()

	grant := openGrant(t, e, store, "u1", 230)
	assert.Equal(t, domain.TxStatusPending, grant.Status)
	assert.Equal(t, domain.TxGrant, grant.Type)
	require.NotNil(t, grant.PaymentTokenID)

	bal, _ := store.Balance("u1")
	assert.Equal(t, int64(0), bal)
}

func TestOpenGrant_RejectsNonPositive(t *testing.T) {
	e, store := newTestEngine()
	_, err := e.OpenGrant(context.Background(), store, OpenGrantParams{UserID: "u1", Credits: 0, PaymentTokenID: uuid.New()})
	require.Error(t, err)
	assert.Empty(t, store.AllTransactions())
}

// --- SettleGrant ---

func TestSettleGrant_CreditsOnce(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	store.SetBalance("u1", 30)
	grant := openGrant(t, e, store, "u1", 230)

	first, err := e.SettleGrant(ctx, store, grant)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, int64(260), first.Balance)
	assert.Equal(t, domain.TxStatusSuccessful, first.Transaction.Status)

	second, err := e.SettleGrant(ctx, store, grant)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, int64(260), second.Balance)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCreditsPurchased, events[0].EventType)
}

func TestSettleGrant_ConcurrentCallsCreditOnce(t *testing.T) {
	e, store := newTestEngine()
	grant := openGrant(t, e, store, "u1", 460)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pgx.BeginFunc(context.Background(), store, func(tx pgx.Tx) error {
				_, err := e.SettleGrant(context.Background(), tx, grant)
				return err
			})
		}()
	}
	wg.Wait()

	bal, _ := store.Balance("u1")
	assert.Equal(t, int64(460), bal)
}

func TestSettleGrant_LateSuccessAfterFailure(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	grant := openGrant(t, e, store, "u1", 30)

	failed, err := e.FailGrant(ctx, store, grant, domain.PaymentDeclined)
	require.NoError(t, err)
	assert.True(t, failed.Applied)

	res, err := e.SettleGrant(ctx, store, grant)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(30), res.Balance)
}

func TestSettleGrant_RejectsSpend(t *testing.T) {
	e, store := newTestEngine()
	_, err := e.SettleGrant(context.Background(), store, &domain.CreditTransaction{ID: uuid.New(), Type: domain.TxSpend})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

// --- FailGrant ---

func TestFailGrant_LeavesSettledGrant(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	grant := openGrant(t, e, store, "u1", 230)

	_, err := e.SettleGrant(ctx, store, grant)
	require.NoError(t, err)

	res, err := e.FailGrant(ctx, store, grant, domain.PaymentFailed)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	txs := store.AllTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxStatusSuccessful, txs[0].Status)
	bal, _ := store.Balance("u1")
	assert.Equal(t, int64(230), bal)
}

// --- Spend ---

func TestSpend_DebitsAndRecords(t *testing.T) {
	e, store := newTestEngine()
	store.SetBalance("u1", 100)
	gen := "gen-7"

	res, err := e.Spend(context.Background(), store, SpendParams{UserID: "u1", Amount: 40, Reason: "generation", GenerationID: &gen})
	require.NoError(t, err)
	assert.Equal(t, int64(60), res.Balance)
	assert.Equal(t, int64(-40), res.Transaction.Amount)
	assert.Equal(t, domain.TxSpend, res.Transaction.Type)
	assert.Equal(t, domain.TxStatusSuccessful, res.Transaction.Status)
	require.NotNil(t, res.Transaction.GenerationID)
	assert.Equal(t, "gen-7", *res.Transaction.GenerationID)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCreditsSpent, events[0].EventType)
}

func TestSpend_InsufficientBalance(t *testing.T) {
	e, store := newTestEngine()
	store.SetBalance("u1", 10)

	_, err := e.Spend(context.Background(), store, SpendParams{UserID: "u1", Amount: 11})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "INSUFFICIENT_BALANCE", appErr.Code)

	bal, _ := store.Balance("u1")
	assert.Equal(t, int64(10), bal)
	assert.Empty(t, store.AllTransactions())
}

func TestSpend_CreatesMissingAccount(t *testing.T) {
	e, store := newTestEngine()

	_, err := e.Spend(context.Background(), store, SpendParams{UserID: "new", Amount: 1})
	require.Error(t, err)

	_, exists := store.Balance("new")
	assert.True(t, exists)
}

func TestSpend_ConcurrentNeverOverdraws(t *testing.T) {
	e, store := newTestEngine()
	store.SetBalance("u1", 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pgx.BeginFunc(context.Background(), store, func(tx pgx.Tx) error {
				_, err := e.Spend(context.Background(), tx, SpendParams{UserID: "u1", Amount: 30})
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	bal, _ := store.Balance("u1")
	assert.Equal(t, int64(10), bal)
}

func TestSpend_RejectsNonPositive(t *testing.T) {
	e, store := newTestEngine()
	_, err := e.Spend(context.Background(), store, SpendParams{UserID: "u1", Amount: -5})
	require.Error(t, err)
}
