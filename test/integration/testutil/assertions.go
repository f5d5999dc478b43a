//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks status and the error code in the body.
func AssertErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	AssertStatus(t, resp, status)
	var body struct {
		Code string `json:"code"`
	}
	DecodeJSON(t, resp, &body)
	if body.Code != code {
		t.Errorf("expected error code %q, got %q", code, body.Code)
	}
}

func (env *TestEnv) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Balance returns the stored balance; a user with no row has zero.
func (env *TestEnv) Balance(userID string) int64 {
	env.t.Helper()
	ctx, cancel := env.queryCtx()
	defer cancel()
	var balance int64
	err := env.Pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT balance FROM user_credits WHERE user_id = $1), 0)`, userID).Scan(&balance)
	if err != nil {
		env.t.Fatalf("Balance: %v", err)
	}
	return balance
}

// AssertBalance checks the stored balance of userID.
func (env *TestEnv) AssertBalance(userID string, expected int64) {
	env.t.Helper()
	if got := env.Balance(userID); got != expected {
		env.t.Errorf("expected balance %d for %s, got %d", expected, userID, got)
	}
}

// TokenStatus returns the status of a payment token.
func (env *TestEnv) TokenStatus(id uuid.UUID) string {
	env.t.Helper()
	ctx, cancel := env.queryCtx()
	defer cancel()
	var status string
	if err := env.Pool.QueryRow(ctx, `SELECT status FROM payment_tokens WHERE id = $1`, id).Scan(&status); err != nil {
		env.t.Fatalf("TokenStatus: %v", err)
	}
	return status
}

// GrantStatus returns the status of the grant transaction linked to a payment token.
func (env *TestEnv) GrantStatus(tokenID uuid.UUID) string {
	env.t.Helper()
	ctx, cancel := env.queryCtx()
	defer cancel()
	var status string
	err := env.Pool.QueryRow(ctx,
		`SELECT status FROM credit_transactions WHERE payment_token_id = $1`, tokenID).Scan(&status)
	if err != nil {
		env.t.Fatalf("GrantStatus: %v", err)
	}
	return status
}

// CountTransactions counts a user's ledger rows of the given type.
func (env *TestEnv) CountTransactions(userID, txType string) int {
	env.t.Helper()
	ctx, cancel := env.queryCtx()
	defer cancel()
	var n int
	err := env.Pool.QueryRow(ctx,
		`SELECT count(*) FROM credit_transactions WHERE user_id = $1 AND type = $2`, userID, txType).Scan(&n)
	if err != nil {
		env.t.Fatalf("CountTransactions: %v", err)
	}
	return n
}

// Inventory returns how many of a gift the user holds.
func (env *TestEnv) Inventory(userID string, giftID uuid.UUID) int64 {
	env.t.Helper()
	ctx, cancel := env.queryCtx()
	defer cancel()
	var qty int64
	err := env.Pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT quantity FROM gift_inventory WHERE user_id = $1 AND gift_id = $2), 0)`,
		userID, giftID).Scan(&qty)
	if err != nil {
		env.t.Fatalf("Inventory: %v", err)
	}
	return qty
}

// CountOutboxEvents counts outbox rows of eventType for an aggregate.
func (env *TestEnv) CountOutboxEvents(aggregateID, eventType string) int {
	env.t.Helper()
	ctx, cancel := env.queryCtx()
	defer cancel()
	var n int
	err := env.Pool.QueryRow(ctx,
		`SELECT count(*) FROM event_outbox WHERE aggregate_id = $1 AND event_type = $2`,
		aggregateID, eventType).Scan(&n)
	if err != nil {
		env.t.Fatalf("CountOutboxEvents: %v", err)
	}
	return n
}
