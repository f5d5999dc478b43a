//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates all wallet tables.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx, `TRUNCATE TABLE
		event_outbox,
		gift_sends,
		gift_inventory,
		credit_transactions,
		payment_tokens,
		gift_catalog,
		user_credits
		CASCADE`)
	if err != nil {
		env.t.Fatalf("CleanAll: %v", err)
	}
}
