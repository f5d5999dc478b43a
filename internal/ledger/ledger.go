// Package ledger owns every write to user balances and the credit transaction log.
package ledger

import (
	"context"
	"fmt"

	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/repository"
)

// Engine provides the balance-moving ledger commands:
//   - OpenGrant / SettleGrant / FailGrant for purchased credits
//   - Spend for conditional debits
//
// Every command runs inside the caller's transaction and writes its outbox
// event in that same transaction.
type Engine struct {
	credits      repository.CreditRepository
	transactions repository.TransactionRepository
	outbox       repository.OutboxRepository
}

// NewEngine creates a ledger engine with the given repositories.
func NewEngine(
	credits repository.CreditRepository,
	transactions repository.TransactionRepository,
	outbox repository.OutboxRepository,
) *Engine {
	return &Engine{
		credits:      credits,
		transactions: transactions,
		outbox:       outbox,
	}
}

// EnsureAccount returns the user's balance row, creating it on first access.
func (e *Engine) EnsureAccount(ctx context.Context, db repository.DBTX, userID string) (*domain.UserCredits, error) {
	acct, err := e.credits.EnsureAccount(ctx, db, userID)
	if err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	return acct, nil
}

// Balance returns the authoritative balance for userID.
func (e *Engine) Balance(ctx context.Context, db repository.DBTX, userID string) (int64, error) {
	return e.credits.GetBalance(ctx, db, userID)
}

func (e *Engine) emit(ctx context.Context, db repository.DBTX, draft domain.OutboxDraft) error {
	if err := e.outbox.Insert(ctx, db, draft); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
