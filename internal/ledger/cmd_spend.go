package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/repository"
)

// SpendParams describes a debit against the balance.
type SpendParams struct {
	UserID       string
	Amount       int64
	Reason       string
	GiftID       *uuid.UUID
	GenerationID *string
}

// SpendResult is the outcome of a successful spend.
type SpendResult struct {
	Transaction *domain.CreditTransaction
	Balance     int64
}

// Spend debits Amount only if the balance covers it and appends a SUCCESSFUL
// spend entry. The check and the debit are one conditional UPDATE.
// Pattern: ensure account → conditional debit → append entry → outbox
func (e *Engine) Spend(ctx context.Context, db repository.DBTX, p SpendParams) (*SpendResult, error) {
	if p.Amount <= 0 {
		return nil, domain.ErrFieldValidation("amount", "amount must be positive")
	}

	if _, err := e.EnsureAccount(ctx, db, p.UserID); err != nil {
		return nil, err
	}

	balance, ok, err := e.credits.DebitIfSufficient(ctx, db, p.UserID, p.Amount)
	if err != nil {
		return nil, fmt.Errorf("spend debit: %w", err)
	}
	if !ok {
		return nil, domain.ErrInsufficientBalance()
	}

	entry, err := e.transactions.Insert(ctx, db, domain.NewTransaction{
		UserID:       p.UserID,
		Type:         domain.TxSpend,
		Amount:       -p.Amount,
		Status:       domain.TxStatusSuccessful,
		Reason:       p.Reason,
		GiftID:       p.GiftID,
		GenerationID: p.GenerationID,
	})
	if err != nil {
		return nil, fmt.Errorf("spend insert: %w", err)
	}

	if err := e.emit(ctx, db, domain.NewCreditsSpentEvent(entry, balance)); err != nil {
		return nil, err
	}
	return &SpendResult{Transaction: entry, Balance: balance}, nil
}
