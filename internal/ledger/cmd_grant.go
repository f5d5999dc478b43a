package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/repository"
)

// OpenGrantParams describes a purchased grant awaiting payment.
type OpenGrantParams struct {
	UserID         string
	Credits        int64
	Reason         string
	PaymentTokenID uuid.UUID
}

// GrantResult is the outcome of settling a grant.
type GrantResult struct {
	Transaction *domain.CreditTransaction
	Balance     int64
	// Applied is false when the command found the grant already in its target state.
	Applied bool
}

// OpenGrant records a PENDING grant linked to a payment token. The balance is untouched.
func (e *Engine) OpenGrant(ctx context.Context, db repository.DBTX, p OpenGrantParams) (*domain.CreditTransaction, error) {
	if p.Credits <= 0 {
		return nil, domain.ErrValidation("grant must be positive")
	}
	tokenID := p.PaymentTokenID
	grant, err := e.transactions.Insert(ctx, db, domain.NewTransaction{
		UserID:         p.UserID,
		Type:           domain.TxGrant,
		Amount:         p.Credits,
		Status:         domain.TxStatusPending,
		Reason:         p.Reason,
		PaymentTokenID: &tokenID,
	})
	if err != nil {
		return nil, fmt.Errorf("open grant: %w", err)
	}
	return grant, nil
}

// SettleGrant marks a grant SUCCESSFUL and credits the balance, at most once.
// The status flip is a conditional update, so concurrent or repeated calls for
// the same grant credit exactly one time.
// Pattern: conditional status flip → balance increment → outbox
func (e *Engine) SettleGrant(ctx context.Context, db repository.DBTX, grant *domain.CreditTransaction) (*GrantResult, error) {
	if grant.Type != domain.TxGrant {
		return nil, domain.ErrConflict(fmt.Sprintf("transaction %s is not a grant", grant.ID))
	}

	settled, err := e.transactions.MarkSuccessful(ctx, db, grant.ID)
	if err != nil {
		return nil, fmt.Errorf("settle grant: %w", err)
	}
	if settled == nil {
		balance, err := e.credits.GetBalance(ctx, db, grant.UserID)
		if err != nil {
			return nil, fmt.Errorf("settle grant balance: %w", err)
		}
		already := *grant
		already.Status = domain.TxStatusSuccessful
		return &GrantResult{Transaction: &already, Balance: balance, Applied: false}, nil
	}

	balance, err := e.credits.Increment(ctx, db, settled.UserID, settled.Amount)
	if err != nil {
		return nil, fmt.Errorf("settle grant credit: %w", err)
	}

	if err := e.emit(ctx, db, domain.NewCreditsPurchasedEvent(settled, balance)); err != nil {
		return nil, err
	}
	return &GrantResult{Transaction: settled, Balance: balance, Applied: true}, nil
}

// FailGrant moves a PENDING grant to FAILED. Settled or already failed grants are left alone.
func (e *Engine) FailGrant(ctx context.Context, db repository.DBTX, grant *domain.CreditTransaction, verdict domain.PaymentTokenStatus) (*GrantResult, error) {
	failed, err := e.transactions.MarkFailed(ctx, db, grant.ID)
	if err != nil {
		return nil, fmt.Errorf("fail grant: %w", err)
	}
	if failed == nil {
		return &GrantResult{Transaction: grant, Applied: false}, nil
	}

	if err := e.emit(ctx, db, domain.NewPurchaseFailedEvent(failed, verdict)); err != nil {
		return nil, err
	}
	return &GrantResult{Transaction: failed, Applied: true}, nil
}
