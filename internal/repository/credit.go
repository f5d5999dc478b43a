package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pairly/wallet/internal/domain"
)

type creditRepo struct{}

// NewCreditRepository returns a pgx-backed CreditRepository.
func NewCreditRepository() CreditRepository {
	return &creditRepo{}
}

func (r *creditRepo) EnsureAccount(ctx context.Context, db DBTX, userID string) (*domain.UserCredits, error) {
	// DO UPDATE with a no-op assignment makes RETURNING yield the existing row.
	row := db.QueryRow(ctx, `
		INSERT INTO user_credits (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance, created_at, updated_at`, userID)

	var c domain.UserCredits
	if err := row.Scan(&c.UserID, &c.Balance, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("ensure credit account: %w", err)
	}
	return &c, nil
}

func (r *creditRepo) GetBalance(ctx context.Context, db DBTX, userID string) (int64, error) {
	var balance int64
	err := db.QueryRow(ctx, `SELECT balance FROM user_credits WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (r *creditRepo) Increment(ctx context.Context, db DBTX, userID string, amount int64) (int64, error) {
	var balance int64
	err := db.QueryRow(ctx, `
		INSERT INTO user_credits (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		  SET balance = user_credits.balance + EXCLUDED.balance, updated_at = now()
		RETURNING balance`, userID, amount).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("increment balance: %w", err)
	}
	return balance, nil
}

func (r *creditRepo) DebitIfSufficient(ctx context.Context, db DBTX, userID string, amount int64) (int64, bool, error) {
	var balance int64
	err := db.QueryRow(ctx, `
		UPDATE user_credits
		SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("debit balance: %w", err)
	}
	return balance, true, nil
}
