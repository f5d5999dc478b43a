package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pairly/wallet/internal/domain"
)

const txColumns = `id, user_id, type, amount, status, reason,
	payment_token_id, gift_id, generation_id, created_at, updated_at`

type transactionRepo struct{}

// NewTransactionRepository returns a pgx-backed TransactionRepository.
func NewTransactionRepository() TransactionRepository {
	return &transactionRepo{}
}

func (r *transactionRepo) Insert(ctx context.Context, db DBTX, tx domain.NewTransaction) (*domain.CreditTransaction, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO credit_transactions
		  (user_id, type, amount, status, reason, payment_token_id, gift_id, generation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+txColumns,
		tx.UserID, string(tx.Type), tx.Amount, string(tx.Status), tx.Reason,
		tx.PaymentTokenID, tx.GiftID, tx.GenerationID,
	)
	created, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("insert credit transaction: %w", err)
	}
	return created, nil
}

func (r *transactionRepo) FindByPaymentToken(ctx context.Context, db DBTX, paymentTokenID uuid.UUID) (*domain.CreditTransaction, error) {
	row := db.QueryRow(ctx, `SELECT `+txColumns+` FROM credit_transactions WHERE payment_token_id = $1`, paymentTokenID)
	return scanTransaction(row)
}

func (r *transactionRepo) MarkSuccessful(ctx context.Context, db DBTX, id uuid.UUID) (*domain.CreditTransaction, error) {
	row := db.QueryRow(ctx, `
		UPDATE credit_transactions SET status = 'SUCCESSFUL', updated_at = now()
		WHERE id = $1 AND status <> 'SUCCESSFUL'
		RETURNING `+txColumns, id)
	return scanTransaction(row)
}

func (r *transactionRepo) MarkFailed(ctx context.Context, db DBTX, id uuid.UUID) (*domain.CreditTransaction, error) {
	row := db.QueryRow(ctx, `
		UPDATE credit_transactions SET status = 'FAILED', updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+txColumns, id)
	return scanTransaction(row)
}

func (r *transactionRepo) ListByUser(ctx context.Context, db DBTX, userID string, limit, offset int) ([]domain.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.Query(ctx, `
		SELECT `+txColumns+`
		FROM credit_transactions WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query credit transactions: %w", err)
	}
	defer rows.Close()

	txs := []domain.CreditTransaction{}
	for rows.Next() {
		tx, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (r *transactionRepo) CountByUser(ctx context.Context, db DBTX, userID string) (int64, error) {
	var n int64
	if err := db.QueryRow(ctx, `SELECT count(*) FROM credit_transactions WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count credit transactions: %w", err)
	}
	return n, nil
}

func (r *transactionRepo) Totals(ctx context.Context, db DBTX, userID string) (domain.WalletTotals, error) {
	var t domain.WalletTotals
	err := db.QueryRow(ctx, `
		SELECT
		  COALESCE(SUM(amount) FILTER (WHERE type = 'grant' AND status = 'SUCCESSFUL'), 0),
		  COALESCE(SUM(ABS(amount)) FILTER (WHERE type = 'spend' AND status = 'SUCCESSFUL'), 0),
		  COALESCE(SUM(amount) FILTER (WHERE type = 'grant' AND status = 'PENDING'), 0)
		FROM credit_transactions WHERE user_id = $1`, userID,
	).Scan(&t.TotalPurchased, &t.TotalSpent, &t.PendingCredits)
	if err != nil {
		return domain.WalletTotals{}, fmt.Errorf("wallet totals: %w", err)
	}
	return t, nil
}

func scanTransaction(row pgx.Row) (*domain.CreditTransaction, error) {
	var t domain.CreditTransaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.Reason,
		&t.PaymentTokenID, &t.GiftID, &t.GenerationID, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan credit transaction: %w", err)
	}
	return &t, nil
}

func scanTransactionRow(rows pgx.Rows) (*domain.CreditTransaction, error) {
	var t domain.CreditTransaction
	err := rows.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.Reason,
		&t.PaymentTokenID, &t.GiftID, &t.GenerationID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan credit transaction row: %w", err)
	}
	return &t, nil
}
