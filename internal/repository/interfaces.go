package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pairly/wallet/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Pool is a DBTX that can also open transactions. *pgxpool.Pool satisfies it.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CreditRepository provides access to user_credits.
type CreditRepository interface {
	// EnsureAccount creates the balance row if missing and returns it.
	EnsureAccount(ctx context.Context, db DBTX, userID string) (*domain.UserCredits, error)

	// GetBalance returns the current balance, 0 if no row exists.
	GetBalance(ctx context.Context, db DBTX, userID string) (int64, error)

	// Increment adds amount to the balance and returns the new balance.
	Increment(ctx context.Context, db DBTX, userID string, amount int64) (int64, error)

	// DebitIfSufficient subtracts amount only if balance >= amount, in one statement.
	// ok is false when the balance was too low and nothing changed.
	DebitIfSufficient(ctx context.Context, db DBTX, userID string, amount int64) (balance int64, ok bool, err error)
}

// TransactionRepository provides access to credit_transactions.
type TransactionRepository interface {
	// Insert appends a ledger entry and returns the stored row.
	Insert(ctx context.Context, db DBTX, tx domain.NewTransaction) (*domain.CreditTransaction, error)

	// FindByPaymentToken returns the grant linked to a payment token.
	FindByPaymentToken(ctx context.Context, db DBTX, paymentTokenID uuid.UUID) (*domain.CreditTransaction, error)

	// MarkSuccessful moves a transaction to SUCCESSFUL unless it already is.
	// Returns nil when the transaction was already SUCCESSFUL.
	MarkSuccessful(ctx context.Context, db DBTX, id uuid.UUID) (*domain.CreditTransaction, error)

	// MarkFailed moves a PENDING transaction to FAILED. Returns nil if it was not PENDING.
	MarkFailed(ctx context.Context, db DBTX, id uuid.UUID) (*domain.CreditTransaction, error)

	// ListByUser returns transactions newest first.
	ListByUser(ctx context.Context, db DBTX, userID string, limit, offset int) ([]domain.CreditTransaction, error)

	// CountByUser returns the number of transactions for a user.
	CountByUser(ctx context.Context, db DBTX, userID string) (int64, error)

	// Totals aggregates purchased, spent and pending credits for a user.
	Totals(ctx context.Context, db DBTX, userID string) (domain.WalletTotals, error)
}

// PaymentTokenRepository provides access to payment_tokens.
type PaymentTokenRepository interface {
	Create(ctx context.Context, db DBTX, token *domain.PaymentToken) error
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.PaymentToken, error)

	// MarkPending moves a CREATED token to PENDING with the gateway checkout attached.
	MarkPending(ctx context.Context, db DBTX, id uuid.UUID, gatewayToken string, raw []byte) (*domain.PaymentToken, error)

	// ApplyVerdict records a gateway status on every call. A SUCCESSFUL status is kept
	// when a later verdict disagrees; the payload is always replaced.
	ApplyVerdict(ctx context.Context, db DBTX, id uuid.UUID, u domain.PaymentTokenUpdate) (*domain.PaymentToken, error)
}

// GiftRepository provides access to gift_catalog, gift_inventory and gift_sends.
type GiftRepository interface {
	ListActive(ctx context.Context, db DBTX) ([]domain.GiftCatalogItem, error)
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.GiftCatalogItem, error)

	// UpsertCatalogItem inserts or updates a catalog entry keyed by slug.
	UpsertCatalogItem(ctx context.Context, db DBTX, item *domain.GiftCatalogItem) error

	// IncrementInventory adds one unit and returns the new quantity.
	IncrementInventory(ctx context.Context, db DBTX, userID string, giftID uuid.UUID) (int64, error)

	// DecrementInventory removes one unit only if quantity >= 1.
	// ok is false when there was nothing to remove.
	DecrementInventory(ctx context.Context, db DBTX, userID string, giftID uuid.UUID) (remaining int64, ok bool, err error)

	ListInventory(ctx context.Context, db DBTX, userID string) ([]domain.GiftInventoryItem, error)
	InsertSend(ctx context.Context, db DBTX, send *domain.GiftSend) error
	ListSends(ctx context.Context, db DBTX, senderUserID string, limit int) ([]domain.GiftHistoryItem, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the ledger entry).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events in sequence order.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished stamps published_at on the given sequence ids.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error

	// PurgePublished deletes events published before the cutoff.
	PurgePublished(ctx context.Context, db DBTX, before time.Time) (int64, error)
}
