// Package memory implements the repository interfaces over in-process maps.
// It backs unit tests and local runs without Postgres. Transactions opened with
// Begin are serialized and roll back to a snapshot unless committed; writes
// made outside a transaction while one is open are lost if it rolls back.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/repository"
)

var errNoSQL = errors.New("memory store does not execute SQL")

type inventoryKey struct {
	userID string
	giftID uuid.UUID
}

type inventoryRow struct {
	quantity  int64
	updatedAt time.Time
}

type state struct {
	credits   map[string]domain.UserCredits
	txs       []domain.CreditTransaction
	tokens    map[uuid.UUID]domain.PaymentToken
	gifts     map[uuid.UUID]domain.GiftCatalogItem
	inventory map[inventoryKey]inventoryRow
	sends     []domain.GiftSend
	outbox    []domain.OutboxDraft
	seq       int64
}

func (s state) clone() state {
	c := state{
		credits:   make(map[string]domain.UserCredits, len(s.credits)),
		txs:       append([]domain.CreditTransaction(nil), s.txs...),
		tokens:    make(map[uuid.UUID]domain.PaymentToken, len(s.tokens)),
		gifts:     make(map[uuid.UUID]domain.GiftCatalogItem, len(s.gifts)),
		inventory: make(map[inventoryKey]inventoryRow, len(s.inventory)),
		sends:     append([]domain.GiftSend(nil), s.sends...),
		outbox:    append([]domain.OutboxDraft(nil), s.outbox...),
		seq:       s.seq,
	}
	for k, v := range s.credits {
		c.credits[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.gifts {
		c.gifts[k] = v
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	return c
}

// Store holds all tables. The zero value is not usable; call New.
type Store struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	st    state
	clock time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: state{
			credits:   map[string]domain.UserCredits{},
			tokens:    map[uuid.UUID]domain.PaymentToken{},
			gifts:     map[uuid.UUID]domain.GiftCatalogItem{},
			inventory: map[inventoryKey]inventoryRow{},
		},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// now advances a synthetic clock so rows have strictly increasing timestamps.
// Callers must hold s.mu.
func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// Begin opens a serialized transaction. It satisfies repository.Pool.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	s.txMu.Lock()
	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()
	return &memTx{store: s, snapshot: snap}, nil
}

func (s *Store) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoSQL
}

func (s *Store) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errNoSQL
}

func (s *Store) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return errRow{}
}

// Ping satisfies infra.Pinger.
func (s *Store) Ping(context.Context) error { return nil }

type errRow struct{}

func (errRow) Scan(...interface{}) error { return errNoSQL }

// memTx embeds pgx.Tx only to satisfy the interface; repositories in this
// package never call its SQL methods.
type memTx struct {
	pgx.Tx
	store    *Store
	snapshot state
	done     bool
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	t.store.st = t.snapshot
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoSQL
}

func (t *memTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errNoSQL
}

func (t *memTx) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return errRow{}
}

var _ repository.Pool = (*Store)(nil)

func (s *Store) Credits() repository.CreditRepository { return creditRepo{s} }

func (s *Store) Transactions() repository.TransactionRepository { return transactionRepo{s} }

func (s *Store) PaymentTokens() repository.PaymentTokenRepository { return paymentTokenRepo{s} }

func (s *Store) Gifts() repository.GiftRepository { return giftRepo{s} }

func (s *Store) Outbox() repository.OutboxRepository { return outboxRepo{s} }

// --- seeding and inspection helpers ---

// SetBalance overwrites a user's balance.
func (s *Store) SetBalance(userID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.credits[userID]
	if !ok {
		c = domain.UserCredits{UserID: userID, CreatedAt: s.now()}
	}
	c.Balance = balance
	c.UpdatedAt = s.now()
	s.st.credits[userID] = c
}

// Balance returns a user's balance and whether the row exists.
func (s *Store) Balance(userID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.credits[userID]
	return c.Balance, ok
}

// AddGift inserts a catalog item, assigning an id if missing.
func (s *Store) AddGift(g domain.GiftCatalogItem) domain.GiftCatalogItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	s.st.gifts[g.ID] = g
	return g
}

// SetInventory overwrites the quantity a user holds of a gift.
func (s *Store) SetInventory(userID string, giftID uuid.UUID, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.inventory[inventoryKey{userID, giftID}] = inventoryRow{quantity: qty, updatedAt: s.now()}
}

// Inventory returns the quantity a user holds of a gift.
func (s *Store) Inventory(userID string, giftID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.inventory[inventoryKey{userID, giftID}].quantity
}

// AllTransactions returns a copy of the transaction log in insert order.
func (s *Store) AllTransactions() []domain.CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CreditTransaction(nil), s.st.txs...)
}

// Token returns a payment token by id.
func (s *Store) Token(id uuid.UUID) (domain.PaymentToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.st.tokens[id]
	return t, ok
}

// AllTokens returns every payment token.
func (s *Store) AllTokens() []domain.PaymentToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PaymentToken, 0, len(s.st.tokens))
	for _, t := range s.st.tokens {
		out = append(out, t)
	}
	return out
}

// Sends returns a copy of the gift send log.
func (s *Store) Sends() []domain.GiftSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.GiftSend(nil), s.st.sends...)
}

// OutboxEvents returns a copy of all outbox rows.
func (s *Store) OutboxEvents() []domain.OutboxDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxDraft(nil), s.st.outbox...)
}
