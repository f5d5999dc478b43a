package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/repository"
)

// --- credits ---

type creditRepo struct{ s *Store }

func (r creditRepo) EnsureAccount(_ context.Context, _ repository.DBTX, userID string) (*domain.UserCredits, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.credits[userID]
	if !ok {
		now := r.s.now()
		c = domain.UserCredits{UserID: userID, CreatedAt: now, UpdatedAt: now}
		r.s.st.credits[userID] = c
	}
	return &c, nil
}

func (r creditRepo) GetBalance(_ context.Context, _ repository.DBTX, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.st.credits[userID].Balance, nil
}

func (r creditRepo) Increment(_ context.Context, _ repository.DBTX, userID string, amount int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.credits[userID]
	if !ok {
		c = domain.UserCredits{UserID: userID, CreatedAt: r.s.now()}
	}
	c.Balance += amount
	c.UpdatedAt = r.s.now()
	r.s.st.credits[userID] = c
	return c.Balance, nil
}

func (r creditRepo) DebitIfSufficient(_ context.Context, _ repository.DBTX, userID string, amount int64) (int64, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.credits[userID]
	if !ok || c.Balance < amount {
		return 0, false, nil
	}
	c.Balance -= amount
	c.UpdatedAt = r.s.now()
	r.s.st.credits[userID] = c
	return c.Balance, true, nil
}

// --- transactions ---

type transactionRepo struct{ s *Store }

func (r transactionRepo) Insert(_ context.Context, _ repository.DBTX, n domain.NewTransaction) (*domain.CreditTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.PaymentTokenID != nil {
		for _, t := range r.s.st.txs {
			if t.PaymentTokenID != nil && *t.PaymentTokenID == *n.PaymentTokenID {
				return nil, errDuplicate("credit_transactions.payment_token_id")
			}
		}
	}
	now := r.s.now()
	tx := domain.CreditTransaction{
		ID:             uuid.New(),
		UserID:         n.UserID,
		Type:           n.Type,
		Amount:         n.Amount,
		Status:         n.Status,
		Reason:         n.Reason,
		PaymentTokenID: n.PaymentTokenID,
		GiftID:         n.GiftID,
		GenerationID:   n.GenerationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.st.txs = append(r.s.st.txs, tx)
	return &tx, nil
}

func (r transactionRepo) FindByPaymentToken(_ context.Context, _ repository.DBTX, tokenID uuid.UUID) (*domain.CreditTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.st.txs {
		if t.PaymentTokenID != nil && *t.PaymentTokenID == tokenID {
			found := t
			return &found, nil
		}
	}
	return nil, nil
}

func (r transactionRepo) transition(id uuid.UUID, allowed func(domain.TransactionStatus) bool, to domain.TransactionStatus) *domain.CreditTransaction {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, t := range r.s.st.txs {
		if t.ID != id {
			continue
		}
		if !allowed(t.Status) {
			return nil
		}
		t.Status = to
		t.UpdatedAt = r.s.now()
		r.s.st.txs[i] = t
		return &t
	}
	return nil
}

func (r transactionRepo) MarkSuccessful(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.CreditTransaction, error) {
	return r.transition(id, func(s domain.TransactionStatus) bool { return s != domain.TxStatusSuccessful }, domain.TxStatusSuccessful), nil
}

func (r transactionRepo) MarkFailed(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.CreditTransaction, error) {
	return r.transition(id, func(s domain.TransactionStatus) bool { return s == domain.TxStatusPending }, domain.TxStatusFailed), nil
}

func (r transactionRepo) userTxs(userID string) []domain.CreditTransaction {
	var out []domain.CreditTransaction
	for _, t := range r.s.st.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (r transactionRepo) ListByUser(_ context.Context, _ repository.DBTX, userID string, limit, offset int) ([]domain.CreditTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	txs := r.userTxs(userID)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	out := []domain.CreditTransaction{}
	for i := offset; i < len(txs) && len(out) < limit; i++ {
		out = append(out, txs[i])
	}
	return out, nil
}

func (r transactionRepo) CountByUser(_ context.Context, _ repository.DBTX, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.userTxs(userID))), nil
}

func (r transactionRepo) Totals(_ context.Context, _ repository.DBTX, userID string) (domain.WalletTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return domain.SummarizeTransactions(r.userTxs(userID)), nil
}

// --- payment tokens ---

type paymentTokenRepo struct{ s *Store }

func (r paymentTokenRepo) Create(_ context.Context, _ repository.DBTX, t *domain.PaymentToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Currency == "" {
		t.Currency = domain.Currency
	}
	now := r.s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.st.tokens[t.ID] = *t
	return nil
}

func (r paymentTokenRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.PaymentToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.st.tokens[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r paymentTokenRepo) MarkPending(_ context.Context, _ repository.DBTX, id uuid.UUID, gatewayToken string, raw []byte) (*domain.PaymentToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.st.tokens[id]
	if !ok || t.Status != domain.PaymentCreated {
		return nil, errState("payment token is not in CREATED state")
	}
	t.Status = domain.PaymentPending
	t.GatewayToken = &gatewayToken
	t.RawPayload = append([]byte(nil), raw...)
	t.UpdatedAt = r.s.now()
	r.s.st.tokens[id] = t
	return &t, nil
}

func (r paymentTokenRepo) ApplyVerdict(_ context.Context, _ repository.DBTX, id uuid.UUID, u domain.PaymentTokenUpdate) (*domain.PaymentToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.st.tokens[id]
	if !ok {
		return nil, nil
	}
	if t.Status != domain.PaymentSuccessful {
		t.Status = u.Status
	}
	if u.GatewayUID != nil {
		t.GatewayUID = u.GatewayUID
	}
	if len(u.RawPayload) > 0 {
		t.RawPayload = append([]byte(nil), u.RawPayload...)
	}
	t.UpdatedAt = r.s.now()
	r.s.st.tokens[id] = t
	return &t, nil
}

// --- gifts ---

type giftRepo struct{ s *Store }

func (r giftRepo) ListActive(_ context.Context, _ repository.DBTX) ([]domain.GiftCatalogItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.GiftCatalogItem{}
	for _, g := range r.s.st.gifts {
		if g.IsActive {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r giftRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.GiftCatalogItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.st.gifts[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r giftRepo) UpsertCatalogItem(_ context.Context, _ repository.DBTX, item *domain.GiftCatalogItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, g := range r.s.st.gifts {
		if g.Slug == item.Slug {
			item.ID = id
			r.s.st.gifts[id] = *item
			return nil
		}
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	r.s.st.gifts[item.ID] = *item
	return nil
}

func (r giftRepo) IncrementInventory(_ context.Context, _ repository.DBTX, userID string, giftID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := inventoryKey{userID, giftID}
	row := r.s.st.inventory[k]
	row.quantity++
	row.updatedAt = r.s.now()
	r.s.st.inventory[k] = row
	return row.quantity, nil
}

func (r giftRepo) DecrementInventory(_ context.Context, _ repository.DBTX, userID string, giftID uuid.UUID) (int64, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := inventoryKey{userID, giftID}
	row, ok := r.s.st.inventory[k]
	if !ok || row.quantity < 1 {
		return 0, false, nil
	}
	row.quantity--
	row.updatedAt = r.s.now()
	r.s.st.inventory[k] = row
	return row.quantity, true, nil
}

func (r giftRepo) ListInventory(_ context.Context, _ repository.DBTX, userID string) ([]domain.GiftInventoryItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.GiftInventoryItem{}
	for k, row := range r.s.st.inventory {
		if k.userID != userID || row.quantity <= 0 {
			continue
		}
		g := r.s.st.gifts[k.giftID]
		out = append(out, domain.GiftInventoryItem{
			GiftID:        k.giftID,
			GiftName:      g.Name,
			GiftImagePath: g.ImagePath,
			Quantity:      row.quantity,
			UpdatedAt:     row.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r giftRepo) InsertSend(_ context.Context, _ repository.DBTX, send *domain.GiftSend) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if send.ID == uuid.Nil {
		send.ID = uuid.New()
	}
	send.CreatedAt = r.s.now()
	r.s.st.sends = append(r.s.st.sends, *send)
	return nil
}

func (r giftRepo) ListSends(_ context.Context, _ repository.DBTX, senderUserID string, limit int) ([]domain.GiftHistoryItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.GiftHistoryItem{}
	for i := len(r.s.st.sends) - 1; i >= 0 && len(out) < limit; i-- {
		s := r.s.st.sends[i]
		if s.SenderUserID != senderUserID {
			continue
		}
		g := r.s.st.gifts[s.GiftID]
		out = append(out, domain.GiftHistoryItem{
			ID:              s.ID,
			GiftID:          s.GiftID,
			GiftName:        g.Name,
			GiftImagePath:   g.ImagePath,
			RecipientUserID: s.RecipientUserID,
			PriceCoins:      s.PriceCoins,
			CreatedAt:       s.CreatedAt,
		})
	}
	return out, nil
}

// --- outbox ---

type outboxRepo struct{ s *Store }

func (r outboxRepo) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.seq++
	d.SeqID = r.s.st.seq
	r.s.st.outbox = append(r.s.st.outbox, d)
	return nil
}

func (r outboxRepo) FetchUnpublished(_ context.Context, _ repository.DBTX, limit int) ([]domain.OutboxDraft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(r.s.st.outbox) > limit {
		return append([]domain.OutboxDraft(nil), r.s.st.outbox[:limit]...), nil
	}
	return append([]domain.OutboxDraft(nil), r.s.st.outbox...), nil
}

func (r outboxRepo) MarkPublished(_ context.Context, _ repository.DBTX, ids []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	done := make(map[int64]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	kept := r.s.st.outbox[:0]
	for _, d := range r.s.st.outbox {
		if !done[d.SeqID] {
			kept = append(kept, d)
		}
	}
	r.s.st.outbox = kept
	return nil
}

func (r outboxRepo) PurgePublished(context.Context, repository.DBTX, time.Time) (int64, error) {
	return 0, nil
}
