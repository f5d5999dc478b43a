package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pairly/wallet/internal/domain"
)

const giftColumns = `id, slug, name, image_path, price_coins, is_active, sort_order`

type giftRepo struct{}

// NewGiftRepository returns a pgx-backed GiftRepository.
func NewGiftRepository() GiftRepository {
	return &giftRepo{}
}

func (r *giftRepo) ListActive(ctx context.Context, db DBTX) ([]domain.GiftCatalogItem, error) {
	rows, err := db.Query(ctx, `
		SELECT `+giftColumns+`
		FROM gift_catalog WHERE is_active
		ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query gift catalog: %w", err)
	}
	defer rows.Close()

	items := []domain.GiftCatalogItem{}
	for rows.Next() {
		var g domain.GiftCatalogItem
		if err := rows.Scan(&g.ID, &g.Slug, &g.Name, &g.ImagePath, &g.PriceCoins, &g.IsActive, &g.SortOrder); err != nil {
			return nil, fmt.Errorf("scan gift row: %w", err)
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

func (r *giftRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.GiftCatalogItem, error) {
	var g domain.GiftCatalogItem
	err := db.QueryRow(ctx, `SELECT `+giftColumns+` FROM gift_catalog WHERE id = $1`, id).
		Scan(&g.ID, &g.Slug, &g.Name, &g.ImagePath, &g.PriceCoins, &g.IsActive, &g.SortOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan gift: %w", err)
	}
	return &g, nil
}

func (r *giftRepo) UpsertCatalogItem(ctx context.Context, db DBTX, item *domain.GiftCatalogItem) error {
	err := db.QueryRow(ctx, `
		INSERT INTO gift_catalog (slug, name, image_path, price_coins, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE SET
		  name = EXCLUDED.name,
		  image_path = EXCLUDED.image_path,
		  price_coins = EXCLUDED.price_coins,
		  is_active = EXCLUDED.is_active,
		  sort_order = EXCLUDED.sort_order,
		  updated_at = now()
		RETURNING id`,
		item.Slug, item.Name, item.ImagePath, item.PriceCoins, item.IsActive, item.SortOrder,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("upsert gift %s: %w", item.Slug, err)
	}
	return nil
}

func (r *giftRepo) IncrementInventory(ctx context.Context, db DBTX, userID string, giftID uuid.UUID) (int64, error) {
	var qty int64
	err := db.QueryRow(ctx, `
		INSERT INTO gift_inventory (user_id, gift_id, quantity) VALUES ($1, $2, 1)
		ON CONFLICT (user_id, gift_id) DO UPDATE
		  SET quantity = gift_inventory.quantity + 1, updated_at = now()
		RETURNING quantity`, userID, giftID).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("increment inventory: %w", err)
	}
	return qty, nil
}

func (r *giftRepo) DecrementInventory(ctx context.Context, db DBTX, userID string, giftID uuid.UUID) (int64, bool, error) {
	var qty int64
	err := db.QueryRow(ctx, `
		UPDATE gift_inventory SET quantity = quantity - 1, updated_at = now()
		WHERE user_id = $1 AND gift_id = $2 AND quantity >= 1
		RETURNING quantity`, userID, giftID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("decrement inventory: %w", err)
	}
	return qty, true, nil
}

func (r *giftRepo) ListInventory(ctx context.Context, db DBTX, userID string) ([]domain.GiftInventoryItem, error) {
	rows, err := db.Query(ctx, `
		SELECT i.gift_id, g.name, g.image_path, i.quantity, i.updated_at
		FROM gift_inventory i
		JOIN gift_catalog g ON g.id = i.gift_id
		WHERE i.user_id = $1 AND i.quantity > 0
		ORDER BY i.updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	items := []domain.GiftInventoryItem{}
	for rows.Next() {
		var it domain.GiftInventoryItem
		if err := rows.Scan(&it.GiftID, &it.GiftName, &it.GiftImagePath, &it.Quantity, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *giftRepo) InsertSend(ctx context.Context, db DBTX, s *domain.GiftSend) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := db.QueryRow(ctx, `
		INSERT INTO gift_sends (id, sender_user_id, recipient_user_id, gift_id, price_coins)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		s.ID, s.SenderUserID, s.RecipientUserID, s.GiftID, s.PriceCoins,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert gift send: %w", err)
	}
	return nil
}

func (r *giftRepo) ListSends(ctx context.Context, db DBTX, senderUserID string, limit int) ([]domain.GiftHistoryItem, error) {
	rows, err := db.Query(ctx, `
		SELECT s.id, s.gift_id, g.name, g.image_path, s.recipient_user_id, s.price_coins, s.created_at
		FROM gift_sends s
		JOIN gift_catalog g ON g.id = s.gift_id
		WHERE s.sender_user_id = $1
		ORDER BY s.created_at DESC
		LIMIT $2`, senderUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("query gift sends: %w", err)
	}
	defer rows.Close()

	items := []domain.GiftHistoryItem{}
	for rows.Next() {
		var h domain.GiftHistoryItem
		if err := rows.Scan(&h.ID, &h.GiftID, &h.GiftName, &h.GiftImagePath, &h.RecipientUserID, &h.PriceCoins, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gift send row: %w", err)
		}
		items = append(items, h)
	}
	return items, rows.Err()
}
