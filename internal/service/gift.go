package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/ledger"
	"github.com/pairly/wallet/internal/projection"
	"github.com/pairly/wallet/internal/repository"
)

// GiftService sells gifts for credits and hands them to matched users.
type GiftService struct {
	pool     repository.Pool
	gifts    repository.GiftRepository
	engine   *ledger.Engine
	outbox   repository.OutboxRepository
	matches  MatchChecker
	cache    projection.Store
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewGiftService creates a GiftService.
func NewGiftService(
	pool repository.Pool,
	gifts repository.GiftRepository,
	engine *ledger.Engine,
	outbox repository.OutboxRepository,
	matches MatchChecker,
	cache projection.Store,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *GiftService {
	return &GiftService{
		pool:     pool,
		gifts:    gifts,
		engine:   engine,
		outbox:   outbox,
		matches:  matches,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Catalog lists active gifts, served from the projection cache when warm.
func (s *GiftService) Catalog(ctx context.Context) ([]domain.GiftCatalogItem, error) {
	cached, err := projection.GetCatalog(ctx, s.cache)
	if err == nil {
		return cached.Items, nil
	}
	if !errors.Is(err, projection.ErrMiss) {
		s.logger.Warn("catalog cache read failed", "error", err)
	}

	items, err := s.gifts.ListActive(ctx, s.pool)
	if err != nil {
		return nil, domain.ErrInternal("list gift catalog", err)
	}
	if err := projection.UpdateCatalog(ctx, s.cache, items, s.cacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", "error", err)
	}
	return items, nil
}

// Inventory lists the gifts the user holds.
func (s *GiftService) Inventory(ctx context.Context, userID string) ([]domain.GiftInventoryItem, error) {
	items, err := s.gifts.ListInventory(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("list gift inventory", err)
	}
	return items, nil
}

// History lists gifts the user sent, newest first.
func (s *GiftService) History(ctx context.Context, userID string, limit int) ([]domain.GiftHistoryItem, error) {
	if limit < 1 || limit > maxPageLimit {
		return nil, domain.ErrFieldValidation("limit", fmt.Sprintf("limit must be between 1 and %d", maxPageLimit))
	}
	items, err := s.gifts.ListSends(ctx, s.pool, userID, limit)
	if err != nil {
		return nil, domain.ErrInternal("list gift history", err)
	}
	return items, nil
}

// Buy debits the gift price and adds one unit to the user's inventory.
// Pattern: lookup → tx(conditional debit → spend entry → inventory +1 → outbox)
func (s *GiftService) Buy(ctx context.Context, userID string, giftID uuid.UUID) (*domain.BuyGiftResult, error) {
	gift, err := s.findGift(ctx, giftID)
	if err != nil {
		return nil, err
	}
	if !gift.IsActive {
		return nil, domain.ErrValidation("Gift is not available")
	}

	var res *domain.BuyGiftResult
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		gid := gift.ID
		spent, err := s.engine.Spend(ctx, tx, ledger.SpendParams{
			UserID: userID,
			Amount: gift.PriceCoins,
			Reason: "Gift purchased: " + gift.Name,
			GiftID: &gid,
		})
		if err != nil {
			// Gift purchases report a short balance as a plain validation failure.
			if appErr, ok := domain.AsAppError(err); ok && appErr.Code == domain.CodeInsufficientBalance {
				return domain.ErrValidation(appErr.Message)
			}
			return err
		}

		qty, err := s.gifts.IncrementInventory(ctx, tx, userID, gift.ID)
		if err != nil {
			return fmt.Errorf("increment inventory: %w", err)
		}

		res = &domain.BuyGiftResult{
			GiftID:            gift.ID,
			PurchasedQuantity: 1,
			InventoryQuantity: qty,
			SpentCoins:        gift.PriceCoins,
			RemainingBalance:  spent.Balance,
		}
		return s.outbox.Insert(ctx, tx, domain.NewGiftPurchasedEvent(userID, gift, res))
	})
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return nil, err
		}
		return nil, domain.ErrInternal("buy gift", err)
	}

	s.logger.Info("gift purchased", "user_id", userID, "gift_id", gift.ID,
		"price", gift.PriceCoins, "inventory", res.InventoryQuantity, "balance", res.RemainingBalance)
	return res, nil
}

// SendGiftInput describes a gift handed from the caller to a matched user.
type SendGiftInput struct {
	SenderUserID    string
	RecipientUserID int64
	GiftID          uuid.UUID
	SessionID       string
}

// Send moves one unit of a gift from the sender's inventory to a matched recipient.
func (s *GiftService) Send(ctx context.Context, in SendGiftInput) (*domain.SendGiftResult, error) {
	if in.RecipientUserID <= 0 {
		return nil, domain.ErrFieldValidation("recipientUserId", "recipientUserId must be a positive integer")
	}
	if strconv.FormatInt(in.RecipientUserID, 10) == in.SenderUserID {
		return nil, domain.ErrFieldValidation("recipientUserId", "Gifts cannot be sent to yourself")
	}

	gift, err := s.findGift(ctx, in.GiftID)
	if err != nil {
		return nil, err
	}

	matched, err := s.matches.IsMatched(ctx, in.SessionID, in.RecipientUserID)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, domain.ErrForbidden("Match not found. Gifts can be sent only to matched users.")
	}

	send := &domain.GiftSend{
		SenderUserID:    in.SenderUserID,
		RecipientUserID: in.RecipientUserID,
		GiftID:          gift.ID,
		PriceCoins:      gift.PriceCoins,
	}
	var remaining int64
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var ok bool
		var err error
		remaining, ok, err = s.gifts.DecrementInventory(ctx, tx, in.SenderUserID, gift.ID)
		if err != nil {
			return fmt.Errorf("decrement inventory: %w", err)
		}
		if !ok {
			return domain.ErrValidation("Gift is not available in inventory")
		}
		if err := s.gifts.InsertSend(ctx, tx, send); err != nil {
			return fmt.Errorf("insert gift send: %w", err)
		}
		return s.outbox.Insert(ctx, tx, domain.NewGiftSentEvent(send, remaining))
	})
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return nil, err
		}
		return nil, domain.ErrInternal("send gift", err)
	}

	s.logger.Info("gift sent", "sender_user_id", in.SenderUserID, "recipient_user_id", in.RecipientUserID,
		"gift_id", gift.ID, "remaining", remaining)
	return &domain.SendGiftResult{
		GiftSendID:         send.ID,
		GiftID:             gift.ID,
		RecipientUserID:    in.RecipientUserID,
		RemainingInventory: remaining,
		CreatedAt:          send.CreatedAt,
	}, nil
}

func (s *GiftService) findGift(ctx context.Context, id uuid.UUID) (*domain.GiftCatalogItem, error) {
	gift, err := s.gifts.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, domain.ErrInternal("load gift", err)
	}
	if gift == nil {
		return nil, domain.ErrNotFound("gift", id.String())
	}
	return gift, nil
}
