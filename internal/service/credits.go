package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/ledger"
	"github.com/pairly/wallet/internal/pricing"
	"github.com/pairly/wallet/internal/provider"
	"github.com/pairly/wallet/internal/repository"
	"golang.org/x/sync/errgroup"
)

// CreditsService handles credit purchases, spending and the wallet summary.
type CreditsService struct {
	pool         repository.Pool
	engine       *ledger.Engine
	tokens       repository.PaymentTokenRepository
	transactions repository.TransactionRepository
	outbox       repository.OutboxRepository
	gateway      CheckoutGateway
	backendURL   string
	logger       *slog.Logger
}

// NewCreditsService creates a CreditsService.
func NewCreditsService(
	pool repository.Pool,
	engine *ledger.Engine,
	tokens repository.PaymentTokenRepository,
	transactions repository.TransactionRepository,
	outbox repository.OutboxRepository,
	gateway CheckoutGateway,
	backendURL string,
	logger *slog.Logger,
) *CreditsService {
	return &CreditsService{
		pool:         pool,
		engine:       engine,
		tokens:       tokens,
		transactions: transactions,
		outbox:       outbox,
		gateway:      gateway,
		backendURL:   backendURL,
		logger:       logger,
	}
}

// PurchaseInput is a credit purchase request after HTTP decoding.
type PurchaseInput struct {
	AmountEUR   float64
	PricingMode pricing.Mode
	PresetKey   *int
}

// Purchase prices the request, opens a gateway checkout and records a PENDING
// grant linked to a new payment token. The balance moves only when the webhook
// confirms the payment.
func (s *CreditsService) Purchase(ctx context.Context, userID string, in PurchaseInput) (*domain.CheckoutResult, error) {
	quote, err := pricing.Resolve(pricing.Request{AmountEUR: in.AmountEUR, Mode: in.PricingMode, PresetKey: in.PresetKey})
	if err != nil {
		return nil, err
	}

	if s.backendURL == "" {
		return nil, domain.ErrInternal("BACKEND_URL is not configured", nil)
	}

	if _, err := s.engine.EnsureAccount(ctx, s.pool, userID); err != nil {
		return nil, domain.ErrInternal("ensure credit account", err)
	}

	token := &domain.PaymentToken{
		UserID:      userID,
		Status:      domain.PaymentCreated,
		AmountCents: quote.AmountCents,
		Currency:    domain.Currency,
	}
	if err := s.tokens.Create(ctx, s.pool, token); err != nil {
		return nil, domain.ErrInternal("create payment token", err)
	}

	returnURL, err := buildReturnURL(s.backendURL, token.ID.String())
	if err != nil {
		return nil, domain.ErrInternal("build return url", err)
	}

	description := fmt.Sprintf("Credit purchase: %d credits", quote.Credits)
	checkout, err := s.gateway.CreateCheckout(ctx, provider.CheckoutRequest{
		AmountCents: quote.AmountCents,
		Currency:    domain.Currency,
		Description: description,
		ReturnURL:   returnURL,
		CustomerID:  userID,
		Metadata: map[string]string{
			"reference_id":     fmt.Sprintf("credits:%d", quote.Credits),
			"payment_token_id": token.ID.String(),
			"user_id":          userID,
		},
	})
	if err != nil {
		s.abandonToken(ctx, token)
		s.logger.Error("gateway checkout failed", "payment_token_id", token.ID, "user_id", userID, "error", err)
		return nil, domain.ErrUpstream("Payment gateway unavailable", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		pending, err := s.tokens.MarkPending(ctx, tx, token.ID, checkout.Token, checkout.Raw)
		if err != nil {
			return err
		}
		grant, err := s.engine.OpenGrant(ctx, tx, ledger.OpenGrantParams{
			UserID:         userID,
			Credits:        quote.Credits,
			Reason:         description,
			PaymentTokenID: token.ID,
		})
		if err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewPurchaseStartedEvent(pending, grant))
	})
	if err != nil {
		s.abandonToken(ctx, token)
		s.logger.Error("record pending purchase failed, checkout orphaned",
			"payment_token_id", token.ID, "checkout_token", checkout.Token, "user_id", userID, "error", err)
		return nil, domain.ErrInternal("record pending purchase", err)
	}

	s.logger.Info("credit purchase started",
		"user_id", userID, "payment_token_id", token.ID, "credits", quote.Credits,
		"amount_cents", quote.AmountCents, "mode", quote.Mode)

	return &domain.CheckoutResult{CheckoutToken: checkout.Token, RedirectURL: checkout.RedirectURL}, nil
}

// abandonToken marks a token whose checkout never opened. Best effort.
func (s *CreditsService) abandonToken(ctx context.Context, token *domain.PaymentToken) {
	_, err := s.tokens.ApplyVerdict(ctx, s.pool, token.ID, domain.PaymentTokenUpdate{Status: domain.PaymentError})
	if err != nil {
		s.logger.Warn("mark payment token as errored", "payment_token_id", token.ID, "error", err)
	}
}

func buildReturnURL(backendURL, tokenID string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", err
	}
	u = u.JoinPath("payments", "return")
	q := u.Query()
	q.Set("token", tokenID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Wallet returns the balance, the derived totals and one page of transactions.
func (s *CreditsService) Wallet(ctx context.Context, userID string, limit, offset int) (*domain.WalletView, error) {
	if limit < 1 || limit > maxPageLimit {
		return nil, domain.ErrFieldValidation("limit", fmt.Sprintf("limit must be between 1 and %d", maxPageLimit))
	}
	if offset < 0 {
		return nil, domain.ErrFieldValidation("offset", "offset must not be negative")
	}

	acct, err := s.engine.EnsureAccount(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("load wallet", err)
	}

	var (
		totals domain.WalletTotals
		page   []domain.CreditTransaction
		count  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.transactions.Totals(gctx, s.pool, userID)
		return err
	})
	g.Go(func() error {
		var err error
		page, err = s.transactions.ListByUser(gctx, s.pool, userID, limit, offset)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = s.transactions.CountByUser(gctx, s.pool, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.ErrInternal("load wallet", err)
	}

	if page == nil {
		page = []domain.CreditTransaction{}
	}
	return &domain.WalletView{
		Wallet: domain.Wallet{
			Balance:      acct.Balance,
			Currency:     domain.Currency,
			WalletTotals: totals,
		},
		Transactions: page,
		Total:        count,
	}, nil
}

// Balance returns the caller's current balance.
func (s *CreditsService) Balance(ctx context.Context, userID string) (int64, error) {
	bal, err := s.engine.Balance(ctx, s.pool, userID)
	if err != nil {
		return 0, domain.ErrInternal("load balance", err)
	}
	return bal, nil
}

// SpendInput is a generic debit, e.g. a paid generation.
type SpendInput struct {
	Amount       int64
	Reason       string
	GenerationID *string
}

// Spend debits credits for a non-gift purchase.
func (s *CreditsService) Spend(ctx context.Context, userID string, in SpendInput) (*ledger.SpendResult, error) {
	var res *ledger.SpendResult
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		res, err = s.engine.Spend(ctx, tx, ledger.SpendParams{
			UserID:       userID,
			Amount:       in.Amount,
			Reason:       in.Reason,
			GenerationID: in.GenerationID,
		})
		return err
	})
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return nil, err
		}
		return nil, domain.ErrInternal("spend credits", err)
	}
	s.logger.Info("credits spent", "user_id", userID, "amount", in.Amount, "balance", res.Balance)
	return res, nil
}
