package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/ledger"
	"github.com/pairly/wallet/internal/provider"
	"github.com/pairly/wallet/internal/repository"
)

// PaymentService applies gateway verdicts to payment tokens and grants.
type PaymentService struct {
	pool         repository.Pool
	engine       *ledger.Engine
	tokens       repository.PaymentTokenRepository
	transactions repository.TransactionRepository
	verifier     WebhookVerifier
	notifier     Notifier
	frontendURL  string
	logger       *slog.Logger
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(
	pool repository.Pool,
	engine *ledger.Engine,
	tokens repository.PaymentTokenRepository,
	transactions repository.TransactionRepository,
	verifier WebhookVerifier,
	notifier Notifier,
	frontendURL string,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		pool:         pool,
		engine:       engine,
		tokens:       tokens,
		transactions: transactions,
		verifier:     verifier,
		notifier:     notifier,
		frontendURL:  frontendURL,
		logger:       logger,
	}
}

// Reconcile verifies and applies one webhook delivery. Deliveries may repeat or
// race; a successful payment credits its grant exactly once.
func (s *PaymentService) Reconcile(ctx context.Context, body []byte, signature string) (*domain.ReconcileResult, error) {
	if err := s.verifier.VerifySignature(body, signature); err != nil {
		s.logger.Warn("webhook signature rejected", "error", err)
		return nil, err
	}

	n, err := provider.ParseNotification(body)
	if err != nil {
		return nil, err
	}

	tokenID, err := uuid.Parse(n.PaymentTokenID)
	if err != nil {
		return nil, domain.ErrNotFound("payment token", n.PaymentTokenID)
	}

	token, err := s.tokens.ApplyVerdict(ctx, s.pool, tokenID, domain.PaymentTokenUpdate{
		Status:     n.Status,
		GatewayUID: n.UID,
		RawPayload: n.Raw,
	})
	if err != nil {
		return nil, domain.ErrInternal("update payment token", err)
	}
	if token == nil {
		return nil, domain.ErrNotFound("payment token", n.PaymentTokenID)
	}

	result := &domain.ReconcileResult{PaymentTokenID: tokenID, Status: token.Status}
	var settled *ledger.GrantResult

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		grant, err := s.transactions.FindByPaymentToken(ctx, tx, tokenID)
		if err != nil {
			return err
		}
		if grant == nil {
			return domain.ErrNotFound("credit transaction for payment token", n.PaymentTokenID)
		}
		result.Transaction = grant

		switch {
		case n.Status == domain.PaymentSuccessful:
			if grant.Status == domain.TxStatusFailed {
				s.logger.Warn("late success for failed grant, crediting",
					"payment_token_id", tokenID, "transaction_id", grant.ID)
			}
			res, err := s.engine.SettleGrant(ctx, tx, grant)
			if err != nil {
				return err
			}
			result.Transaction = res.Transaction
			result.Credited = res.Applied
			if res.Applied {
				settled = res
			}
		case n.Status.IsFailure():
			res, err := s.engine.FailGrant(ctx, tx, grant, n.Status)
			if err != nil {
				return err
			}
			result.Transaction = res.Transaction
		}
		return nil
	})
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return nil, err
		}
		return nil, domain.ErrInternal("reconcile payment", err)
	}

	s.logger.Info("payment webhook applied",
		"payment_token_id", tokenID, "gateway_status", n.Status,
		"token_status", token.Status, "credited", result.Credited)

	if settled != nil {
		s.notifyPaid(ctx, settled)
	}
	return result, nil
}

func (s *PaymentService) notifyPaid(ctx context.Context, res *ledger.GrantResult) {
	if s.notifier == nil {
		return
	}
	tx := res.Transaction
	if err := s.notifier.PaymentSucceeded(ctx, tx.UserID, tx.Amount, res.Balance); err != nil {
		s.logger.Warn("payment notification failed", "user_id", tx.UserID, "transaction_id", tx.ID, "error", err)
	}
}

// ReturnParams are the query parameters of the gateway's browser redirect.
type ReturnParams struct {
	Token  string
	Status string
	UID    string
	Query  url.Values
}

// ReturnResult tells the handler where to send the browser.
type ReturnResult struct {
	Status      string
	RedirectURL string
}

// HandleReturn records the status reported on the browser return. The input is
// unsigned, so it never credits; crediting waits for the webhook.
func (s *PaymentService) HandleReturn(ctx context.Context, p ReturnParams) (*ReturnResult, error) {
	if p.Token == "" {
		return nil, domain.ErrFieldValidation("token", "Missing payment token")
	}
	tokenID, err := uuid.Parse(p.Token)
	if err != nil {
		return nil, domain.ErrNotFound("payment token", p.Token)
	}

	raw, err := json.Marshal(flattenQuery(p.Query))
	if err != nil {
		return nil, domain.ErrInternal("encode return payload", err)
	}

	update := domain.PaymentTokenUpdate{Status: provider.MapStatus(p.Status), RawPayload: raw}
	if p.UID != "" {
		uid := p.UID
		update.GatewayUID = &uid
	}
	token, err := s.tokens.ApplyVerdict(ctx, s.pool, tokenID, update)
	if err != nil {
		return nil, domain.ErrInternal("update payment token", err)
	}
	if token == nil {
		return nil, domain.ErrNotFound("payment token", p.Token)
	}

	res := &ReturnResult{Status: p.Status}
	if res.Status == "" {
		res.Status = "pending"
	}
	if s.frontendURL != "" {
		redirect, err := buildWalletURL(s.frontendURL, p)
		if err != nil {
			return nil, domain.ErrInternal("build frontend redirect", err)
		}
		res.RedirectURL = redirect
	}
	return res, nil
}

func flattenQuery(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func buildWalletURL(frontendURL string, p ReturnParams) (string, error) {
	u, err := url.Parse(frontendURL)
	if err != nil {
		return "", err
	}
	u = u.JoinPath("wallet")
	q := url.Values{}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	q.Set("token", p.Token)
	if p.UID != "" {
		q.Set("uid", p.UID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
