package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/ledger"
	"github.com/pairly/wallet/internal/projection"
	"github.com/pairly/wallet/internal/provider"
	"github.com/pairly/wallet/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []provider.CheckoutRequest
	err      error
	token    string
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req provider.CheckoutRequest) (*provider.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	token := g.token
	if token == "" {
		token = "chk-" + req.Metadata["payment_token_id"]
	}
	return &provider.Checkout{
		Token:       token,
		RedirectURL: "https://pay.example/" + token,
		Raw:         []byte(`{"checkout":{"token":"` + token + `"}}`),
	}, nil
}

type fakeVerifier struct{ reject bool }

func (v fakeVerifier) VerifySignature(_ []byte, signature string) error {
	if v.reject || signature == "bad" {
		return domain.ErrForbidden("Invalid webhook signature")
	}
	return nil
}

type fakeMatches struct {
	ids []int64
	err error
}

func (m fakeMatches) IsMatched(_ context.Context, sessionID string, recipientID int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if sessionID == "" {
		return false, domain.ErrUnauthorized("Missing dating session")
	}
	for _, id := range m.ids {
		if id == recipientID {
			return true, nil
		}
	}
	return false, nil
}

type notification struct {
	userID           string
	credits, balance int64
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *fakeNotifier) PaymentSucceeded(_ context.Context, userID string, credits, balance int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userID, credits, balance})
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var errGatewayDown = errors.New("gateway down")

type fixture struct {
	store    *memory.Store
	engine   *ledger.Engine
	gateway  *fakeGateway
	notifier *fakeNotifier
	credits  *CreditsService
	payments *PaymentService
	gifts    *GiftService
}

func newFixture(matches MatchChecker) *fixture {
	store := memory.New()
	engine := ledger.NewEngine(store.Credits(), store.Transactions(), store.Outbox())
	gw := &fakeGateway{}
	notifier := &fakeNotifier{}
	logger := testLogger()
	if matches == nil {
		matches = fakeMatches{}
	}
	return &fixture{
		store:    store,
		engine:   engine,
		gateway:  gw,
		notifier: notifier,
		credits: NewCreditsService(store, engine, store.PaymentTokens(), store.Transactions(), store.Outbox(),
			gw, "https://api.pairly.test", logger),
		payments: NewPaymentService(store, engine, store.PaymentTokens(), store.Transactions(),
			fakeVerifier{}, notifier, "https://app.pairly.test", logger),
		gifts: NewGiftService(store, store.Gifts(), engine, store.Outbox(), matches,
			projection.NewInMemoryStore(), time.Minute, logger),
	}
}

func requireAppError(t *testing.T, err error) *domain.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	return appErr
}
