// Package app assembles repositories, services and handlers into the HTTP router.
package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pairly/wallet/internal/auth"
	"github.com/pairly/wallet/internal/guard"
	"github.com/pairly/wallet/internal/handler"
	"github.com/pairly/wallet/internal/infra"
	"github.com/pairly/wallet/internal/ledger"
	"github.com/pairly/wallet/internal/projection"
	"github.com/pairly/wallet/internal/repository"
	"github.com/pairly/wallet/internal/service"
)

// DB is the database handle the router needs. *pgxpool.Pool satisfies it.
type DB interface {
	repository.Pool
	infra.Pinger
}

// Repositories groups the storage implementations used by the services.
type Repositories struct {
	Credits       repository.CreditRepository
	Transactions  repository.TransactionRepository
	PaymentTokens repository.PaymentTokenRepository
	Gifts         repository.GiftRepository
	Outbox        repository.OutboxRepository
}

// PostgresRepositories returns the SQL-backed repositories.
func PostgresRepositories() Repositories {
	return Repositories{
		Credits:       repository.NewCreditRepository(),
		Transactions:  repository.NewTransactionRepository(),
		PaymentTokens: repository.NewPaymentTokenRepository(),
		Gifts:         repository.NewGiftRepository(),
		Outbox:        repository.NewOutboxRepository(),
	}
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	DB     DB
	Repos  Repositories
	JWTMgr *auth.JWTManager
	Logger *slog.Logger

	// External collaborators
	Gateway  service.CheckoutGateway
	Verifier service.WebhookVerifier
	Matches  service.MatchChecker
	Notifier service.Notifier

	// Guards and caches
	RateLimiter     *guard.RateLimiter
	Cache           projection.Store
	CatalogCacheTTL time.Duration

	BackendURL         string
	FrontendURL        string
	CORSAllowedOrigins string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	db := deps.DB
	repos := deps.Repos

	cache := deps.Cache
	if cache == nil {
		cache = projection.NewInMemoryStore()
	}

	engine := ledger.NewEngine(repos.Credits, repos.Transactions, repos.Outbox)

	// Services
	creditsSvc := service.NewCreditsService(db, engine, repos.PaymentTokens, repos.Transactions, repos.Outbox,
		deps.Gateway, deps.BackendURL, logger)
	paymentSvc := service.NewPaymentService(db, engine, repos.PaymentTokens, repos.Transactions,
		deps.Verifier, deps.Notifier, deps.FrontendURL, logger)
	giftSvc := service.NewGiftService(db, repos.Gifts, engine, repos.Outbox, deps.Matches,
		cache, deps.CatalogCacheTTL, logger)

	// Handlers
	walletHandler := handler.NewWalletHandler(creditsSvc, logger)
	creditsHandler := handler.NewCreditsHandler(creditsSvc, logger)
	giftHandler := handler.NewGiftHandler(giftSvc, logger)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, logger)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.CORSAllowedOrigins))

	// Probes (no auth)
	r.Get("/health", handler.HealthHandler())
	r.Get("/ready", handler.ReadyHandler(db))

	// Gateway callbacks (no auth; the webhook body must stay raw for signature checks)
	r.Route("/payments", func(r chi.Router) {
		r.Get("/return", paymentHandler.Return)
		r.Post("/webhook", paymentHandler.Webhook)
	})

	// User-authenticated routes
	r.Route("/api", func(r chi.Router) {
		r.Use(handler.JSONContentType)
		r.Use(auth.Authenticate(deps.JWTMgr))

		byUser := limit(deps.RateLimiter, func(r *http.Request) string {
			return auth.UserIDFromContext(r.Context())
		})

		r.Get("/wallet", walletHandler.GetWallet)

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", creditsHandler.Balance)
			r.With(byUser).Post("/purchase", creditsHandler.Purchase)
			r.With(byUser).Post("/spend", creditsHandler.Spend)
		})

		r.Route("/gifts", func(r chi.Router) {
			r.Get("/catalog", giftHandler.Catalog)
			r.Get("/inventory", giftHandler.Inventory)
			r.Get("/history", giftHandler.History)
			r.With(byUser).Post("/buy", giftHandler.Buy)
			r.With(byUser).Post("/send", giftHandler.Send)
		})
	})

	return r
}

// limit applies the rate limiter keyed by keyFn, or nothing when no limiter is configured.
func limit(rl *guard.RateLimiter, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware(keyFn, func(w http.ResponseWriter, _ *http.Request, err error) {
		handler.RespondError(w, err)
	})
}
