//go:build integration

package testutil

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pairly/wallet/internal/app"
	"github.com/pairly/wallet/internal/auth"
	"github.com/pairly/wallet/internal/guard"
	"github.com/pairly/wallet/internal/infra"
	"github.com/pairly/wallet/internal/notify"
	"github.com/pairly/wallet/internal/provider"
)

const (
	TestJWTSecret   = "integration-test-secret-0123456789abcdef"
	TestShopID      = "shop-42"
	TestShopSecret  = "shop-secret"
	TestFrontendURL = "https://app.pairly.test"
	TestDBHost      = "localhost"
	TestDBPort      = 5435
	TestDBUser      = "pairly"
	TestDBPass      = "pairly"
	TestDBName      = "pairly_wallet_test"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server  *httptest.Server
	Pool    *pgxpool.Pool
	JWTMgr  *auth.JWTManager
	Gateway *FakeGateway
	Matches *FakeMatchService
	signKey *rsa.PrivateKey
	t       *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error

	keyOnce sync.Once
	testKey *rsa.PrivateKey
	keyErr  error
)

func testDSN() string {
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, TestDBName)
}

func bootstrapDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, "postgres")
}

func ensureTestDB() error {
	if os.Getenv("TEST_DATABASE_URL") != "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bPool, err := pgxpool.New(ctx, bootstrapDSN())
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer bPool.Close()

	var exists bool
	err = bPool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}
	if !exists {
		if _, err := bPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", TestDBName)); err != nil {
			return fmt.Errorf("create test db: %w", err)
		}
	}
	return nil
}

func runMigrations() error {
	dir := infra.FindMigrationDir()
	m, err := newMigrate("file://"+filepath.ToSlash(dir), testDSN())
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		if err := ensureTestDB(); err != nil {
			poolErr = err
			return
		}
		if err := runMigrations(); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolCfg, err := pgxpool.ParseConfig(testDSN())
		if err != nil {
			poolErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		poolCfg.MaxConns = 20
		poolCfg.MinConns = 1

		sharedPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
		}
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		testKey, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("generate signing key: %v", keyErr)
	}
	return testKey
}

func publicKeyPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// NewTestEnv creates a test environment with an httptest.Server backed by the real
// router, the test database, a fake payment gateway and a fake match service.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	key := signingKey(t)

	gateway := NewFakeGateway(t)
	matches := NewFakeMatchService(t)

	breaker := guard.NewCircuitBreaker(5, 30*time.Second)
	spClient, err := provider.NewSecureProcessorClient(infra.SecureProcessorConfig{
		APIBaseURL:        gateway.URL(),
		CheckoutTokenPath: "/ctp/api/checkouts",
		ShopID:            TestShopID,
		SecretKey:         TestShopSecret,
		TestMode:          true,
		PublicKey:         publicKeyPEM(t, key),
		Timeout:           5 * time.Second,
	}, breaker, logger)
	if err != nil {
		t.Fatalf("init gateway client: %v", err)
	}

	jwtMgr := auth.NewJWTManager(TestJWTSecret, time.Hour)
	kafka := infra.NewKafkaProducer("", false, logger)

	// The router needs the server URL for gateway return links, so it is mounted after start.
	var router http.Handler
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	router = app.NewRouter(app.RouterDeps{
		DB:                 pool,
		Repos:              app.PostgresRepositories(),
		JWTMgr:             jwtMgr,
		Logger:             logger,
		Gateway:            spClient,
		Verifier:           spClient,
		Matches:            provider.NewMatchClient(matches.URL(), breaker, logger),
		Notifier:           notify.NewKafkaNotifier(kafka, "pairly.notifications", logger),
		CatalogCacheTTL:    time.Minute,
		BackendURL:         server.URL,
		FrontendURL:        TestFrontendURL,
		CORSAllowedOrigins: "*",
	})

	env := &TestEnv{
		Server:  server,
		Pool:    pool,
		JWTMgr:  jwtMgr,
		Gateway: gateway,
		Matches: matches,
		signKey: key,
		t:       t,
	}

	t.Cleanup(func() {
		server.Close()
		env.CleanAll()
	})
	env.CleanAll()
	return env
}
