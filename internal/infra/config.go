package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL    string `env:"DATABASE_URL"`
	PGHost         string `env:"PGHOST" envDefault:"localhost"`
	PGPort         int    `env:"PGPORT" envDefault:"5432"`
	PGUser         string `env:"PGUSER" envDefault:"pairly"`
	PGPassword     string `env:"PGPASSWORD" envDefault:"pairly"`
	PGDatabase     string `env:"PGDATABASE" envDefault:"pairly_wallet"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`
	MigrationsPath string `env:"MIGRATIONS_PATH"`

	// JWT issued by the platform identity service
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-me-in-production"`

	// Server
	APIPort            int    `env:"API_PORT" envDefault:"3100"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	BackendURL         string `env:"BACKEND_URL"`
	FrontendURL        string `env:"FRONTEND_URL"`

	// Kafka
	KafkaBrokers       string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	NotificationsTopic string        `env:"NOTIFICATIONS_TOPIC" envDefault:"pairly.notifications"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxRetention    time.Duration `env:"OUTBOX_RETENTION" envDefault:"168h"`

	// Guards and caches
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	CatalogCacheTTL    time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
	CatalogFile        string        `env:"CATALOG_FILE" envDefault:"db/catalog.yaml"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`

	// External services
	MatchServiceURL string                `env:"MATCH_SERVICE_URL" envDefault:"http://localhost:3000/api"`
	SecureProcessor SecureProcessorConfig `envPrefix:"SECURE_PROCESSOR_"`
}

// SecureProcessorConfig configures the hosted checkout gateway.
type SecureProcessorConfig struct {
	APIBaseURL           string        `env:"API_BASE_URL" envDefault:"https://checkout.secure-processor.com"`
	CheckoutTokenPath    string        `env:"CHECKOUT_TOKEN_PATH" envDefault:"/ctp/api/checkouts"`
	CheckoutFallbackPath string        `env:"CHECKOUT_FALLBACK_PATH"`
	ShopID               string        `env:"SHOP_ID"`
	SecretKey            string        `env:"SECRET_KEY"`
	TestMode             bool          `env:"TEST_MODE" envDefault:"false"`
	PublicKey            string        `env:"PUBLIC_KEY"`
	Timeout              time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// LoadConfig loads an optional .env file and parses environment variables into a Config struct.
// Variables already set in the environment win over the file.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// A missing file is expected outside local development.
		_ = godotenv.Load(f)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute)
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.SecureProcessor.ShopID == "" || c.SecureProcessor.SecretKey == "" {
		return fmt.Errorf("SECURE_PROCESSOR_SHOP_ID and SECURE_PROCESSOR_SECRET_KEY are required")
	}
	if c.SecureProcessor.PublicKey == "" {
		return fmt.Errorf("SECURE_PROCESSOR_PUBLIC_KEY is required to verify webhooks; set ALLOW_INSECURE_DEFAULTS=true to accept unsigned webhooks in local dev")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
