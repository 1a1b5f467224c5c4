package config

import (
	"fmt"

	pkgconfig "github.com/oguzkaracar/coursecommerce/pkg/config"
)

// Gateway modes. Mock keeps the ledger in memory for local development.
const (
	GatewayModeMock = "mock"
	GatewayModeREST = "rest"
)

// Config holds all configuration for the commerce service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost          string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort          int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser          string `env:"POSTGRES_USER" envDefault:"commerce"`
	PostgresPass          string `env:"POSTGRES_PASSWORD" envDefault:"commerce_secret"`
	PostgresDB            string `env:"POSTGRES_DB" envDefault:"commerce"`
	PostgresSSL           string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_MINUTES" envDefault:"30"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Auth
	JWTSecret string `env:"JWT_SECRET,required"`

	// Payment gateway
	GatewayMode    string `env:"PAYMENT_GATEWAY_MODE" envDefault:"mock"`
	GatewayBaseURL string `env:"PAYMENT_GATEWAY_URL" envDefault:""`
	GatewayAPIKey  string `env:"PAYMENT_GATEWAY_API_KEY" envDefault:""`

	// Caching
	EntitlementCacheTTLMins int `env:"ENTITLEMENT_CACHE_TTL_MINUTES" envDefault:"15"`
	EventDedupTTLHours      int `env:"EVENT_DEDUP_TTL_HOURS" envDefault:"24"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load commerce config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.Environment == "production" || c.Environment == "staging" {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in %s", c.Environment)
		}
	}
	switch c.GatewayMode {
	case GatewayModeMock:
	case GatewayModeREST:
		if c.GatewayBaseURL == "" {
			return fmt.Errorf("PAYMENT_GATEWAY_URL is required in rest mode")
		}
	default:
		return fmt.Errorf("invalid gateway mode: %q", c.GatewayMode)
	}
	return nil
}
