// Package config reads the auction service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting of the api and worker processes
type Config struct {
	HTTPAddr string

	// DatabaseURL selects the Postgres adapters; empty means in-memory
	DatabaseURL    string
	RabbitMQURL    string
	RedisURL       string
	OutboxExchange string

	JWTPublicKeyPath string
	JWTIssuer        string

	BidLockTimeout        time.Duration
	PresenceTimeout       time.Duration
	PresenceSweepInterval time.Duration
	NameCacheTTL          time.Duration
}

var ErrMissingSetting = errors.New("missing required setting")

// Load reads .env.local then .env (neither overrides the real environment)
// and builds a Config.
func Load() (*Config, error) {
	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("AUCTION_DB_URL"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		OutboxExchange:   getenv("OUTBOX_EXCHANGE", "auction.events"),
		JWTPublicKeyPath: os.Getenv("JWT_PUBLIC_KEY_PATH"),
		JWTIssuer:        os.Getenv("JWT_ISSUER"),
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"BID_LOCK_TIMEOUT", 2 * time.Second, &cfg.BidLockTimeout},
		{"PRESENCE_TIMEOUT", 5 * time.Minute, &cfg.PresenceTimeout},
		{"PRESENCE_SWEEP_INTERVAL", 60 * time.Second, &cfg.PresenceSweepInterval},
		{"NAME_CACHE_TTL", 10 * time.Minute, &cfg.NameCacheTTL},
	}
	for _, d := range durations {
		v, err := durationEnv(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	return cfg, nil
}

// RequireAuth checks the settings needed to validate bearer tokens
func (c *Config) RequireAuth() error {
	if c.JWTPublicKeyPath == "" {
		return fmt.Errorf("%w: JWT_PUBLIC_KEY_PATH", ErrMissingSetting)
	}
	if c.JWTIssuer == "" {
		return fmt.Errorf("%w: JWT_ISSUER", ErrMissingSetting)
	}
	return nil
}

// RequireRelay checks the settings the outbox relay needs
func (c *Config) RequireRelay() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: AUCTION_DB_URL", ErrMissingSetting)
	}
	if c.RabbitMQURL == "" {
		return fmt.Errorf("%w: RABBITMQ_URL", ErrMissingSetting)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
