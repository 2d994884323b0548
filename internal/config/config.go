// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// App holds every setting the slotswap binary reads from the environment.
type App struct {
	// Network
	HTTPAddr       string        `envconfig:"HTTP_ADDR" default:":8000"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	CORSOrigins    []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Storage
	DatabasePath string `envconfig:"DATABASE_PATH" default:"slotswap.db"`

	// Auth
	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"30m"`

	// Expiry; PendingTTL of zero disables the sweeper.
	PendingTTL     time.Duration `envconfig:"PENDING_TTL" default:"0"`
	ExpiryInterval time.Duration `envconfig:"EXPIRY_INTERVAL" default:"1m"`

	// Messaging; an empty URL disables publishing.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"slotswap.swaps"`

	// Tracing; an empty endpoint disables export.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env from the working directory when present, then the
// process environment. Variables already set are not overridden by .env.
func Load() (App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return App{}, fmt.Errorf("load .env: %w", err)
	}

	var c App
	if err := envconfig.Process("", &c); err != nil {
		return App{}, fmt.Errorf("process env: %w", err)
	}
	return c, nil
}

// ValidateServe checks the settings the HTTP server cannot start without.
func (c App) ValidateServe() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.PendingTTL < 0 {
		return errors.New("PENDING_TTL must not be negative")
	}
	return nil
}

// SlogLevel parses LogLevel, defaulting to info.
func (c App) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
