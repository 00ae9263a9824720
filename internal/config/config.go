// Package config loads process configuration from the environment.
package config

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// EnvProduction is the environment name that enables strict settings.
const EnvProduction = "production"

// Config holds every tunable the server reads at startup.
type Config struct {
	Addr    string `env:"STUDIO_ADDR, default=:8080"`
	Env     string `env:"STUDIO_ENV, default=development"`
	BaseURL string `env:"STUDIO_BASE_URL, default=http://localhost:8080"`
	DBPath  string `env:"STUDIO_DB_PATH, default=studio.db"`

	// CSRFKeyHex is 64 hex characters (32 bytes). Required in production.
	CSRFKeyHex string `env:"STUDIO_CSRF_KEY"`

	LogLevel      string `env:"STUDIO_LOG_LEVEL, default=info"`
	SlowRequestMs int    `env:"STUDIO_SLOW_REQUEST_MS, default=200"`
	SlowQueryMs   int    `env:"STUDIO_SLOW_QUERY_MS, default=50"`
	RateLimit     int    `env:"STUDIO_RATE_LIMIT_PER_SECOND, default=10"`
	// KeystrokeRateLimit budgets the per-keystroke wizard checks apart
	// from RateLimit.
	KeystrokeRateLimit int `env:"STUDIO_KEYSTROKE_RATE_LIMIT_PER_SECOND, default=50"`

	SessionTTL    time.Duration `env:"STUDIO_SESSION_TTL, default=24h"`
	DebounceQuiet time.Duration `env:"STUDIO_DEBOUNCE_QUIET, default=500ms"`

	Admin AdminConfig
	Email EmailConfig
	Redis RedisConfig
}

// DefaultAdminPassword seeds development databases only.
const DefaultAdminPassword = "cambiar-esta-clave"

// AdminConfig seeds the first administrator when the store is empty.
type AdminConfig struct {
	Email    string `env:"STUDIO_ADMIN_EMAIL, default=admin@strivestudio.mx"`
	Password string `env:"STUDIO_ADMIN_PASSWORD, default=cambiar-esta-clave"`
}

// EmailConfig selects and configures outbound mail.
type EmailConfig struct {
	ResendKey string `env:"STUDIO_RESEND_KEY"`
	From      string `env:"STUDIO_EMAIL_FROM, default=Strive Studio <noreply@strivestudio.mx>"`
	ReplyTo   string `env:"STUDIO_EMAIL_REPLY_TO, default=hola@strivestudio.mx"`
}

// RedisConfig selects the Redis session store. An empty Addr keeps
// sessions in process memory.
type RedisConfig struct {
	Addr     string `env:"STUDIO_REDIS_ADDR"`
	Password string `env:"STUDIO_REDIS_PASSWORD"`
	DB       int    `env:"STUDIO_REDIS_DB, default=0"`
	Prefix   string `env:"STUDIO_REDIS_PREFIX, default=studio"`
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from the given key/value map. Used by tests.
func LoadFrom(ctx context.Context, vars map[string]string) (Config, error) {
	return load(ctx, envconfig.MapLookuper(vars))
}

func load(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c Config) Validate() error {
	if c.IsProduction() && c.CSRFKeyHex == "" {
		return errors.New("STUDIO_CSRF_KEY is required in production")
	}
	if c.IsProduction() && c.Admin.Password == DefaultAdminPassword {
		return errors.New("STUDIO_ADMIN_PASSWORD must be set in production")
	}
	if c.CSRFKeyHex != "" {
		if _, err := c.CSRFKey(); err != nil {
			return err
		}
	}
	if c.DebounceQuiet <= 0 {
		return errors.New("STUDIO_DEBOUNCE_QUIET must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("STUDIO_SESSION_TTL must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// CSRFKey decodes the configured CSRF secret. It returns nil, nil when
// no key is configured.
func (c Config) CSRFKey() ([]byte, error) {
	if c.CSRFKeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.CSRFKeyHex)
	if err != nil || len(key) != 32 {
		return nil, errors.New("STUDIO_CSRF_KEY must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
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
