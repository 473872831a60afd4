// Package config loads application configuration from environment variables.
// An optional .env file in the working directory is read first so local
// development does not need exported variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all runtime configuration values. Each leaf field corresponds
// to an environment variable; nested structs group related settings.
type Config struct {
	Env      string `env:"APP_ENV, default=development"` // development | test | production
	Port     string `env:"APP_PORT, default=8080"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// BcryptCost is the work factor for password hashing.
	BcryptCost int `env:"BCRYPT_COST, default=12"`

	// TokenPurgeInterval controls how often expired refresh tokens are deleted.
	TokenPurgeInterval time.Duration `env:"TOKEN_PURGE_INTERVAL, default=1h"`

	DB        DBConfig
	JWT       JWTConfig
	Cache     CacheConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Queue     QueueConfig
}

// DBConfig selects and addresses the relational store.
type DBConfig struct {
	Driver string `env:"DB_DRIVER, default=mysql"` // mysql | sqlite
	User   string `env:"DB_USER, default=root"`
	Pass   string `env:"DB_PASS"`
	Host   string `env:"DB_HOST, default=localhost"`
	Port   string `env:"DB_PORT, default=3306"`
	Name   string `env:"DB_NAME, default=restful"`
	// Path is the sqlite database file (":memory:" for an ephemeral store).
	Path string `env:"DB_PATH, default=restful.db"`
}

// JWTConfig holds access and refresh token settings.
type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET, required"`
	Issuer     string        `env:"JWT_ISSUER, default=restful-api"`
	Audience   string        `env:"JWT_AUDIENCE, default=restful-api-clients"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL, default=15m"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL, default=168h"`
	// Leeway absorbs clock drift between issuer and verifier.
	Leeway time.Duration `env:"JWT_LEEWAY, default=30s"`
}

// Load reads .env (if present) and the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom resolves configuration using the given lookuper. Tests pass an
// envconfig.MapLookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether internal error details must be hidden.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.Cache.Backend)
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT_LEEWAY must be between 0 and 2m")
	}
	if c.Cache.SizeLimit <= 0 {
		return errors.New("CACHE_SIZE_LIMIT must be positive")
	}
	return nil
}
