// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN for the durable session store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis host:port for the session cache (e.g. localhost:6379).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisDB is the Redis logical database index.
	RedisDB int `mapstructure:"REDIS_DB"`
	// RedisPassword is the Redis AUTH password; empty for no auth.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// JWTSecret is the HS256 signing secret shared by all service instances.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// AccessTokenTTL is the access token lifetime (e.g. "30m").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime (e.g. "168h").
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// InactivityTimeout is how long a user may be idle before the next refresh is rejected (e.g. "1h").
	InactivityTimeout string `mapstructure:"INACTIVITY_TIMEOUT"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// SessionRetention is the window after which stale active rows are swept to expired (e.g. "6h").
	SessionRetention string `mapstructure:"SESSION_RETENTION"`
	// ActivityFlushInterval is the minimum spacing between durable last_activity writes per session (e.g. "60s").
	ActivityFlushInterval string `mapstructure:"ACTIVITY_FLUSH_INTERVAL"`
	// OTLPEndpoint is the OTLP gRPC endpoint for metrics export; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h") // 7d
	v.SetDefault("INACTIVITY_TIMEOUT", "1h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_RETENTION", "6h")
	v.SetDefault("ACTIVITY_FLUSH_INTERVAL", "60s")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.RedisAddr == "" {
		return nil, errors.New("config: REDIS_ADDR must be set")
	}

	if cfg.JWTSecret == "" && cfg.Env == "production" {
		return nil, errors.New("config: JWT_SECRET must be set when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessTokenTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTokenTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// InactivityWindow parses InactivityTimeout as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) InactivityWindow() time.Duration {
	d, err := time.ParseDuration(c.InactivityTimeout)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// RetentionWindow parses SessionRetention as a time.Duration. Returns 6h if unset or invalid.
func (c *Config) RetentionWindow() time.Duration {
	d, err := time.ParseDuration(c.SessionRetention)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// FlushInterval parses ActivityFlushInterval as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) FlushInterval() time.Duration {
	d, err := time.ParseDuration(c.ActivityFlushInterval)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
