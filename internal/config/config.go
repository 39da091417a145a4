// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (PORTER_* plus DATABASE_URL)
//  2. Config file (porter.yaml in the working directory or /etc/porter)
//  3. Default values
//
// Validation returns named sentinel errors so callers can branch with
// errors.Is(). Sensitive values (the database password) are never logged.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidListenAddr indicates the listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRateLimit indicates requests_per_minute is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidBatchLimit indicates batch_limit is negative.
	ErrInvalidBatchLimit = errors.New("invalid batch limit")

	// ErrInvalidSessionWindow indicates a session timeout/life value is negative.
	ErrInvalidSessionWindow = errors.New("invalid session window")
)

// ResourceConfig lists the exposed methods of one resource, split by
// session requirement.
type ResourceConfig struct {
	Session    []string `mapstructure:"session"`
	NonSession []string `mapstructure:"non_session"`
}

// Config stores application configuration.
type Config struct {
	// HTTP surface.
	ListenAddr string `mapstructure:"listen_addr"`
	Debug      bool   `mapstructure:"debug"`
	ForceSSL   bool   `mapstructure:"force_ssl"`
	TrustProxy bool   `mapstructure:"trust_proxy"`

	// RequestsPerMinute is the trailing-60-second per-IP call ceiling,
	// counted from the request log. Zero disables the check.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`

	// RateBurst is the per-IP token-bucket burst for the transport guard.
	// Zero disables the guard entirely.
	RateBurst int `mapstructure:"rate_burst"`

	// BatchLimit caps the number of calls in one batch request. Zero means
	// unlimited.
	BatchLimit int `mapstructure:"batch_limit"`

	// Session windows in seconds. Zero means the corresponding bound is
	// not applied to newly created sessions.
	SessionTimeout int `mapstructure:"session_timeout"`
	SessionLife    int `mapstructure:"session_life"`

	// CookieDomain is the domain sessions cookies are scoped to. Empty
	// leaves the cookie host-only.
	CookieDomain string `mapstructure:"cookie_domain"`

	// Resources is the operator-defined permission map: which tables are
	// exposed and which of the standard methods each partition carries.
	// Methods not listed here do not exist as far as clients are concerned.
	Resources map[string]ResourceConfig `mapstructure:"resources"`

	// Storage configuration (see storage.go).
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("porter")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/porter")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("debug", false)
	v.SetDefault("force_ssl", false)
	v.SetDefault("trust_proxy", false)

	v.SetDefault("requests_per_minute", 30)
	v.SetDefault("rate_burst", 0)
	v.SetDefault("batch_limit", 10)

	// 8 hour inactivity timeout, no absolute life bound.
	v.SetDefault("session_timeout", 28800)
	v.SetDefault("session_life", 0)
	v.SetDefault("cookie_domain", "")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "porter")
	v.SetDefault("postgres_password", "porter_dev_password")
	v.SetDefault("postgres_db_name", "porter")
	v.SetDefault("postgres_ssl_mode", "disable")
}

func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "PORTER_LISTEN_ADDR")
	mustBind("debug", "PORTER_DEBUG")
	mustBind("force_ssl", "PORTER_FORCE_SSL")
	mustBind("trust_proxy", "PORTER_TRUST_PROXY")
	mustBind("requests_per_minute", "PORTER_REQUESTS_PER_MINUTE")
	mustBind("rate_burst", "PORTER_RATE_BURST")
	mustBind("batch_limit", "PORTER_BATCH_LIMIT")
	mustBind("session_timeout", "PORTER_SESSION_TIMEOUT")
	mustBind("session_life", "PORTER_SESSION_LIFE")
	mustBind("cookie_domain", "PORTER_COOKIE_DOMAIN")
	mustBind("postgres_host", "PORTER_POSTGRES_HOST")
	mustBind("postgres_port", "PORTER_POSTGRES_PORT")
	mustBind("postgres_user", "PORTER_POSTGRES_USER")
	mustBind("postgres_password", "PORTER_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "PORTER_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "PORTER_POSTGRES_SSL_MODE")
}
