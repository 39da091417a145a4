package config

import (
	"fmt"
	"slices"
)

// validSSLModes are the sslmode values accepted by pgx.
var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr cannot be empty", ErrInvalidListenAddr)
	}

	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: requests_per_minute cannot be negative, got %d",
			ErrInvalidRateLimit, c.RequestsPerMinute)
	}

	if c.RateBurst < 0 {
		return fmt.Errorf("%w: rate_burst cannot be negative, got %d",
			ErrInvalidRateLimit, c.RateBurst)
	}

	if c.BatchLimit < 0 {
		return fmt.Errorf("%w: batch_limit cannot be negative, got %d",
			ErrInvalidBatchLimit, c.BatchLimit)
	}

	if c.SessionTimeout < 0 {
		return fmt.Errorf("%w: session_timeout cannot be negative, got %d",
			ErrInvalidSessionWindow, c.SessionTimeout)
	}

	if c.SessionLife < 0 {
		return fmt.Errorf("%w: session_life cannot be negative, got %d",
			ErrInvalidSessionWindow, c.SessionLife)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not one of %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
