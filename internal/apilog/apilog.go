// Package apilog persists one row per executed call and answers the
// trailing-window counting query the rate limiter runs against those rows.
package apilog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/porterapi/porter/internal/database"
	"github.com/porterapi/porter/internal/dispatch"
)

// Logger writes call records to the api_log table. Writes go through the
// pool, not the request transaction: a rolled-back request must still leave
// its log rows behind.
type Logger struct {
	db     database.DBTX
	logger *slog.Logger
}

// New creates a Logger.
func New(db database.DBTX, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{db: db, logger: logger}
}

// Record inserts one call record.
func (l *Logger) Record(ctx context.Context, entry dispatch.LogEntry) error {
	_, err := l.db.Exec(ctx,
		`INSERT INTO api_log (
			request_api_key, request_resource, request_method, request_alias,
			request_arguments, request_ip, request_timestamp,
			response_has_error, response_body, response_time,
			response_query_count, response_query_time
		) VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8, $9, $10, $11)`,
		nullable(entry.APIKey),
		nullable(entry.Resource),
		nullable(entry.Method),
		nullable(entry.Alias),
		nullable(entry.Arguments),
		nullable(entry.IP),
		entry.HasError,
		entry.Body,
		entry.ResponseTime,
		entry.QueryCount,
		entry.QueryTime,
	)
	if err != nil {
		return fmt.Errorf("insert api_log: %w", err)
	}
	return nil
}

// RequestsSince counts calls recorded for an address after the cutoff.
func (l *Logger) RequestsSince(ctx context.Context, ip string, since time.Time) (int, error) {
	if ip == "" {
		return 0, nil
	}

	var count int
	err := l.db.QueryRow(ctx,
		`SELECT count(*) FROM api_log WHERE request_ip = $1 AND request_timestamp > $2`,
		ip, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count api_log: %w", err)
	}
	return count, nil
}

// nullable maps empty strings to NULL so the INET column and the optional
// text columns stay clean.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
