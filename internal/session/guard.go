package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/porterapi/porter/internal/database"
)

// Guard owns API key validation and session lifecycle against the session
// and api_user tables. Timeout bounds the idle gap between calls, life
// bounds total session age; both are seconds, zero means unbounded.
type Guard struct {
	db      database.DBTX
	keys    KeyGenerator
	timeout int
	life    int
	logger  *slog.Logger
}

// NewGuard creates a Guard. A nil key generator falls back to random keys.
func NewGuard(db database.DBTX, keys KeyGenerator, timeout, life int, logger *slog.Logger) *Guard {
	if keys == nil {
		keys = UUIDKeyGenerator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{db: db, keys: keys, timeout: timeout, life: life, logger: logger}
}

// IsValidAPIKey reports whether the key belongs to a live API user.
func (g *Guard) IsValidAPIKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	var count int
	err := g.db.QueryRow(ctx,
		`SELECT count(*) FROM api_user WHERE api_key = $1 AND deleted = 0`, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("api key lookup: %w", err)
	}
	return count > 0, nil
}

// livePredicate filters session rows to ones still inside both windows.
// $1 is the session key; timeout and life are baked in as parameters $2
// and $3 by the callers.
const livePredicate = `session_key = $1
	AND deleted = 0
	AND ($2 = 0 OR last_used_at > now() - make_interval(secs => $2))
	AND ($3 = 0 OR created_at > now() - make_interval(secs => $3))`

// Touch refreshes a session's last-used time and returns the bound account
// id. A session that matches the live predicate but gains nothing from the
// update still counts as valid, so a zero-row update falls back to a plain
// lookup before the session is declared expired.
func (g *Guard) Touch(ctx context.Context, sessionKey string) (*int64, bool, error) {
	if sessionKey == "" {
		return nil, false, nil
	}

	var externalID int64
	err := g.db.QueryRow(ctx,
		`UPDATE session SET last_used_at = now() WHERE `+livePredicate+` RETURNING external_id`,
		sessionKey, g.timeout, g.life,
	).Scan(&externalID)
	if err == nil {
		return &externalID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("session touch: %w", err)
	}

	err = g.db.QueryRow(ctx,
		`SELECT external_id FROM session WHERE `+livePredicate,
		sessionKey, g.timeout, g.life,
	).Scan(&externalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session lookup: %w", err)
	}
	return &externalID, true, nil
}

// Create opens a session for an account and returns the new key.
func (g *Guard) Create(ctx context.Context, externalID int64) (string, error) {
	key := g.keys.NewKey()
	_, err := g.db.Exec(ctx,
		`INSERT INTO session (session_key, external_id, created_at, last_used_at, timeout, life, deleted)
		 VALUES ($1, $2, now(), now(), $3, $4, 0)`,
		key, externalID, g.timeout, g.life)
	if err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}
	return key, nil
}

// Invalidate soft-deletes a session. Unknown keys are not an error; log
// out is idempotent.
func (g *Guard) Invalidate(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return nil
	}
	tag, err := g.db.Exec(ctx,
		`UPDATE session SET deleted = 1 WHERE session_key = $1 AND deleted = 0`, sessionKey)
	if err != nil {
		return fmt.Errorf("session invalidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		g.logger.Debug("invalidate on unknown session", "session_key_len", len(sessionKey))
	}
	return nil
}
