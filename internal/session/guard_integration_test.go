//go:build integration
// +build integration

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porterapi/porter/internal/testutil"
)

func TestGuardIntegration(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := tdb.Pool.Exec(ctx,
		`INSERT INTO api_user (username, password, api_key, deleted)
		 VALUES ('alice', 'x', $1, 0), ('bob', 'x', $2, 1)`,
		"live-key", "deleted-key")
	require.NoError(t, err)

	t.Run("api key validation", func(t *testing.T) {
		guard := NewGuard(tdb.Pool, nil, 0, 0, nil)

		valid, err := guard.IsValidAPIKey(ctx, "live-key")
		require.NoError(t, err)
		assert.True(t, valid)

		valid, err = guard.IsValidAPIKey(ctx, "deleted-key")
		require.NoError(t, err)
		assert.False(t, valid)

		valid, err = guard.IsValidAPIKey(ctx, "never-issued")
		require.NoError(t, err)
		assert.False(t, valid)

		valid, err = guard.IsValidAPIKey(ctx, "")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("create then touch", func(t *testing.T) {
		guard := NewGuard(tdb.Pool, nil, 3600, 86400, nil)

		key, err := guard.Create(ctx, 42)
		require.NoError(t, err)
		require.Len(t, key, 64)

		externalID, ok, err := guard.Touch(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotNil(t, externalID)
		assert.Equal(t, int64(42), *externalID)
	})

	t.Run("touch unknown session", func(t *testing.T) {
		guard := NewGuard(tdb.Pool, nil, 3600, 86400, nil)

		_, ok, err := guard.Touch(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("touch empty key", func(t *testing.T) {
		guard := NewGuard(tdb.Pool, nil, 3600, 86400, nil)

		_, ok, err := guard.Touch(ctx, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("idle timeout expires the session", func(t *testing.T) {
		guard := NewGuard(tdb.Pool, nil, 60, 0, nil)

		key, err := guard.Create(ctx, 7)
		require.NoError(t, err)

		// Age the session past the idle window.
		_, err = tdb.Pool.Exec(ctx,
			`UPDATE session SET last_used_at = now() - interval '2 minutes' WHERE session_key = $1`, key)
		require.NoError(t, err)

		_, ok, err := guard.Touch(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("life window expires the session", func(t *testing.T) {
		guard := NewGuard(tdb.Pool, nil, 0, 3600, nil)

		key, err := guard.Create(ctx, 7)
		require.NoError(t, err)

		_, err = tdb.Pool.Exec(ctx,
			`UPDATE session SET created_at = now() - interval '2 hours' WHERE session_key = $1`, key)
		require.NoError(t, err)

		_, ok, err := guard.Touch(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("zero windows never expire", func(t *testing.T) {
		guard := NewGuard(tdb.Pool, nil, 0, 0, nil)

		key, err := guard.Create(ctx, 7)
		require.NoError(t, err)

		_, err = tdb.Pool.Exec(ctx,
			`UPDATE session SET last_used_at = now() - interval '1 year', created_at = now() - interval '1 year'
			 WHERE session_key = $1`, key)
		require.NoError(t, err)

		_, ok, err := guard.Touch(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("invalidate ends the session", func(t *testing.T) {
		guard := NewGuard(tdb.Pool, nil, 3600, 86400, nil)

		key, err := guard.Create(ctx, 7)
		require.NoError(t, err)
		require.NoError(t, guard.Invalidate(ctx, key))

		_, ok, err := guard.Touch(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		// Logging out twice is fine.
		require.NoError(t, guard.Invalidate(ctx, key))
	})
}
