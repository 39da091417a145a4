package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/porterapi/porter/internal/dispatch"
)

type fakeSessions struct {
	created     []int64
	invalidated []string
	nextKey     string
}

func (s *fakeSessions) Create(_ context.Context, externalID int64) (string, error) {
	s.created = append(s.created, externalID)
	return s.nextKey, nil
}

func (s *fakeSessions) Invalidate(_ context.Context, sessionKey string) error {
	s.invalidated = append(s.invalidated, sessionKey)
	return nil
}

func newTestAccount() (*Account, *fakeSessions) {
	sessions := &fakeSessions{nextKey: "fresh-session-key"}
	return NewAccount(sessions, BcryptHasher{Cost: bcrypt.MinCost}), sessions
}

func TestInsertAPIUser(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions key and hashes password", func(t *testing.T) {
		store := &fakeStore{insertID: 5}
		account, _ := newTestAccount()
		rc := &dispatch.RequestContext{Store: store}

		result, err := account.insertAPIUser(ctx, rc, []any{
			map[string]any{"username": "svc", "password": "hunter2"},
		})
		require.NoError(t, err)

		out, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, int64(5), out["api_user_id"])
		assert.Len(t, out["api_key"], 32)

		assert.Equal(t, "api_user", store.insertTable)
		assert.Equal(t, "svc", store.insertValues["username"])
		assert.NotEqual(t, "hunter2", store.insertValues["password"])
		assert.Equal(t, out["api_key"], store.insertValues["api_key"])
	})

	t.Run("rejects missing credentials", func(t *testing.T) {
		store := &fakeStore{}
		account, _ := newTestAccount()
		rc := &dispatch.RequestContext{Store: store}

		_, err := account.insertAPIUser(ctx, rc, []any{map[string]any{"username": "svc"}})
		require.Error(t, err)
	})
}

func TestLogIn(t *testing.T) {
	ctx := context.Background()
	hasher := BcryptHasher{Cost: bcrypt.MinCost}
	hashed, err := hasher.Hash("hunter2")
	require.NoError(t, err)

	userRow := map[string]any{"user_id": int64(42), "username": "alice", "password": hashed}

	t.Run("valid credentials open a session", func(t *testing.T) {
		store := &fakeStore{rows: []map[string]any{userRow}}
		account, sessions := newTestAccount()
		rc := &dispatch.RequestContext{Store: store}

		result, err := account.logIn(ctx, rc, []any{"alice", "hunter2"})
		require.NoError(t, err)
		assert.Equal(t, true, result)

		assert.Equal(t, []int64{42}, sessions.created)
		assert.Equal(t, "fresh-session-key", rc.SessionKey)
		require.NotNil(t, rc.ExternalID)
		assert.Equal(t, int64(42), *rc.ExternalID)

		cookies := rc.Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, dispatch.SessionCookieName, cookies[0].Name)
		assert.Equal(t, "fresh-session-key", cookies[0].Value)
		assert.Zero(t, cookies[0].MaxAge)
	})

	t.Run("remember me extends the cookie", func(t *testing.T) {
		store := &fakeStore{rows: []map[string]any{userRow}}
		account, _ := newTestAccount()
		rc := &dispatch.RequestContext{Store: store}

		_, err := account.logIn(ctx, rc, []any{"alice", "hunter2", true})
		require.NoError(t, err)
		assert.Equal(t, rememberMaxAge, rc.Cookies()[0].MaxAge)
	})

	t.Run("wrong password returns false", func(t *testing.T) {
		store := &fakeStore{rows: []map[string]any{userRow}}
		account, sessions := newTestAccount()
		rc := &dispatch.RequestContext{Store: store}

		result, err := account.logIn(ctx, rc, []any{"alice", "wrong"})
		require.NoError(t, err)
		assert.Equal(t, false, result)
		assert.Empty(t, sessions.created)
		assert.Empty(t, rc.Cookies())
	})

	t.Run("unknown user returns false", func(t *testing.T) {
		store := &fakeStore{}
		account, _ := newTestAccount()
		rc := &dispatch.RequestContext{Store: store}

		result, err := account.logIn(ctx, rc, []any{"mallory", "hunter2"})
		require.NoError(t, err)
		assert.Equal(t, false, result)
	})

	t.Run("missing arguments return false", func(t *testing.T) {
		store := &fakeStore{}
		account, _ := newTestAccount()
		rc := &dispatch.RequestContext{Store: store}

		result, err := account.logIn(ctx, rc, []any{"alice"})
		require.NoError(t, err)
		assert.Equal(t, false, result)
	})

	t.Run("lookup only sees live users", func(t *testing.T) {
		store := &fakeStore{rows: []map[string]any{userRow}}
		account, _ := newTestAccount()
		rc := &dispatch.RequestContext{Store: store}

		_, err := account.logIn(ctx, rc, []any{"alice", "hunter2"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"username": "alice", "deleted": 0}, store.selectFilters)
	})
}

func TestLogOut(t *testing.T) {
	store := &fakeStore{}
	account, sessions := newTestAccount()
	rc := &dispatch.RequestContext{Store: store, SessionKey: "live-session"}

	result, err := account.logOut(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	assert.Equal(t, []string{"live-session"}, sessions.invalidated)
	assert.Empty(t, rc.SessionKey)
	assert.Nil(t, rc.ExternalID)

	cookies := rc.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestBuiltinPartition(t *testing.T) {
	p := BuiltinPartition()
	assert.Contains(t, p.Session["user"], "log_out")
	assert.Equal(t, []string{"username", "password", "remember_me"}, p.NonSession["user"]["log_in"])
	assert.Equal(t, []string{"attributes"}, p.NonSession["api_user"]["insert"])
}
