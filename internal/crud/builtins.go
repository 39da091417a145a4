package crud

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/porterapi/porter/internal/dispatch"
)

// rememberMaxAge is the session cookie lifetime when the client asks to be
// remembered, in seconds. Without it the cookie dies with the browser.
const rememberMaxAge = 14 * 24 * 3600

// SessionManager is the slice of session lifecycle the built-in resources
// drive. Satisfied by *session.Guard.
type SessionManager interface {
	Create(ctx context.Context, externalID int64) (string, error)
	Invalidate(ctx context.Context, sessionKey string) error
}

// Account bundles the built-in account-management resources: API user
// provisioning, log in, and log out. These always exist regardless of the
// operator's permission map.
type Account struct {
	guard  SessionManager
	hasher Hasher
	users  *Repository
	apis   *Repository
}

// NewAccount wires the built-in resources.
func NewAccount(guard SessionManager, hasher Hasher) *Account {
	return &Account{
		guard:  guard,
		hasher: hasher,
		users:  NewRepository("user"),
		apis:   NewRepository("api_user"),
	}
}

// BuiltinPartition declares the built-in permission entries. Log out is the
// only built-in that needs a live session.
func BuiltinPartition() dispatch.Partition {
	return dispatch.Partition{
		Session: dispatch.CallMap{
			"user": {"log_out": {}},
		},
		NonSession: dispatch.CallMap{
			"user":     {"log_in": {"username", "password", "remember_me"}},
			"api_user": {"insert": {"attributes"}},
		},
	}
}

// Register adds the built-in callables to the registry.
func (a *Account) Register(reg *dispatch.Registry) {
	reg.Register("api_user", "insert", a.insertAPIUser)
	reg.Register("user", "log_in", a.logIn)
	reg.Register("user", "log_out", a.logOut)
}

// insertAPIUser provisions an API user: the password is hashed, the API
// key generated server side and returned exactly once.
func (a *Account) insertAPIUser(ctx context.Context, rc *dispatch.RequestContext, args []any) (any, error) {
	attrs, err := objectArg(args, 0)
	if err != nil {
		return nil, err
	}

	username, _ := attrs["username"].(string)
	password, _ := attrs["password"].(string)
	if username == "" || password == "" {
		return nil, dispatch.NewError(dispatch.CodeInternal, "Username and password are required.")
	}

	hashed, err := a.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	apiKey := strings.ReplaceAll(uuid.NewString(), "-", "")

	id, err := a.apis.Create(ctx, rc.Store, map[string]any{
		"username": username,
		"password": hashed,
		"api_key":  apiKey,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{"api_user_id": id, "api_key": apiKey}, nil
}

// logIn authenticates a user and opens a session. Bad credentials return
// false rather than an error so clients can branch without parsing error
// envelopes; which of the two checks failed is deliberately not revealed.
func (a *Account) logIn(ctx context.Context, rc *dispatch.RequestContext, args []any) (any, error) {
	if len(args) < 2 {
		return false, nil
	}
	username, _ := args[0].(string)
	password, _ := args[1].(string)
	remember := false
	if len(args) > 2 {
		remember, _ = args[2].(bool)
	}
	if username == "" || password == "" {
		return false, nil
	}

	rows, err := a.users.Read(ctx, rc.Store, map[string]any{"username": username})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return false, nil
	}

	hashed, _ := rows[0]["password"].(string)
	if a.hasher.Compare(hashed, password) != nil {
		return false, nil
	}

	userID, derr := rowID(rows[0], "user_id")
	if derr != nil {
		return nil, derr
	}

	key, err := a.guard.Create(ctx, userID)
	if err != nil {
		return nil, err
	}
	rc.SetSession(key, &userID)

	maxAge := 0
	if remember {
		maxAge = rememberMaxAge
	}
	rc.SetCookie(dispatch.Cookie{Name: dispatch.SessionCookieName, Value: key, MaxAge: maxAge})

	return true, nil
}

// logOut ends the current session and expires the cookie.
func (a *Account) logOut(ctx context.Context, rc *dispatch.RequestContext, _ []any) (any, error) {
	if err := a.guard.Invalidate(ctx, rc.SessionKey); err != nil {
		return nil, err
	}
	rc.ClearSession()
	rc.SetCookie(dispatch.Cookie{Name: dispatch.SessionCookieName, Value: "", MaxAge: -1})
	return true, nil
}

// rowID pulls an integer key out of a result row.
func rowID(row map[string]any, column string) (int64, *dispatch.Error) {
	switch v := row[column].(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, dispatch.NewErrorf(dispatch.CodeInternal, "Row is missing its %s key.", column)
	}
}
