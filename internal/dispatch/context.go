package dispatch

import (
	"context"
)

// Datastore is the per-request storage handle callables run against. All
// writes in a dispatch share one transaction; Commit and Rollback are
// driven by the dispatcher, never by callables.
type Datastore interface {
	Select(ctx context.Context, table string, filters map[string]any, columns []string) ([]map[string]any, error)
	Insert(ctx context.Context, table string, values map[string]any) (int64, error)
	UpdateByID(ctx context.Context, table string, id int64, values map[string]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	QueryCount() int64
	QueryTime() float64
}

// SessionCookieName is the cookie carrying the session key.
const SessionCookieName = "session_key"

// Cookie is a cookie a callable asked to set on the HTTP response.
type Cookie struct {
	Name   string
	Value  string
	MaxAge int
}

// CustomResponse carries a raw payload that bypasses the envelope.
type CustomResponse struct {
	ContentType string
	Body        []byte
}

// RequestContext is the per-dispatch state handed to callables. It carries
// the authenticated identity, the shared transaction handle, and the
// response side effects (cookies, session changes) a callable may produce.
type RequestContext struct {
	APIKey     string
	SessionKey string
	ExternalID *int64
	IP         string
	Secure     bool

	Store Datastore

	cookies    []Cookie
	newSession string
	custom     *CustomResponse
}

// SetCookie queues a cookie for the HTTP response.
func (rc *RequestContext) SetCookie(c Cookie) {
	rc.cookies = append(rc.cookies, c)
}

// SetSession records a freshly created session key so the transport can
// emit the session cookie, and makes the key visible to later calls in
// the same batch.
func (rc *RequestContext) SetSession(key string, externalID *int64) {
	rc.newSession = key
	rc.SessionKey = key
	rc.ExternalID = externalID
}

// ClearSession drops the current session identity, typically on log out.
func (rc *RequestContext) ClearSession() {
	rc.newSession = ""
	rc.SessionKey = ""
	rc.ExternalID = nil
}

// RespondRaw replaces the envelope with a verbatim payload. Only honored
// for methods registered with WithCustomResponse.
func (rc *RequestContext) RespondRaw(contentType string, body []byte) {
	rc.custom = &CustomResponse{ContentType: contentType, Body: body}
}

// Cookies returns the cookies queued during dispatch.
func (rc *RequestContext) Cookies() []Cookie {
	return rc.cookies
}

// NewSessionKey returns the session key created during dispatch, if any.
func (rc *RequestContext) NewSessionKey() string {
	return rc.newSession
}
