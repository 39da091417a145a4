package dispatch

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/porterapi/porter/internal/log"
)

// maxLogBody caps the response body stored with each log entry.
const maxLogBody = 128 << 10

// SessionGuard validates API keys and keeps sessions alive. Touch returns
// the external id bound to the session and whether the session is still
// within its timeout and life windows.
type SessionGuard interface {
	IsValidAPIKey(ctx context.Context, key string) (bool, error)
	Touch(ctx context.Context, sessionKey string) (externalID *int64, ok bool, err error)
}

// RateBucket counts prior requests from an address. The dispatcher uses a
// trailing window over recorded calls rather than an in-memory counter so
// the limit survives restarts and is shared across instances.
type RateBucket interface {
	RequestsSince(ctx context.Context, ip string, since time.Time) (int, error)
}

// LogEntry is one recorded call, successful or not.
type LogEntry struct {
	APIKey       string
	Resource     string
	Method       string
	Arguments    string
	Alias        string
	IP           string
	HasError     bool
	Body         string
	ResponseTime float64
	QueryCount   int64
	QueryTime    float64
}

// RequestLogger persists call records.
type RequestLogger interface {
	Record(ctx context.Context, entry LogEntry) error
}

// Config holds the dispatch policy knobs.
type Config struct {
	Debug             bool
	ForceSSL          bool
	RequestsPerMinute int
	BatchLimit        int
}

// Dispatcher executes normalized requests: permission resolution,
// authentication, argument binding, invocation, and response assembly,
// all inside one storage transaction per request.
type Dispatcher struct {
	cfg         Config
	permissions *Map
	registry    *Registry
	guard       SessionGuard
	bucket      RateBucket
	reqlog      RequestLogger
	newStore    func() Datastore
	planner     *Planner
	logger      log.Logger
}

// New wires a dispatcher. newStore must return a fresh per-request
// transaction handle on every invocation.
func New(cfg Config, permissions *Map, registry *Registry, guard SessionGuard, bucket RateBucket, reqlog RequestLogger, newStore func() Datastore, logger log.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:         cfg,
		permissions: permissions,
		registry:    registry,
		guard:       guard,
		bucket:      bucket,
		reqlog:      reqlog,
		newStore:    newStore,
		planner:     &Planner{BatchLimit: cfg.BatchLimit},
		logger:      logger,
	}
}

// Dispatch runs one request end to end and always returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	if derr := d.checkRate(ctx, req); derr != nil {
		// Rate rejections are deliberately not recorded: logging them
		// would let a throttled client keep its own window full.
		return d.errorResponse(derr, nil, req.Raw)
	}

	if d.cfg.ForceSSL && !req.Secure {
		derr := NewError(CodeSSLRequired, "SSL connection required.")
		d.record(ctx, req, nil, derr)
		return d.errorResponse(derr, nil, req.Raw)
	}

	plan, derr := d.planner.Plan(*req)
	if derr != nil {
		d.record(ctx, req, nil, derr)
		return d.errorResponse(derr, nil, req.Raw)
	}

	if plan.Batch {
		for i := range plan.Calls {
			call := &plan.Calls[i]
			if d.registry.IsCustom(call.Resource, call.Method) {
				derr := NewError(CodeCustomResponseInBatch,
					"Methods with custom responses cannot be part of a batch request.")
				d.record(ctx, req, call, derr)
				return d.errorResponse(derr, call, req.Raw)
			}
		}
	}

	store := d.newStore()
	rc := &RequestContext{
		SessionKey: req.SessionKey,
		IP:         req.IP,
		Secure:     req.Secure,
		Store:      store,
	}

	results := make([]any, 0, len(plan.Calls))
	prior := make(map[string]any, len(plan.Calls))
	entries := make([]LogEntry, 0, len(plan.Calls))

	for i := range plan.Calls {
		call := &plan.Calls[i]
		start := time.Now()
		qc, qt := store.QueryCount(), store.QueryTime()

		result, derr := d.executeCall(ctx, rc, call, &plan, prior)

		elapsed := time.Since(start).Seconds()
		entry := LogEntry{
			APIKey:       call.APIKey,
			Resource:     call.Resource,
			Method:       call.Method,
			Arguments:    call.ArgumentsJSON(),
			Alias:        call.Alias,
			IP:           req.IP,
			ResponseTime: elapsed,
			QueryCount:   store.QueryCount() - qc,
			QueryTime:    store.QueryTime() - qt,
		}

		if derr != nil {
			if rbErr := store.Rollback(ctx); rbErr != nil {
				d.logger.Error("rollback failed", "error", rbErr)
			}
			env := errorEnvelope(derr, call, req.Raw, d.cfg.Debug)
			entry.HasError = true
			entry.Body = envelopeBody(env)
			d.recordEntries(ctx, append(entries, entry))
			return &Response{Envelope: env, Cookies: rc.Cookies()}
		}

		entry.Body = resultBody(result)
		entries = append(entries, entry)
		results = append(results, result)

		key := call.Alias
		if key == "" {
			key = ordinalKey(i)
		}
		prior[key] = result
	}

	if err := store.Commit(ctx); err != nil {
		derr := AsError(err)
		env := errorEnvelope(derr, nil, req.Raw, d.cfg.Debug)
		for i := range entries {
			entries[i].HasError = true
			entries[i].Body = envelopeBody(env)
		}
		d.recordEntries(ctx, entries)
		return &Response{Envelope: env, Cookies: rc.Cookies()}
	}

	d.recordEntries(ctx, entries)

	if rc.custom != nil {
		return &Response{Custom: rc.custom, Cookies: rc.Cookies()}
	}
	return &Response{Envelope: successEnvelope(&plan, results), Cookies: rc.Cookies()}
}

// executeCall runs a single call through the full gate sequence.
func (d *Dispatcher) executeCall(ctx context.Context, rc *RequestContext, call *Call, plan *CallPlan, prior map[string]any) (any, *Error) {
	switch {
	case call.APIKey == "":
		return nil, NewError(CodeAPIKeyRequired, "API key required.")
	case call.Resource == "":
		return nil, NewError(CodeResourceRequired, "Resource name required.")
	case call.Method == "":
		return nil, NewError(CodeMethodRequired, "Method name required.")
	}

	entry, derr := d.permissions.Resolve(call.Resource, call.Method)
	if derr != nil {
		return nil, derr
	}

	valid, err := d.guard.IsValidAPIKey(ctx, call.APIKey)
	if err != nil {
		return nil, AsError(err)
	}
	if !valid {
		return nil, NewError(CodeInvalidAPIKey, "Invalid API key.")
	}
	rc.APIKey = call.APIKey

	if entry.RequiresSession {
		externalID, ok, err := d.guard.Touch(ctx, rc.SessionKey)
		if err != nil {
			return nil, AsError(err)
		}
		if !ok {
			if entry.Builtin {
				return nil, NewError(CodeAccountSessionExpired, "Account session expired.")
			}
			return nil, NewError(CodeSessionExpired, "Session expired.")
		}
		rc.ExternalID = externalID
	}

	provided, derr := call.MaterializeArguments()
	if derr != nil {
		return nil, derr
	}

	if plan.Batch {
		provided, derr = resolveCrossCalls(provided, prior)
		if derr != nil {
			return nil, derr
		}
	}

	args := ResolveArgs(entry.Params, provided)

	fn, derr := d.registry.Lookup(call.Resource, call.Method)
	if derr != nil {
		return nil, derr
	}

	result, err := fn(ctx, rc, args)
	if err != nil {
		return nil, AsError(err)
	}
	return result, nil
}

// checkRate enforces the trailing-window request budget. Bucket failures
// fail open: losing the log store should degrade throttling, not take the
// whole endpoint down.
func (d *Dispatcher) checkRate(ctx context.Context, req *Request) *Error {
	if d.cfg.RequestsPerMinute <= 0 || d.bucket == nil {
		return nil
	}
	since := time.Now().Add(-time.Minute)
	count, err := d.bucket.RequestsSince(ctx, req.IP, since)
	if err != nil {
		d.logger.Warn("rate bucket unavailable", "error", err)
		return nil
	}
	if count >= d.cfg.RequestsPerMinute {
		return NewError(CodeRateLimitReached, "Requests per minute limit reached.")
	}
	return nil
}

// record persists a single pre-execution rejection against the top-level
// request fields.
func (d *Dispatcher) record(ctx context.Context, req *Request, call *Call, derr *Error) {
	entry := LogEntry{
		APIKey:    req.APIKey,
		Resource:  req.Resource,
		Method:    req.Method,
		Arguments: req.Arguments,
		IP:        req.IP,
		HasError:  true,
	}
	if call != nil {
		entry.APIKey = call.APIKey
		entry.Resource = call.Resource
		entry.Method = call.Method
		entry.Arguments = call.ArgumentsJSON()
		entry.Alias = call.Alias
	}
	entry.Body = envelopeBody(errorEnvelope(derr, call, req.Raw, d.cfg.Debug))
	d.recordEntries(ctx, []LogEntry{entry})
}

func (d *Dispatcher) recordEntries(ctx context.Context, entries []LogEntry) {
	if d.reqlog == nil {
		return
	}
	for _, entry := range entries {
		if len(entry.Body) > maxLogBody {
			entry.Body = entry.Body[:maxLogBody]
		}
		if err := d.reqlog.Record(ctx, entry); err != nil {
			d.logger.Warn("request log write failed", "error", err)
		}
	}
}

func (d *Dispatcher) errorResponse(derr *Error, call *Call, raw string) *Response {
	return &Response{Envelope: errorEnvelope(derr, call, raw, d.cfg.Debug)}
}

func envelopeBody(env *Envelope) string {
	b, err := env.MarshalBody()
	if err != nil {
		return ""
	}
	return string(b)
}

func resultBody(result any) string {
	b, err := json.Marshal(result)
	if err != nil {
		return ""
	}
	return string(b)
}

func ordinalKey(i int) string {
	return strconv.Itoa(i)
}
