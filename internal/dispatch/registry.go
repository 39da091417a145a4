package dispatch

import (
	"context"
)

// Callable is the unit of invocation: positional arguments in (already
// resolved against the declared parameter list), a JSON-encodable value out.
type Callable func(ctx context.Context, rc *RequestContext, args []any) (any, error)

// registration pairs a callable with its invocation options.
type registration struct {
	fn     Callable
	custom bool
}

// RegisterOption configures a registration.
type RegisterOption func(*registration)

// WithCustomResponse marks a method whose raw return value is emitted
// verbatim instead of being wrapped in the standard envelope. Custom
// responses are only permitted for non-batch requests.
func WithCustomResponse() RegisterOption {
	return func(r *registration) { r.custom = true }
}

// Registry maps resource/method pairs to callables. It is populated at
// startup and read-only afterwards; the permission map decides whether a
// pair may be called, the registry decides what runs.
type Registry struct {
	resources map[string]map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]map[string]registration)}
}

// Register adds a callable for a resource/method pair, replacing any
// previous registration for the same pair.
func (r *Registry) Register(resource, method string, fn Callable, opts ...RegisterOption) {
	reg := registration{fn: fn}
	for _, opt := range opts {
		opt(&reg)
	}

	methods, ok := r.resources[resource]
	if !ok {
		methods = make(map[string]registration)
		r.resources[resource] = methods
	}
	methods[method] = reg
}

// Lookup returns the callable for a mapped pair. A pair that passed the
// permission map but has no registered callable is a configuration defect
// surfaced with its own code.
func (r *Registry) Lookup(resource, method string) (Callable, *Error) {
	reg, ok := r.resources[resource][method]
	if !ok {
		return nil, NewErrorf(CodeMethodNotRegistered,
			"Requested method (%s/%s) is not registered.", resource, method)
	}
	return reg.fn, nil
}

// IsCustom reports whether the pair is registered as a custom-response
// method. Unregistered pairs report false; they fail later at Lookup.
func (r *Registry) IsCustom(resource, method string) bool {
	return r.resources[resource][method].custom
}
