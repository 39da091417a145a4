package dispatch

// CallMap declares exposed methods per resource along with the ordered
// parameter names each method accepts. Methods not present in a CallMap do
// not exist as far as the dispatcher is concerned.
type CallMap map[string]map[string][]string

// Partition splits a CallMap by session requirement: calls under Session
// require a valid session, calls under NonSession do not.
type Partition struct {
	Session    CallMap
	NonSession CallMap
}

// Entry is the resolved permission for one resource/method pair.
type Entry struct {
	RequiresSession bool
	Params          []string

	// Builtin marks entries from the built-in account-management map.
	// Session failures on builtin entries use a distinct error code so
	// clients can tell a login-flow problem from an operator-call problem.
	Builtin bool
}

// Map is the immutable permission map, loaded once at startup from the
// built-in partition and the operator-defined partition. The built-in
// partition always wins ties; the precedence is fixed so resolution is
// deterministic.
type Map struct {
	builtin Partition
	custom  Partition
}

// NewMap builds the permission map.
func NewMap(builtin, custom Partition) *Map {
	return &Map{builtin: builtin, custom: custom}
}

// Resolve maps a resource/method pair to its permission entry. A resource
// absent from every partition and a mapped resource with an unmapped method
// fail with distinct codes.
func (m *Map) Resolve(resource, method string) (Entry, *Error) {
	sources := []struct {
		calls           CallMap
		requiresSession bool
		builtin         bool
	}{
		{m.builtin.Session, true, true},
		{m.builtin.NonSession, false, true},
		{m.custom.Session, true, false},
		{m.custom.NonSession, false, false},
	}

	resourceMapped := false
	for _, src := range sources {
		methods, ok := src.calls[resource]
		if !ok {
			continue
		}
		resourceMapped = true

		params, ok := methods[method]
		if !ok {
			continue
		}
		return Entry{
			RequiresSession: src.requiresSession,
			Params:          params,
			Builtin:         src.builtin,
		}, nil
	}

	if !resourceMapped {
		return Entry{}, NewErrorf(CodeResourceNotMapped,
			"Requested resource (%s) is not mapped.", resource)
	}
	return Entry{}, NewErrorf(CodeMethodNotMapped,
		"Requested method (%s/%s) is not mapped.", resource, method)
}
