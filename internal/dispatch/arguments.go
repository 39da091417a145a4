package dispatch

// ResolveArgs converts named arguments into the positional list the callable
// expects. Declared parameter names are walked in order; resolution stops at
// the first name absent from provided, returning only the accumulated
// prefix.
//
// Stopping at the first gap is a load-bearing quirk: trailing omitted
// arguments fall through to the callee's own defaults instead of arriving as
// nil, and call sites rely on that. A later-declared parameter that is
// present in provided is unreachable when an earlier one is missing.
func ResolveArgs(declared []string, provided map[string]any) []any {
	args := make([]any, 0, len(declared))
	for _, name := range declared {
		value, ok := provided[name]
		if !ok {
			break
		}
		args = append(args, value)
	}
	return args
}
