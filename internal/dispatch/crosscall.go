package dispatch

import (
	"strings"

	"github.com/porterapi/porter/internal/jsonpath"
)

// Cross-call references are strings of the form {=path}, where path is
// evaluated against prior results keyed by alias or ordinal position.
const (
	crossCallPrefix = "{="
	crossCallSuffix = "}"
)

// resolveCrossCalls walks a named-argument map and substitutes cross-call
// references with values from prior results. Only earlier calls exist in
// prior, so a forward or self reference is an unresolvable path by
// construction. The input map is not mutated.
func resolveCrossCalls(provided map[string]any, prior map[string]any) (map[string]any, *Error) {
	out := make(map[string]any, len(provided))
	for key, value := range provided {
		resolved, err := resolveValue(value, prior)
		if err != nil {
			return nil, err
		}
		out[key] = resolved
	}
	return out, nil
}

// resolveValue substitutes references in one argument value, recursing into
// nested containers. Non-reference strings pass through unchanged.
func resolveValue(value any, prior map[string]any) (any, *Error) {
	switch v := value.(type) {
	case string:
		if !strings.HasPrefix(v, crossCallPrefix) || !strings.HasSuffix(v, crossCallSuffix) {
			return v, nil
		}
		path := v[len(crossCallPrefix) : len(v)-len(crossCallSuffix)]
		resolved, err := jsonpath.Evaluate(prior, path)
		if err != nil {
			return nil, NewErrorf(CodeInvalidPath, "Invalid path string (%s).", path)
		}
		return resolved, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			resolved, err := resolveValue(elem, prior)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			resolved, err := resolveValue(elem, prior)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}
