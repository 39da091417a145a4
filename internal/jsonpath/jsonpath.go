// Package jsonpath evaluates simple dotted and bracketed accessor paths
// against decoded JSON values.
//
// Supported forms:
//
//	foo.bar
//	foo[0].bar
//	foo['bar']["baz"]
//
// This is intentionally not a JSONPath implementation; the dispatcher only
// needs plain key and index traversal for cross-call substitution.
package jsonpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath indicates a path segment that does not exist in the data.
var ErrInvalidPath = errors.New("invalid path string")

// normalizer rewrites bracket notation to dot notation so a single split
// handles both forms.
var normalizer = strings.NewReplacer("[", ".", "]", "", "'", "", `"`, "")

// Evaluate walks data along path and returns the referenced value.
func Evaluate(data any, path string) (any, error) {
	normalized := normalizer.Replace(path)
	for _, key := range strings.Split(normalized, ".") {
		if key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}

		var ok bool
		data, ok = step(data, key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return data, nil
}

// step descends one segment into data.
func step(data any, key string) (any, bool) {
	switch v := data.(type) {
	case map[string]any:
		val, ok := v[key]
		return val, ok
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	case []map[string]any:
		// Result rows arrive as Go values, not decoded JSON.
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}
