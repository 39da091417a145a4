package dispatch

import (
	"encoding/json"
)

// Request is one incoming HTTP request as seen by the dispatcher, already
// reduced to wire fields by the transport layer.
type Request struct {
	Resource  string
	Method    string
	Arguments string // JSON object string, may be empty
	APIKey    string
	Batch     string // JSON array string; non-empty selects batch mode; aliases live on batch entries

	SessionKey string // from the session_key cookie, empty when absent
	IP         string
	Secure     bool // request arrived over TLS (directly or via trusted proxy)
	Raw        string
}

// Call is one planned unit of execution. Non-batch calls carry their
// arguments as the undecoded rawArguments string; batch calls carry them
// already decoded.
type Call struct {
	Resource string
	Method   string
	Alias    string
	APIKey   string

	rawArguments string
	arguments    map[string]any
}

// MaterializeArguments decodes the call's arguments into a named-argument
// map. An empty arguments field yields an empty map.
func (c *Call) MaterializeArguments() (map[string]any, *Error) {
	if c.arguments != nil {
		return c.arguments, nil
	}
	if c.rawArguments == "" {
		return map[string]any{}, nil
	}

	var provided map[string]any
	if err := json.Unmarshal([]byte(c.rawArguments), &provided); err != nil {
		return nil, NewError(CodeArgumentsNotJSON, "Arguments are not valid JSON.")
	}
	if provided == nil {
		provided = map[string]any{}
	}
	return provided, nil
}

// ArgumentsJSON renders the call's arguments for the request log.
func (c *Call) ArgumentsJSON() string {
	if c.arguments != nil {
		encoded, err := json.Marshal(c.arguments)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
	return c.rawArguments
}

// CallPlan is the ordered execution plan derived from one request.
// Invariant: either every call has an alias or none does; aliases are
// pairwise unique.
type CallPlan struct {
	Calls   []Call
	Batch   bool
	Aliased bool
}
