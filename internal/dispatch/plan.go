package dispatch

import (
	"encoding/json"
)

// Planner expands one request into an ordered call plan.
type Planner struct {
	// BatchLimit caps the number of calls in one batch. Zero disables the
	// check.
	BatchLimit int
}

// batchCall is the wire shape of one element of the batch array. Per-call
// API keys are not accepted; every call inherits the top-level key.
type batchCall struct {
	Resource  string          `json:"resource"`
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments"`
	Alias     string          `json:"alias"`
}

// Plan derives the call plan for a request. Non-batch requests plan as a
// single call built from the top-level fields; batch requests parse the
// batch array, enforce the batch ceiling, inherit the top-level API key, and
// validate alias consistency.
func (p *Planner) Plan(req Request) (CallPlan, *Error) {
	if req.Batch == "" {
		return CallPlan{
			Calls: []Call{{
				Resource:     req.Resource,
				Method:       req.Method,
				APIKey:       req.APIKey,
				rawArguments: req.Arguments,
			}},
		}, nil
	}

	var raw []batchCall
	if err := json.Unmarshal([]byte(req.Batch), &raw); err != nil {
		return CallPlan{}, NewError(CodeBatchInvalidJSON, "Batch is not valid JSON.")
	}

	if p.BatchLimit > 0 && len(raw) > p.BatchLimit {
		return CallPlan{}, NewErrorf(CodeBatchLimitExceeded,
			"Batch limit exceeded. Maximum number of calls per batch is %d.", p.BatchLimit)
	}

	plan := CallPlan{Calls: make([]Call, 0, len(raw)), Batch: true}
	for _, bc := range raw {
		args, err := decodeBatchArguments(bc.Arguments)
		if err != nil {
			return CallPlan{}, err
		}
		plan.Calls = append(plan.Calls, Call{
			Resource:  bc.Resource,
			Method:    bc.Method,
			Alias:     bc.Alias,
			APIKey:    req.APIKey,
			arguments: args,
		})
	}

	if err := validateAliases(&plan); err != nil {
		return CallPlan{}, err
	}
	return plan, nil
}

// decodeBatchArguments decodes a batch call's arguments field. Both an
// embedded JSON object and a JSON-encoded object string are accepted; the
// latter keeps batch elements symmetrical with the top-level arguments
// field.
func decodeBatchArguments(raw json.RawMessage) (map[string]any, *Error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		if nested == "" {
			return map[string]any{}, nil
		}
		raw = json.RawMessage(nested)
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, NewError(CodeArgumentsNotJSON, "Arguments are not valid JSON.")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// validateAliases enforces the all-or-none and uniqueness rules and records
// whether the plan is aliased.
func validateAliases(plan *CallPlan) *Error {
	aliased := 0
	seen := make(map[string]bool, len(plan.Calls))
	for _, call := range plan.Calls {
		if call.Alias == "" {
			continue
		}
		aliased++
		if seen[call.Alias] {
			return NewErrorf(CodeDuplicateAlias, "Duplicate alias (%s).", call.Alias)
		}
		seen[call.Alias] = true
	}

	switch aliased {
	case 0:
		return nil
	case len(plan.Calls):
		plan.Aliased = true
		return nil
	default:
		return NewError(CodeAliasMismatch,
			"Either all calls in a batch must be aliased or none of them.")
	}
}
