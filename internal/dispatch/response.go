package dispatch

import (
	"encoding/json"
)

// ErrorDetail is the wire form of a failed dispatch, carried in the data
// field of the envelope. File, line, trace, extra info, and the raw request
// body are only populated in debug mode.
type ErrorDetail struct {
	Message     string          `json:"error_message"`
	Code        int             `json:"error_code"`
	File        string          `json:"error_file,omitempty"`
	Line        int             `json:"error_line,omitempty"`
	Trace       string          `json:"error_trace,omitempty"`
	ExtraInfo   any             `json:"error_extra_info,omitempty"`
	RequestBody string          `json:"error_request_body,omitempty"`
	Request     *RequestSummary `json:"request,omitempty"`
}

// RequestSummary echoes the call that failed, so batch clients can tell
// which entry aborted the batch.
type RequestSummary struct {
	Resource string `json:"resource"`
	Method   string `json:"method"`
	Alias    string `json:"alias,omitempty"`
}

// Envelope is the normalized response body. Every dispatch, success or
// failure, produces exactly one envelope unless a custom response replaces
// it entirely. On failure the data field holds the ErrorDetail; the data
// key is always present.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Failure returns the error detail carried in the data field, or nil for a
// successful envelope.
func (e *Envelope) Failure() *ErrorDetail {
	d, _ := e.Data.(*ErrorDetail)
	return d
}

// Response is what the transport layer writes out: either a normalized
// envelope or a raw custom payload, plus any cookies callables queued.
type Response struct {
	Envelope *Envelope
	Custom   *CustomResponse
	Cookies  []Cookie
	Status   int
}

// successEnvelope assembles the data section from completed calls. A
// non-batch request unwraps to the single result; an aliased batch keys
// results by alias; a positional batch returns them in call order.
func successEnvelope(plan *CallPlan, results []any) *Envelope {
	if !plan.Batch {
		return &Envelope{Success: true, Data: results[0]}
	}
	if plan.Aliased {
		keyed := make(map[string]any, len(results))
		for i, res := range results {
			keyed[plan.Calls[i].Alias] = res
		}
		return &Envelope{Success: true, Data: keyed}
	}
	return &Envelope{Success: true, Data: results}
}

// errorEnvelope normalizes a failure. Debug mode exposes the capture site,
// stack, and the raw request body; production responses carry only the
// message and code.
func errorEnvelope(err *Error, call *Call, raw string, debug bool) *Envelope {
	detail := &ErrorDetail{
		Message: err.Message,
		Code:    err.Code,
	}
	if debug {
		detail.File = err.file
		detail.Line = err.line
		detail.Trace = err.trace
		detail.ExtraInfo = err.ExtraInfo
		detail.RequestBody = raw
	}
	if call != nil {
		detail.Request = &RequestSummary{
			Resource: call.Resource,
			Method:   call.Method,
			Alias:    call.Alias,
		}
	}
	return &Envelope{Success: false, Data: detail}
}

// MarshalBody renders the envelope for logging and size accounting.
func (e *Envelope) MarshalBody() ([]byte, error) {
	return json.Marshal(e)
}
