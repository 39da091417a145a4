package dispatch

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
)

// Wire error codes. These are part of the public contract: clients branch on
// them, so the mapping from failure condition to code is fixed.
const (
	CodeAPIKeyRequired        = 1000
	CodeResourceRequired      = 1001
	CodeMethodRequired        = 1002
	CodeInvalidAPIKey         = 1003
	CodeSessionExpired        = 1004
	CodeAccountSessionExpired = 1005
	CodeRateLimitReached      = 1006
	CodeResourceNotMapped     = 1007
	CodeMethodNotMapped       = 1008
	CodeMethodNotRegistered   = 1009
	CodeSSLRequired           = 1010
	CodeArgumentsNotJSON      = 1011
	CodeBatchInvalidJSON      = 1012
	CodeBatchLimitExceeded    = 1013
	CodeAliasMismatch         = 1014
	CodeDuplicateAlias        = 1015
	CodeCustomResponseInBatch = 1016
	CodeInvalidPath           = 1017
	CodeInternal              = 1018

	// CodeItemNotFound is raised by repository Get when the requested row
	// does not exist. It sits outside the dispatcher range because it is an
	// invocation error owned by the resource, not the pipeline.
	CodeItemNotFound = 1100
)

// Error is the dispatch error carried through the pipeline and rendered into
// the response envelope. File, line and stack are captured at construction
// and only surface in debug mode.
type Error struct {
	Code      int
	Message   string
	ExtraInfo any

	file  string
	line  int
	trace string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// WithExtra attaches extra info that surfaces in debug responses.
func (e *Error) WithExtra(info any) *Error {
	e.ExtraInfo = info
	return e
}

// NewError creates an Error, recording the caller's file and line and the
// current stack.
func NewError(code int, message string) *Error {
	e := &Error{Code: code, Message: message}
	if _, file, line, ok := runtime.Caller(1); ok {
		e.file = file
		e.line = line
	}
	e.trace = string(debug.Stack())
	return e
}

// NewErrorf creates an Error with a formatted message.
func NewErrorf(code int, format string, args ...any) *Error {
	e := &Error{Code: code, Message: fmt.Sprintf(format, args...)}
	if _, file, line, ok := runtime.Caller(1); ok {
		e.file = file
		e.line = line
	}
	e.trace = string(debug.Stack())
	return e
}

// AsError coerces any error into an *Error. Dispatch errors pass through
// unchanged so invoked methods keep their own code and message; everything
// else becomes an internal error.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}

	e := &Error{Code: CodeInternal, Message: err.Error()}
	if _, file, line, ok := runtime.Caller(1); ok {
		e.file = file
		e.line = line
	}
	e.trace = string(debug.Stack())
	return e
}
