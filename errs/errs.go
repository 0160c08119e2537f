// Package errs defines the runtime's error taxonomy. Every operation that
// can fail returns (or wraps) one of these kinds so callers can branch with
// errors.As instead of parsing strings. Each Error is a struct implementing
// error and Unwrap so errors.Is/As compose across node, middleware, and
// store boundaries.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a runtime error.
type Kind string

const (
	// KindValidation covers invalid graph structure, schema/params, or a
	// rejected HumanResponse.
	KindValidation Kind = "validation"
	// KindExecution covers a node that threw during run().
	KindExecution Kind = "execution"
	// KindMissingContext covers a required ExecutionContext key that was absent.
	KindMissingContext Kind = "missing_context"
	// KindCheckpoint covers checkpoint store I/O, corruption, or an
	// expired/missing checkpoint.
	KindCheckpoint Kind = "checkpoint"
	// KindTimeout covers a HITL timeout or middleware-imposed deadline.
	KindTimeout Kind = "timeout"
	// KindCancellation covers a run cancelled by a caller signal.
	KindCancellation Kind = "cancellation"
	// KindBus covers a publish/subscribe/serialization failure on the event bus.
	KindBus Kind = "bus"
	// KindNotFound covers an unknown tool/agent/graph/checkpoint id.
	KindNotFound Kind = "not_found"
)

// Error is the structured error type returned by every fallible operation in
// this module. NodeID and GraphID are populated when the error originates
// from a specific node or graph; both may be empty for bus/store errors.
type Error struct {
	Kind    Kind
	NodeID  string
	GraphID string
	Message string
	Cause   error
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf constructs an Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithNode returns a copy of e annotated with the failing node id.
func (e *Error) WithNode(nodeID string) *Error {
	out := *e
	out.NodeID = nodeID
	return &out
}

// WithGraph returns a copy of e annotated with the graph id.
func (e *Error) WithGraph(graphID string) *Error {
	out := *e
	out.GraphID = graphID
	return &out
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.NodeID != "" {
		msg = fmt.Sprintf("%s (node=%s)", msg, e.NodeID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap supports errors.Is/errors.As across wrapped causes.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, errs.New(errs.KindTimeout, "")) style checks, or more
// idiomatically use IsKind below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// FromError converts an arbitrary error into an *Error chain, using kind
// when err is not already a structured Error (an existing *Error in err's
// chain is returned as is).
func FromError(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: kind, Message: err.Error(), Cause: errors.Unwrap(err)}
}
