// Package domain provides the shared event/settings types and canonical
// error values used across the destination engine.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes an engine error.
type ErrorKind string

const (
	// ErrorKindPredicateParse indicates a malformed subscription predicate.
	ErrorKindPredicateParse ErrorKind = "predicate_parse"

	// ErrorKindPredicateEval indicates a predicate that could not be
	// evaluated against the event.
	ErrorKindPredicateEval ErrorKind = "predicate_evaluation"

	// ErrorKindSubscriptionParse indicates settings.subscriptions was
	// neither a JSON string nor an array.
	ErrorKindSubscriptionParse ErrorKind = "subscription_parse"

	// ErrorKindUnknownAction indicates a subscription referenced an
	// unregistered action slug. This is a client error, not a server
	// fault.
	ErrorKindUnknownAction ErrorKind = "unknown_action"

	// ErrorKindValidation indicates schema validation failed. The error
	// carries the full violation list.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindTransform indicates a structurally invalid mapping
	// directive. Absent fields are not transform errors.
	ErrorKindTransform ErrorKind = "transform"

	// ErrorKindRequest indicates a network or transport failure from a
	// request step, propagated unmodified.
	ErrorKindRequest ErrorKind = "request"

	// ErrorKindCredentials is the normalized credential-test failure.
	ErrorKindCredentials ErrorKind = "credentials"
)

// Error is the canonical engine error. Handlers translate it to the
// appropriate HTTP response.
type Error struct {
	// Kind is the category of error
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Violations lists individual schema violations for validation
	// errors.
	Violations []string `json:"violations,omitempty"`

	// StatusCode overrides the status derived from Kind when non-zero
	StatusCode int `json:"-"`

	// Err is the wrapped cause, if any
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Violations)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Kind {
	case ErrorKindPredicateParse, ErrorKindSubscriptionParse, ErrorKindValidation, ErrorKindTransform:
		return http.StatusBadRequest
	case ErrorKindCredentials:
		return http.StatusUnauthorized
	case ErrorKindUnknownAction:
		return http.StatusNotFound
	case ErrorKindRequest:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new engine error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// ErrUnknownAction creates an unknown-action error for slug.
func ErrUnknownAction(slug string) *Error {
	return NewError(ErrorKindUnknownAction, fmt.Sprintf("action %q is not registered", slug))
}

// ErrValidation creates a validation error carrying all violations.
func ErrValidation(target string, violations []string) *Error {
	return &Error{
		Kind:       ErrorKindValidation,
		Message:    fmt.Sprintf("%s failed schema validation", target),
		Violations: violations,
	}
}

// ErrCredentials is the single generic credential-test failure. Every
// sub-failure maps to this value so internal detail never reaches
// untrusted callers.
func ErrCredentials() *Error {
	return NewError(ErrorKindCredentials, "credentials are invalid")
}

// ErrorStepResult shapes a failure as a step result entry. Engine
// errors keep their kind and violation list; anything else is reported
// by message only.
func ErrorStepResult(err error) StepResult {
	out := map[string]any{"error": err.Error()}
	var e *Error
	if errors.As(err, &e) {
		out["kind"] = string(e.Kind)
		if len(e.Violations) > 0 {
			out["violations"] = e.Violations
		}
	}
	return StepResult{Output: out}
}

// KindOf returns the kind of err if it is (or wraps) an engine Error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
