package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure returned by a public operation. Business-rule
// kinds are produced by validation and never retried; infrastructure kinds
// come out of the resilience layer.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindAlreadyInState         Kind = "already_in_state"
	KindLimitExceeded          Kind = "limit_exceeded"
	KindValidationFailure      Kind = "validation_failure"
	KindPersistenceFailure     Kind = "persistence_failure"
	KindEventPublishFailure    Kind = "event_publish_failure"
	KindDependencyUnavailable  Kind = "dependency_unavailable"
)

// Failure is the error type carried across the engine's public surface.
// Every public operation returns either a success value or exactly one
// *Failure; raw errors never cross that boundary.
type Failure struct {
	Kind    Kind
	Message string
	cause   error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.cause }

// Is matches failures by kind, so errors.Is(err, faults.NotFound("")) works
// for any message.
func (f *Failure) Is(target error) bool {
	var t *Failure
	if !errors.As(target, &t) {
		return false
	}
	return f.Kind == t.Kind
}

func newf(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Failure {
	return newf(KindNotFound, format, args...)
}

func InvalidStateTransition(format string, args ...any) *Failure {
	return newf(KindInvalidStateTransition, format, args...)
}

func AlreadyInState(format string, args ...any) *Failure {
	return newf(KindAlreadyInState, format, args...)
}

func LimitExceeded(format string, args ...any) *Failure {
	return newf(KindLimitExceeded, format, args...)
}

func ValidationFailure(format string, args ...any) *Failure {
	return newf(KindValidationFailure, format, args...)
}

func PersistenceFailure(cause error, format string, args ...any) *Failure {
	f := newf(KindPersistenceFailure, format, args...)
	f.cause = cause
	return f
}

func EventPublishFailure(cause error, format string, args ...any) *Failure {
	f := newf(KindEventPublishFailure, format, args...)
	f.cause = cause
	return f
}

func DependencyUnavailable(cause error, format string, args ...any) *Failure {
	f := newf(KindDependencyUnavailable, format, args...)
	f.cause = cause
	return f
}

// KindOf returns the failure kind of err, or "" when err is not a *Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsBusiness reports whether err is a business-rule failure: produced by
// validation, terminal for the call, never retried and never fed to the
// circuit breaker.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindInvalidStateTransition, KindAlreadyInState,
		KindLimitExceeded, KindValidationFailure:
		return true
	}
	return false
}
