package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred.
type Phase string

const (
	PhaseScan     Phase = "scan"     // marker pre-filter
	PhaseDecode   Phase = "decode"   // binary to module tree
	PhaseRewrite  Phase = "rewrite"  // instruction visitor pass
	PhaseEncode   Phase = "encode"   // module tree to binary
	PhaseRegister Phase = "register" // hook registration strategies
	PhaseLoad     Phase = "load"     // host load pipeline
	PhaseBridge   Phase = "bridge"   // runtime bridge subsystems
)

// Kind categorizes the error.
type Kind string

const (
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindInvalidInput   Kind = "invalid_input"
	KindConflict       Kind = "conflict"
	KindRegistration   Kind = "registration"
	KindInstantiation  Kind = "instantiation"
	KindBackend        Kind = "backend"
)

// Error is the structured error type used throughout the bridge.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Module string // module identity, when the error is per-module
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" module ")
		b.WriteString(e.Module)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by (Phase, Kind).
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// New creates an error with a formatted detail message.
func New(phase Phase, kind Kind, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Phase: phase, Kind: kind, Detail: detail}
}

// Wrap wraps an existing error with phase, kind and context.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: detail, Cause: cause}
}

// Convenience constructors for common patterns.

// InvalidInput creates an invalid input error.
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{Phase: phase, Kind: KindInvalidInput, Detail: detail}
}

// Unsupported creates an unsupported construct error.
func Unsupported(phase Phase, what string) *Error {
	return &Error{Phase: phase, Kind: KindUnsupported, Detail: what}
}

// NotFound creates a not-found error.
func NotFound(phase Phase, what, name string) *Error {
	return &Error{Phase: phase, Kind: KindNotFound, Detail: fmt.Sprintf("%s %q not found", what, name)}
}

// NotInitialized creates a not-initialized error for a missing subsystem.
func NotInitialized(phase Phase, component string) *Error {
	return &Error{Phase: phase, Kind: KindNotInitialized, Detail: component + " not initialized"}
}

// Conflict creates a conflicting-definition error.
func Conflict(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindConflict, detail, args...)
}

// Registration creates a hook registration error.
func Registration(strategy string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Detail: "strategy " + strategy,
		Cause:  cause,
	}
}

// ModuleRewrite wraps a failure inside a single module's rewrite pass.
// Callers treat it as "keep the original bytes", never as fatal.
func ModuleRewrite(identity string, cause error) *Error {
	return &Error{
		Phase:  PhaseRewrite,
		Kind:   KindInvalidData,
		Module: identity,
		Detail: "module left untouched",
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error.
func Instantiation(identity string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Module: identity,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Backend wraps a failure from the callback-driven backend for an
// operation whose success the caller depends on.
func Backend(op string, cause error) *Error {
	return &Error{Phase: PhaseBridge, Kind: KindBackend, Detail: op, Cause: cause}
}
