// Package errs defines Lattice's structured error taxonomy (spec.md §7).
// Every core operation returns one of these (wrapped) instead of an ad
// hoc error string, so the CLI/HTTP layer can map Code to an exit status
// or JSON envelope without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Code is one entry from spec.md §7's error kind list.
type Code string

const (
	NotFound          Code = "NOT_FOUND"
	InvalidID         Code = "INVALID_ID"
	InvalidActor      Code = "INVALID_ACTOR"
	InvalidRole       Code = "INVALID_ROLE"
	InvalidTransition Code = "INVALID_TRANSITION"
	ValidationError   Code = "VALIDATION_ERROR"
	Conflict          Code = "CONFLICT"
	CompletionBlocked Code = "COMPLETION_BLOCKED"
	ProtectedField    Code = "PROTECTED_FIELD"
	ResourceHeld      Code = "RESOURCE_HELD"
	NotHeld           Code = "NOT_HELD"
	Expired           Code = "EXPIRED"
	Timeout           Code = "TIMEOUT"
	AlreadyClaimed    Code = "ALREADY_CLAIMED"
	AlreadyRunning    Code = "ALREADY_RUNNING"
	PlanRequired      Code = "PLAN_REQUIRED"
	WriteError        Code = "WRITE_ERROR"
	ReadError         Code = "READ_ERROR"
	BindError         Code = "BIND_ERROR"
	PayloadTooLarge   Code = "PAYLOAD_TOO_LARGE"
	BadRequest        Code = "BAD_REQUEST"
	Forbidden         Code = "FORBIDDEN"

	// NoInitialSnapshot is raised when a non-create event targets a task
	// with no snapshot yet (spec.md §4.1). It is not part of the
	// spec.md §7 taxonomy table but is named explicitly in §4.1, so it
	// gets its own code rather than being folded into VALIDATION_ERROR.
	NoInitialSnapshot Code = "NO_INITIAL_SNAPSHOT"
)

// systemCodes are the I/O and config-binding codes that exit 2, like
// non-Lattice errors; every other code is a user/validation error and
// exits 1.
var systemCodes = map[Code]bool{
	WriteError: true,
	ReadError:  true,
	BindError:  true,
}

// Error is Lattice's structured error type. Msg is the user-facing
// message; Err, if set, is the underlying cause (available via
// errors.Unwrap / errors.Is / errors.As).
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no wrapped cause.
func New(code Code, format string, a ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, a...)}
}

// Wrap constructs an *Error carrying cause as its wrapped error.
func Wrap(code Code, cause error, format string, a ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, a...), Err: cause}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error, and
// "" otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ExitCode maps err to the process exit status from spec.md §6.3: 0 is
// handled by the caller on success, 1 for user/validation errors, 2 for
// system errors (including non-Lattice errors, which are treated as
// internal failures).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if !errors.As(err, &e) {
		return 2
	}
	if systemCodes[e.Code] {
		return 2
	}
	return 1
}
