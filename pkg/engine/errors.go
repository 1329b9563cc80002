package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an orchestration failure.
type ErrorClass string

const (
	// ErrorClassNotFound indicates a missing container, database, or tool binary.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassConflict indicates a state conflict.
	// Examples: duplicate container name, port busy after allocation,
	// cloning a running source.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassStartFailure indicates a server process failed to launch or
	// failed to become ready within the probe window.
	ErrorClassStartFailure ErrorClass = "start_failure"

	// ErrorClassValidation indicates malformed input.
	// Examples: unknown engine kind, unparseable version string or URL.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassIncompatibleVersion indicates a restore was vetoed by the
	// version-compatibility policy.
	ErrorClassIncompatibleVersion ErrorClass = "incompatible_version"
)

// Error is a classified orchestration error with container context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Container is the container name that caused the error, if applicable.
	Container string `json:"container,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Output carries captured process stdout/stderr for start failures.
	Output string `json:"output,omitempty"`

	// Remediation is a classified, actionable hint derived from Output,
	// empty when no known failure pattern matched.
	Remediation string `json:"remediation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Container != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (container=%s, operation=%s)%s",
			e.Class, e.Message, e.Container, e.Operation, e.unwrapSuffix())
	}
	if e.Container != "" {
		return fmt.Sprintf("[%s] %s (container=%s)%s", e.Class, e.Message, e.Container, e.unwrapSuffix())
	}
	return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, e.unwrapSuffix())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two classified errors match on
// class alone, so callers can compare against a bare class sentinel without
// matching messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

func (e *Error) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// WithContainer adds container context to an error.
func (e *Error) WithContainer(name string) *Error {
	e.Container = name
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *Error {
	return &Error{Class: ErrorClassNotFound, Message: message, Err: err}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *Error {
	return &Error{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewStartFailureError creates a start-failure error carrying captured process
// output and an optional classified remediation hint.
func NewStartFailureError(message, output, remediation string, err error) *Error {
	return &Error{
		Class:       ErrorClassStartFailure,
		Message:     message,
		Output:      output,
		Remediation: remediation,
		Err:         err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *Error {
	return &Error{Class: ErrorClassValidation, Message: message, Err: err}
}

// NewIncompatibleVersionError creates a version-policy veto error.
func NewIncompatibleVersionError(message string, err error) *Error {
	return &Error{Class: ErrorClassIncompatibleVersion, Message: message, Err: err}
}

// IsNotFound returns true if the error is classified as not-found.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassNotFound
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsStartFailure returns true if the error is classified as a start failure.
func IsStartFailure(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassStartFailure
	}
	return false
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassValidation
	}
	return false
}

// IsIncompatibleVersion returns true if the error is a version-policy veto.
func IsIncompatibleVersion(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassIncompatibleVersion
	}
	return false
}
