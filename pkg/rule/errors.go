package rule

import (
	"errors"
	"fmt"
)

// ErrorClass classifies rule errors for the registry's and engine's
// handling policy.
type ErrorClass string

const (
	// ClassInvalidStructure marks structural defects: duplicate module
	// ids, illegal characters in ids, duplicate rule UIDs. Raised
	// synchronously from the mutating call, never swallowed.
	ClassInvalidStructure ErrorClass = "invalid_structure"

	// ClassInvalidConfiguration marks configuration defects: missing
	// required parameters, unknown parameters, type mismatches, bad
	// references. Aggregated across all offending fields.
	ClassInvalidConfiguration ErrorClass = "invalid_configuration"

	// ClassNotFound marks lookups of unknown rule UIDs.
	ClassNotFound ErrorClass = "not_found"

	// ClassInternal marks internal invariant violations, such as a rule
	// vanishing immediately after insertion. Not recoverable.
	ClassInternal ErrorClass = "internal"
)

// Error is a classified error with rule and module context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass

	// Message is the human-readable error message. For configuration
	// errors it aggregates one entry per offending module or parameter.
	Message string

	// Rule is the UID of the rule that caused the error, if known.
	Rule string

	// Module is the id of the offending module, if the error is scoped
	// to one module.
	Module string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	scope := ""
	if e.Rule != "" && e.Module != "" {
		scope = fmt.Sprintf(" (rule=%s, module=%s)", e.Rule, e.Module)
	} else if e.Rule != "" {
		scope = fmt.Sprintf(" (rule=%s)", e.Rule)
	} else if e.Module != "" {
		scope = fmt.Sprintf(" (module=%s)", e.Module)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s%s: %s", e.Class, e.Message, scope, e.Err)
	}
	return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, scope)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error { return e.Err }

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithRule adds rule context to the error.
func (e *Error) WithRule(uid string) *Error {
	e.Rule = uid
	return e
}

// WithModule adds module context to the error.
func (e *Error) WithModule(id string) *Error {
	e.Module = id
	return e
}

// NewStructureError creates a new invalid-structure error.
func NewStructureError(message string, err error) *Error {
	return &Error{Class: ClassInvalidStructure, Message: message, Err: err}
}

// NewConfigurationError creates a new invalid-configuration error.
func NewConfigurationError(message string, err error) *Error {
	return &Error{Class: ClassInvalidConfiguration, Message: message, Err: err}
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *Error {
	return &Error{Class: ClassNotFound, Message: message, Err: err}
}

// NewInternalError creates a new internal-inconsistency error.
func NewInternalError(message string, err error) *Error {
	return &Error{Class: ClassInternal, Message: message, Err: err}
}

// IsInvalidStructure returns true if the error is classified as an
// invalid-structure error.
func IsInvalidStructure(err error) bool {
	return hasClass(err, ClassInvalidStructure)
}

// IsInvalidConfiguration returns true if the error is classified as an
// invalid-configuration error.
func IsInvalidConfiguration(err error) bool {
	return hasClass(err, ClassInvalidConfiguration)
}

// IsNotFound returns true if the error is classified as not-found.
func IsNotFound(err error) bool {
	return hasClass(err, ClassNotFound)
}

// IsInternal returns true if the error is classified as an internal
// invariant violation.
func IsInternal(err error) bool {
	return hasClass(err, ClassInternal)
}

func hasClass(err error, class ErrorClass) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}
