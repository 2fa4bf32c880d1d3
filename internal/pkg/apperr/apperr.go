package apperr

import (
	"errors"
	"fmt"
)

// Code is the machine-readable error code surfaced to API callers.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeMissingReference    Code = "missing_reference"
	CodeTransientExternal   Code = "transient_external"
	CodeImmutabilityViolate Code = "immutability_violation"
	CodeUnknownProduct      Code = "unknown_product"
	CodePlanChangeConflict  Code = "plan_change_conflict"
	CodeNotFound            Code = "not_found"
	CodeInternal            Code = "internal_error"
)

// Error carries a stable code alongside a human-readable message.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is matches on code, so sentinel errors below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks across service and controller layers.
var (
	ErrValidation           = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrInsufficientBalance  = &Error{Code: CodeInsufficientBalance, Message: "insufficient balance"}
	ErrMissingReference     = &Error{Code: CodeMissingReference, Message: "referenced entity not found"}
	ErrTransientExternal    = &Error{Code: CodeTransientExternal, Message: "upstream temporarily unavailable"}
	ErrImmutableTransaction = &Error{Code: CodeImmutabilityViolate, Message: "posted transactions are immutable"}
	ErrUnknownProduct       = &Error{Code: CodeUnknownProduct, Message: "unknown product key"}
	ErrPlanChangeConflict   = &Error{Code: CodePlanChangeConflict, Message: "a plan change is already pending"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
)

// Validation builds a validation error with a specific message.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// MissingReference builds a missing-reference error naming the entity.
func MissingReference(entity string, id interface{}) *Error {
	return &Error{Code: CodeMissingReference, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// Transient wraps an upstream failure that is safe to retry.
func Transient(err error) *Error {
	return &Error{Code: CodeTransientExternal, Message: "upstream temporarily unavailable", wrapped: err}
}

// CodeOf extracts the code from an error chain, defaulting to internal_error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
