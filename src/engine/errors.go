package engine

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine readable classification returned to callers.
type ErrorCode string

const (
	// ErrCodeValidation marks a malformed or type-incompatible request,
	// rejected before any mutation begins.
	ErrCodeValidation ErrorCode = "validation_error"

	// ErrCodeNotAllowed marks a structurally valid but forbidden request,
	// rejected before any mutation begins.
	ErrCodeNotAllowed ErrorCode = "not_allowed"

	// ErrCodeNotFound marks a lookup whose target does not exist in the
	// expected scope.
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeTransaction marks a store level failure mid-cascade; the whole
	// session is rolled back before this surfaces.
	ErrCodeTransaction ErrorCode = "transaction_error"
)

// DesignError is the error type returned by the design engine and its
// services. Code is machine readable, Message human readable.
type DesignError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *DesignError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DesignError) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...any) error {
	return &DesignError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotAllowedError(format string, args ...any) error {
	return &DesignError{Code: ErrCodeNotAllowed, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) error {
	return &DesignError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewTransactionError(err error, format string, args ...any) error {
	return &DesignError{Code: ErrCodeTransaction, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the error code carried by err, or "" when err is not a
// DesignError.
func CodeOf(err error) ErrorCode {
	var de *DesignError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsValidationError(err error) bool { return CodeOf(err) == ErrCodeValidation }

func IsNotAllowed(err error) bool { return CodeOf(err) == ErrCodeNotAllowed }

func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

func IsTransactionError(err error) bool { return CodeOf(err) == ErrCodeTransaction }
