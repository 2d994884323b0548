package domain

import (
	"errors"
	"fmt"
)

// Error is a coded failure reported synchronously by a slot, ledger or
// negotiation operation.
//
// Error carries structured fields so transports can map the code to a
// status without parsing messages.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context (ids, statuses).
	Details map[string]string
}

// ErrorCode categorizes domain errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed input.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeNotFound indicates a referenced event or request does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeNotOwner indicates the caller does not own the entity acted on.
	ErrCodeNotOwner ErrorCode = "NOT_OWNER"

	// ErrCodeInvalidState indicates the entity is in a status that forbids the operation.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeConflict indicates lock contention with another pending swap.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeSelfSwap indicates both slots belong to the same user.
	ErrCodeSelfSwap ErrorCode = "SELF_SWAP"

	// ErrCodeAlreadyResolved indicates the swap request is already terminal.
	ErrCodeAlreadyResolved ErrorCode = "ALREADY_RESOLVED"

	// ErrCodeForbiddenTransition indicates a client asked for an engine-only status.
	ErrCodeForbiddenTransition ErrorCode = "FORBIDDEN_TRANSITION"

	// ErrCodeUnauthenticated indicates missing or bad credentials.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// ErrCodeDuplicate indicates a unique value (email) is already registered.
	ErrCodeDuplicate ErrorCode = "DUPLICATE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether a client may retry the same call unchanged.
// Only lock contention qualifies.
func (e *Error) Retryable() bool {
	return e.Code == ErrCodeConflict
}

// CodeOf returns the ErrorCode of err, or "" if err is not a domain error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether err is a retryable domain error.
func IsRetryable(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Retryable()
}

// Errorf creates an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// With returns a copy of e with key set in Details.
func (e *Error) With(key, value string) *Error {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// NewNotFound creates an Error for a missing entity.
func NewNotFound(kind string, id int64) *Error {
	return Errorf(ErrCodeNotFound, "%s %d not found", kind, id).With("id", fmt.Sprint(id))
}

// NewNotOwner creates an Error for an ownership mismatch.
func NewNotOwner(kind string, id, userID int64) *Error {
	return Errorf(ErrCodeNotOwner, "%s %d is not owned by user %d", kind, id, userID).
		With("id", fmt.Sprint(id))
}

// NewValidation creates an Error for malformed input on field.
func NewValidation(field, message string) *Error {
	return Errorf(ErrCodeValidation, "%s: %s", field, message).With("field", field)
}
