package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
//
// Abort is a stable numeric identifier kept for consumers that key on numbers
// rather than messages. Errors that have no ledger meaning use -1.
type Error struct {
	Code    ErrorCode
	Abort   int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches two domain errors by code and message so wrapped copies of a
// sentinel still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Abort == t.Abort && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Abort: -1, Message: message}
}

func newAbort(code ErrorCode, abort int, message string) *Error {
	return &Error{Code: code, Abort: abort, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Abort:   -1,
		Message: message,
		Err:     err,
	}
}

// Ledger errors. Abort codes are part of the external contract.
var (
	ErrInvalidRewardPoints = newAbort(ErrCodeInvalid, 0, "reward points must be positive")
	ErrTaskNotFound        = newAbort(ErrCodeNotFound, 1, "task not found")
	ErrTaskNotPending      = newAbort(ErrCodeConflict, 2, "task is not pending")
	ErrTaskAlreadyAssigned = newAbort(ErrCodeConflict, 3, "task already assigned")
	ErrNotCreator          = newAbort(ErrCodeForbidden, 4, "caller is not the task creator")
	ErrNotAssignee         = newAbort(ErrCodeForbidden, 5, "caller is not the task assignee")
	ErrProfileMismatch     = newAbort(ErrCodeForbidden, 6, "profile does not belong to caller")
)

// Common domain errors.
var (
	ErrProfileNotFound  = NewError(ErrCodeNotFound, "profile not found")
	ErrPointsOverflow   = NewError(ErrCodeConflict, "progress counters overflow")
	ErrNotAdmin         = NewError(ErrCodeUnauthorized, "admin capability required")
	ErrCapabilityMinted = NewError(ErrCodeConflict, "admin capability already minted")
	ErrUnauthorized     = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload   = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// AbortCode returns the numeric abort code carried by err, or -1.
func AbortCode(err error) int {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Abort
	}
	return -1
}
