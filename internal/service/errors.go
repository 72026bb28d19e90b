package service

import (
	"errors"
	"fmt"
)

// ErrPollTimeout aborts a workflow when the polling ceiling is reached
// without the remote site becoming active.
var ErrPollTimeout = errors.New("timed out waiting for site to become active")

// ValidationError rejects bad input synchronously; it never reaches a
// workflow.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError rejects a submission that would violate a uniqueness
// invariant or an operational cap.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// AuthorizationError rejects an invalid or expired conversion token.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }
