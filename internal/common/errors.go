// Package common defines shared constants and sentinel errors used across
// gophdrive layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"strings"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Input errors. Use *ValidationError to report the individual violations.
	ErrValidation = errors.New("validation error")

	// Ownership errors.
	ErrForbidden           = errors.New("forbidden")
	ErrForbiddenAssignment = errors.New("forbidden assignment")

	// Membership errors.
	ErrAlreadyAssigned = errors.New("file already assigned to another folder")
	ErrAlreadyExists   = errors.New("already exists")

	// Storage errors. Both are transient and left to the caller to retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStreamError        = errors.New("stream error")

	// ErrInconsistent marks a state where object storage and metadata disagree
	// and an operator has to reconcile them.
	ErrInconsistent = errors.New("storage and metadata are inconsistent")

	// Share errors.
	ErrExpired = errors.New("expired")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError carries every violation found in one request.
type ValidationError struct {
	Violations []string
}

// NewValidationError returns nil when there are no violations.
func NewValidationError(violations ...string) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	return "validation error: " + strings.Join(e.Violations, "; ")
}

// Is makes errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
