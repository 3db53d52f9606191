package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced detector or connection does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSelfConnection is returned when both connection endpoints are the same detector.
	ErrSelfConnection = errors.New("detector cannot be connected to itself")
	// ErrDuplicateConnection is returned when the endpoint pair is already connected.
	ErrDuplicateConnection = errors.New("detectors are already connected")
)

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s %w", kind, id, ErrNotFound)
}
