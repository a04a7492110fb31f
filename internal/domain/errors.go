package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate duplicate record
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput invalid input data
	ErrInvalidInput = errors.New("invalid input data")

	// ErrUnauthenticated caller is not authenticated
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized caller is not authorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal internal error
	ErrInternal = errors.New("internal error")

	// ErrExternalServiceUnavailable external collaborator unavailable
	ErrExternalServiceUnavailable = errors.New("external service unavailable")

	// ErrSignatureMismatch webhook signature verification failed
	ErrSignatureMismatch = errors.New("webhook signature mismatch")

	// ErrProRequired operation requires an active pro subscription
	ErrProRequired = errors.New("pro subscription required")

	// ErrInvalidPlan unknown or unsupported plan
	ErrInvalidPlan = errors.New("invalid plan")
)

// ExternalServiceError describes a failure of an external collaborator
// (OCR backend, payment gateway). It unwraps to the transport error and
// matches ErrExternalServiceUnavailable via Is.
type ExternalServiceError struct {
	Service     string
	Code        string
	Message     string
	StatusCode  int
	OriginalErr error
}

// Error implements the error interface
func (e *ExternalServiceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s service error [%s]: %s: %v", e.Service, e.Code, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s service error [%s]: %s", e.Service, e.Code, e.Message)
}

// Unwrap returns the original error
func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// Is reports whether the target is the external-service sentinel
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalServiceUnavailable
}

// NewExternalServiceError creates a new external service error
func NewExternalServiceError(service, code, message string, statusCode int, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		Code:        code,
		Message:     message,
		StatusCode:  statusCode,
		OriginalErr: err,
	}
}

// NotFoundError describes a missing entity
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is reports whether the target is the not-found sentinel
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new not-found error
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}
