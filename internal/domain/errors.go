package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTextUnavailable indicates that a paper's preprocessed full text is
	// missing. Narrative generation requires preprocessed text and performs
	// no extraction of its own.
	ErrTextUnavailable = errors.New("preprocessed text unavailable")

	// ErrStageFailed indicates that a pipeline stage could not produce output.
	ErrStageFailed = errors.New("pipeline stage failed")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrQueueClosed indicates that the job queue has been shut down.
	ErrQueueClosed = errors.New("job queue closed")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StageError describes a failure of one named pipeline stage.
type StageError struct {
	Stage string
	Cause error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// Is reports that a StageError matches ErrStageFailed.
func (e *StageError) Is(target error) bool {
	return target == ErrStageFailed
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewStageError wraps a cause with the failing stage's name.
func NewStageError(stage string, cause error) *StageError {
	return &StageError{
		Stage: stage,
		Cause: cause,
	}
}
