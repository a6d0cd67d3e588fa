package services

import "fmt"

// ValidationError reports a submission rejected before any side effect.
// Message is safe to show to the submitter.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// newValidationError creates a new ValidationError
func newValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// StorageError reports a failure to create a directory or write an attachment
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to store attachment: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failure to append a record to its metadata store
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist content record: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
