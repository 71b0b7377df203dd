package models

import "fmt"

// ValidationError – for invalid parameters rejected before a request is sent.
// Supports errors.As.
//
// ValidationError represents an error due to invalid or malformed input.
type ValidationError struct {
	Field string
	msg   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.msg)
	}
	return e.msg
}

// NewValidationError creates a new ValidationError for the given field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, msg: msg}
}

// StorageError – for failures interacting with the local token storage.
// Supports errors.As and errors.Unwrap.
//
// Will only be provided as a response from internal stores.
type StorageError struct {
	Op  string
	err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.err)
}

func (e *StorageError) Unwrap() error {
	return e.err
}

// NewStorageError creates a new StorageError.
func NewStorageError(op string, err error) error {
	return &StorageError{
		Op:  op,
		err: err,
	}
}
