package domain

import (
	"errors"
	"fmt"
)

const (
	CodeEmptySymbol      = "EmptySymbol"
	CodeInvalidDirection = "InvalidDirection"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("object already exists")
	ErrMissingOwner = errors.New("owner identity is required")

	ErrEmptySymbol = &ValidationError{Field: "symbol", Code: CodeEmptySymbol}
)

// ValidationError reports malformed caller input. Two validation errors
// match under errors.Is when their codes are equal.
type ValidationError struct {
	Field string
	Code  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Code)
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

// PersistenceError means the record store rejected or could not serve an
// operation. Orphan is set when an object was stored before its metadata
// write failed.
type PersistenceError struct {
	Op     string
	Orphan string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Orphan != "" {
		return fmt.Sprintf("persistence %s (orphaned object %s): %v", e.Op, e.Orphan, e.Err)
	}
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// StorageError is an object storage failure: upload, signing or removal.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// AttachmentError identifies which file of a multi-file upload failed.
type AttachmentError struct {
	Index    int
	FileName string
	Err      error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment %d (%s): %v", e.Index, e.FileName, e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}

func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
