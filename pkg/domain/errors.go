package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure classes. Typed errors below match
// their sentinel through errors.Is so callers can branch without parsing text.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
	ErrStorage  = errors.New("storage failure")
)

// NotFoundError reports an identifier that is absent for the requested kind.
type NotFoundError struct {
	Kind Kind
	ID   int64
}

func (e NotFoundError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("item %d not found", e.ID)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidError reports malformed client input.
type InvalidError struct {
	Field  string
	Reason string
}

func (e InvalidError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrInvalid.
func (e InvalidError) Is(target error) bool { return target == ErrInvalid }

// StorageError wraps a lower-level backend failure raised during an otherwise
// valid operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("storage failure: %v", e.Err)
	}
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err as a storage failure unless it already carries one
// of the three classes, in which case it is returned unchanged.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsInvalid(err) || IsStorageFailure(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsNotFound reports whether err is a NotFound condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalid reports whether err is an Invalid condition.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalid) }

// IsStorageFailure reports whether err is a StorageFailure condition.
func IsStorageFailure(err error) bool { return errors.Is(err, ErrStorage) }
