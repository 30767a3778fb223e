package tkv

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned when a key is not found in the store.
type ErrKeyNotFound struct {
	Key string
}

func (e *ErrKeyNotFound) Error() string {
	return fmt.Sprintf("key not found: %s", e.Key)
}

// ErrConflict is returned by Commit when another writer committed a key
// this transaction depends on. The caller retries the whole logical
// operation, never individual sub-steps.
type ErrConflict struct {
	Err error
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("transaction conflict: %v", e.Err)
}

func (e *ErrConflict) Unwrap() error {
	return e.Err
}

// ErrReadOnly is returned when a write is attempted on a read transaction.
type ErrReadOnly struct {
	Key string
}

func (e *ErrReadOnly) Error() string {
	return fmt.Sprintf("write to key '%s' in read-only transaction", e.Key)
}

// ErrInternal is returned when the underlying store fails.
type ErrInternal struct {
	Err error
}

func (e *ErrInternal) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *ErrInternal) Unwrap() error {
	return e.Err
}

func IsErrKeyNotFound(err error) bool {
	var target *ErrKeyNotFound
	return errors.As(err, &target)
}

func IsErrConflict(err error) bool {
	var target *ErrConflict
	return errors.As(err, &target)
}
