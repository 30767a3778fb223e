package codec

import (
	"errors"
	"fmt"
)

// ErrCorruptEncoding is returned when stored bytes do not parse as a
// well-formed record. Never auto-retried: it means the store is damaged.
type ErrCorruptEncoding struct {
	Reason string
}

func (e *ErrCorruptEncoding) Error() string {
	return fmt.Sprintf("corrupt encoding: %s", e.Reason)
}

// ErrSchemaMismatch is returned when a decoded type tag is not part of
// the running schema version.
type ErrSchemaMismatch struct {
	Tag string
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("unrecognized object type tag '%s'", e.Tag)
}

func IsErrCorruptEncoding(err error) bool {
	var target *ErrCorruptEncoding
	return errors.As(err, &target)
}

func IsErrSchemaMismatch(err error) bool {
	var target *ErrSchemaMismatch
	return errors.As(err, &target)
}
