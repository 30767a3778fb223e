package store

import (
	"errors"
	"fmt"

	"github.com/copsehq/copse/db/models"
)

// ErrObjectNotFound is returned when no object exists under a hash.
type ErrObjectNotFound struct {
	Hash models.Hash
}

func (e *ErrObjectNotFound) Error() string {
	return fmt.Sprintf("object not found: %s", e.Hash.Hex())
}

func IsErrObjectNotFound(err error) bool {
	var target *ErrObjectNotFound
	return errors.As(err, &target)
}
