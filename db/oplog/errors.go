package oplog

import (
	"errors"
	"fmt"
)

// ErrChainBroken is returned when the stored chain fails verification or
// replay at a specific entry. Indicates tampering or corruption; must be
// surfaced to an operator, never auto-retried.
type ErrChainBroken struct {
	Sequence uint64
	Reason   string
}

func (e *ErrChainBroken) Error() string {
	return fmt.Sprintf("chain broken at sequence %d: %s", e.Sequence, e.Reason)
}

// ErrEntryNotFound is returned when no log entry exists at a sequence.
type ErrEntryNotFound struct {
	Sequence uint64
}

func (e *ErrEntryNotFound) Error() string {
	return fmt.Sprintf("log entry not found: %d", e.Sequence)
}

func IsErrChainBroken(err error) bool {
	var target *ErrChainBroken
	return errors.As(err, &target)
}

func IsErrEntryNotFound(err error) bool {
	var target *ErrEntryNotFound
	return errors.As(err, &target)
}
