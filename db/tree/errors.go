package tree

import (
	"errors"
	"fmt"
)

// ErrInvalidPath is returned when a path does not canonicalize, or when
// an operation targets a path it can never apply to (the root).
type ErrInvalidPath struct {
	Path   string
	Reason string
}

func (e *ErrInvalidPath) Error() string {
	return fmt.Sprintf("invalid path '%s': %s", e.Path, e.Reason)
}

// ErrPathExists is returned when a live node already occupies the path,
// or when the path is tombstoned — deleted names are never recycled, so
// a tombstoned path can never satisfy create again.
type ErrPathExists struct {
	Path string
}

func (e *ErrPathExists) Error() string {
	return fmt.Sprintf("path already exists: %s", e.Path)
}

// ErrPathNotFound is returned when no live node exists at the path.
type ErrPathNotFound struct {
	Path string
}

func (e *ErrPathNotFound) Error() string {
	return fmt.Sprintf("path not found: %s", e.Path)
}

// ErrParentMissing is returned when the parent path is absent or
// tombstoned at commit time.
type ErrParentMissing struct {
	Path   string
	Parent string
}

func (e *ErrParentMissing) Error() string {
	return fmt.Sprintf("parent '%s' of path '%s' is missing", e.Parent, e.Path)
}

// ErrHasChildren is returned when deleting a node that still has live
// children. Callers delete children first; orphaned subtrees cannot
// happen.
type ErrHasChildren struct {
	Path string
}

func (e *ErrHasChildren) Error() string {
	return fmt.Sprintf("path has live children: %s", e.Path)
}

// ErrCycleDetected is returned when a move would make a node its own
// descendant.
type ErrCycleDetected struct {
	Path      string
	NewParent string
}

func (e *ErrCycleDetected) Error() string {
	return fmt.Sprintf("moving '%s' under '%s' would create a cycle", e.Path, e.NewParent)
}

func IsErrInvalidPath(err error) bool {
	var target *ErrInvalidPath
	return errors.As(err, &target)
}

func IsErrPathExists(err error) bool {
	var target *ErrPathExists
	return errors.As(err, &target)
}

func IsErrPathNotFound(err error) bool {
	var target *ErrPathNotFound
	return errors.As(err, &target)
}

func IsErrParentMissing(err error) bool {
	var target *ErrParentMissing
	return errors.As(err, &target)
}

func IsErrHasChildren(err error) bool {
	var target *ErrHasChildren
	return errors.As(err, &target)
}

func IsErrCycleDetected(err error) bool {
	var target *ErrCycleDetected
	return errors.As(err, &target)
}
