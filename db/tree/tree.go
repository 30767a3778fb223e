// Package tree is the mutable hierarchical namespace: the mapping from
// canonical paths to the object hash currently live at each path. It owns
// every tree-shape invariant — sibling uniqueness, parent existence,
// leaf-only deletion, cycle-free moves, tombstone permanence — and is the
// only component allowed to change which hash is live at a path.
//
// Every mutating method runs inside a caller-supplied transaction and
// returns the operations it performed, in order, so the caller can chain
// them into the transaction log before committing.
package tree

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/copsehq/copse/db/codec"
	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/store"
	"github.com/copsehq/copse/db/tkv"
)

// maxDepth bounds ancestry walks so a corrupted parent link cannot spin
// forever. No real namespace gets anywhere near this.
const maxDepth = 1 << 16

type Tree struct {
	logger  *slog.Logger
	objects *store.Store
}

func New(logger *slog.Logger, objects *store.Store) *Tree {
	return &Tree{
		logger:  logger.WithGroup("tree"),
		objects: objects,
	}
}

// getNode reads the raw node record at path, tombstoned or not. Returns
// (nil, nil) when no record exists.
func (t *Tree) getNode(txn tkv.Txn, path string) (*models.PathNode, error) {
	data, err := txn.Get(nodeKey(path))
	if err != nil {
		if tkv.IsErrKeyNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var node models.PathNode
	if err := codec.Unmarshal(data, &node); err != nil {
		return nil, &codec.ErrCorruptEncoding{Reason: fmt.Sprintf("path node %s: %v", path, err)}
	}
	return &node, nil
}

func (t *Tree) putNode(txn tkv.Txn, node *models.PathNode) error {
	data, err := codec.Marshal(node)
	if err != nil {
		return &codec.ErrCorruptEncoding{Reason: err.Error()}
	}
	return txn.Set(nodeKey(node.Path), data)
}

// liveParent verifies the parent of path exists and is not tombstoned.
func (t *Tree) liveParent(txn tkv.Txn, path string) error {
	parent := ParentPath(path)
	node, err := t.getNode(txn, parent)
	if err != nil {
		return err
	}
	if node == nil || node.Tombstoned {
		return &ErrParentMissing{Path: path, Parent: parent}
	}
	return nil
}

// EnsureRoot creates the root node holding obj if the namespace is
// empty. Returns the operations performed; nil when the root already
// exists.
func (t *Tree) EnsureRoot(txn tkv.Txn, obj *models.Object, now int64) ([]models.Operation, error) {
	node, err := t.getNode(txn, RootPath)
	if err != nil {
		return nil, err
	}
	if node != nil {
		return nil, nil
	}
	hash, err := t.objects.Put(txn, obj)
	if err != nil {
		return nil, err
	}
	root := &models.PathNode{
		Path:      RootPath,
		Hash:      hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.putNode(txn, root); err != nil {
		return nil, err
	}
	t.logger.Info("namespace root created", "hash", hash.Hex())
	return []models.Operation{{
		Path:    RootPath,
		NewHash: hash,
		Kind:    models.OpCreate,
	}}, nil
}

// Create stores obj and binds it to path with revision 0. Fails with
// ErrPathExists if any record — live or tombstoned — occupies the path,
// and ErrParentMissing if the parent is absent or tombstoned.
func (t *Tree) Create(txn tkv.Txn, path string, obj *models.Object, now int64) ([]models.Operation, error) {
	path, err := CanonicalPath(path)
	if err != nil {
		return nil, err
	}
	if path == RootPath {
		return nil, &ErrInvalidPath{Path: path, Reason: "root is created at store initialization"}
	}

	existing, err := t.getNode(txn, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Tombstoned counts too: names are never recycled, otherwise a
		// later audit could not tell two eras of the same path apart.
		return nil, &ErrPathExists{Path: path}
	}
	if err := t.liveParent(txn, path); err != nil {
		return nil, err
	}

	hash, err := t.objects.Put(txn, obj)
	if err != nil {
		return nil, err
	}
	node := &models.PathNode{
		Path:       path,
		ParentPath: ParentPath(path),
		Hash:       hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.putNode(txn, node); err != nil {
		return nil, err
	}
	return []models.Operation{{
		Path:    path,
		NewHash: hash,
		Kind:    models.OpCreate,
	}}, nil
}

// Modify stores the replacement object and repoints the live node at it,
// bumping the per-path revision. The previous object stays in the object
// store for history replay.
func (t *Tree) Modify(txn tkv.Txn, path string, obj *models.Object, now int64) ([]models.Operation, error) {
	path, err := CanonicalPath(path)
	if err != nil {
		return nil, err
	}
	node, err := t.getNode(txn, path)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Tombstoned {
		return nil, &ErrPathNotFound{Path: path}
	}

	hash, err := t.objects.Put(txn, obj)
	if err != nil {
		return nil, err
	}
	oldHash := node.Hash
	node.Hash = hash
	node.Revision++
	node.UpdatedAt = now
	if err := t.putNode(txn, node); err != nil {
		return nil, err
	}
	return []models.Operation{{
		Path:    path,
		OldHash: oldHash,
		NewHash: hash,
		Kind:    models.OpModify,
	}}, nil
}

// Delete tombstones a leaf node. The record is retained forever — the
// audit chain references the path, so the name can never be reused.
func (t *Tree) Delete(txn tkv.Txn, path string, now int64) ([]models.Operation, error) {
	path, err := CanonicalPath(path)
	if err != nil {
		return nil, err
	}
	if path == RootPath {
		return nil, &ErrInvalidPath{Path: path, Reason: "root is not deletable"}
	}
	node, err := t.getNode(txn, path)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Tombstoned {
		return nil, &ErrPathNotFound{Path: path}
	}
	hasChildren, err := t.hasLiveChildren(txn, path)
	if err != nil {
		return nil, err
	}
	if hasChildren {
		return nil, &ErrHasChildren{Path: path}
	}

	oldHash := node.Hash
	node.Tombstoned = true
	node.UpdatedAt = now
	if err := t.putNode(txn, node); err != nil {
		return nil, err
	}
	return []models.Operation{{
		Path:    path,
		OldHash: oldHash,
		Kind:    models.OpDelete,
	}}, nil
}

// Move relocates a node and its live descendants under a new parent. The
// old paths are tombstoned (names are never recycled) and each relocated
// node restarts at revision 0 under its new path. Each relocation is
// recorded as a move-src/move-dst operation pair.
func (t *Tree) Move(txn tkv.Txn, path, newParentPath string, now int64) ([]models.Operation, error) {
	path, err := CanonicalPath(path)
	if err != nil {
		return nil, err
	}
	newParentPath, err = CanonicalPath(newParentPath)
	if err != nil {
		return nil, err
	}
	if path == RootPath {
		return nil, &ErrInvalidPath{Path: path, Reason: "root is not movable"}
	}

	node, err := t.getNode(txn, path)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Tombstoned {
		return nil, &ErrPathNotFound{Path: path}
	}

	parentNode, err := t.getNode(txn, newParentPath)
	if err != nil {
		return nil, err
	}
	if parentNode == nil || parentNode.Tombstoned {
		return nil, &ErrParentMissing{Path: path, Parent: newParentPath}
	}

	if err := t.checkCycle(txn, path, newParentPath); err != nil {
		return nil, err
	}

	newPath := JoinPath(newParentPath, BaseName(path))
	if newPath == path {
		return nil, &ErrInvalidPath{Path: path, Reason: "move target equals source"}
	}
	occupied, err := t.getNode(txn, newPath)
	if err != nil {
		return nil, err
	}
	if occupied != nil {
		return nil, &ErrPathExists{Path: newPath}
	}

	// Collect the node and every live descendant before writing anything.
	// Cursor order is lexicographic, so parents come before children and
	// the operation list replays deterministically.
	relocate := []*models.PathNode{node}
	err = txn.Cursor(childPrefix(path), func(key string, value []byte) (bool, error) {
		var child models.PathNode
		if err := codec.Unmarshal(value, &child); err != nil {
			return false, &codec.ErrCorruptEncoding{Reason: fmt.Sprintf("path node %s: %v", key, err)}
		}
		if child.Tombstoned {
			return true, nil
		}
		relocate = append(relocate, &child)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	var ops []models.Operation
	for _, n := range relocate {
		dst := newPath + strings.TrimPrefix(n.Path, path)
		moved := &models.PathNode{
			Path:       dst,
			ParentPath: ParentPath(dst),
			Hash:       n.Hash,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := t.putNode(txn, moved); err != nil {
			return nil, err
		}

		hash := n.Hash
		n.Tombstoned = true
		n.UpdatedAt = now
		if err := t.putNode(txn, n); err != nil {
			return nil, err
		}

		ops = append(ops,
			models.Operation{Path: n.Path, OldHash: hash, Kind: models.OpMoveSrc},
			models.Operation{Path: dst, NewHash: hash, Kind: models.OpMoveDst},
		)
	}
	return ops, nil
}

// checkCycle rejects a move that would make path its own ancestor. The
// walk is iterative and bounded by tree depth, climbing parent links from
// the new parent to the root.
func (t *Tree) checkCycle(txn tkv.Txn, path, newParentPath string) error {
	current := newParentPath
	for depth := 0; depth < maxDepth; depth++ {
		if current == path {
			return &ErrCycleDetected{Path: path, NewParent: newParentPath}
		}
		if current == RootPath || current == "" {
			return nil
		}
		node, err := t.getNode(txn, current)
		if err != nil {
			return err
		}
		if node == nil {
			return &ErrParentMissing{Path: path, Parent: current}
		}
		current = node.ParentPath
	}
	return &ErrInvalidPath{Path: path, Reason: "ancestry walk exceeded maximum depth"}
}

// Lookup returns the live node at path.
func (t *Tree) Lookup(txn tkv.Txn, path string) (*models.PathNode, error) {
	path, err := CanonicalPath(path)
	if err != nil {
		return nil, err
	}
	node, err := t.getNode(txn, path)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Tombstoned {
		return nil, &ErrPathNotFound{Path: path}
	}
	return node, nil
}

// Children returns the live direct children of path in lexicographic
// order, consistent with the transaction's snapshot.
func (t *Tree) Children(txn tkv.Txn, path string) ([]models.PathNode, error) {
	path, err := CanonicalPath(path)
	if err != nil {
		return nil, err
	}
	parent, err := t.getNode(txn, path)
	if err != nil {
		return nil, err
	}
	if parent == nil || parent.Tombstoned {
		return nil, &ErrPathNotFound{Path: path}
	}

	prefix := childPrefix(path)
	var children []models.PathNode
	err = txn.Cursor(prefix, func(key string, value []byte) (bool, error) {
		// Skip grandchildren: a direct child has no further slash after
		// the parent prefix. The root's own key matches its child prefix,
		// so an empty remainder is skipped too.
		remainder := key[len(prefix):]
		if remainder == "" || strings.ContainsRune(remainder, '/') {
			return true, nil
		}
		var child models.PathNode
		if err := codec.Unmarshal(value, &child); err != nil {
			return false, &codec.ErrCorruptEncoding{Reason: fmt.Sprintf("path node %s: %v", key, err)}
		}
		if child.Live() {
			children = append(children, child)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

func (t *Tree) hasLiveChildren(txn tkv.Txn, path string) (bool, error) {
	prefix := childPrefix(path)
	found := false
	err := txn.Cursor(prefix, func(key string, value []byte) (bool, error) {
		if key[len(prefix):] == "" {
			return true, nil
		}
		var child models.PathNode
		if err := codec.Unmarshal(value, &child); err != nil {
			return false, &codec.ErrCorruptEncoding{Reason: fmt.Sprintf("path node %s: %v", key, err)}
		}
		if child.Live() {
			found = true
			return false, nil
		}
		return true, nil
	})
	return found, err
}
