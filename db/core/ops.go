package core

import (
	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/tkv"
)

// Create binds a new object to path. Fails with tree.ErrPathExists,
// tree.ErrParentMissing, or tkv.ErrConflict under contention.
func (c *Core) Create(path string, obj *models.Object) (*models.LogEntry, error) {
	return c.mutate(func(txn tkv.Txn, now int64) ([]models.Operation, error) {
		return c.paths.Create(txn, path, obj, now)
	})
}

// Modify replaces the object at path. The previous object remains in the
// store for history replay.
func (c *Core) Modify(path string, obj *models.Object) (*models.LogEntry, error) {
	return c.mutate(func(txn tkv.Txn, now int64) ([]models.Operation, error) {
		return c.paths.Modify(txn, path, obj, now)
	})
}

// Delete tombstones the leaf at path.
func (c *Core) Delete(path string) (*models.LogEntry, error) {
	return c.mutate(func(txn tkv.Txn, now int64) ([]models.Operation, error) {
		return c.paths.Delete(txn, path, now)
	})
}

// Move relocates the subtree at path under newParentPath.
func (c *Core) Move(path, newParentPath string) (*models.LogEntry, error) {
	return c.mutate(func(txn tkv.Txn, now int64) ([]models.Operation, error) {
		return c.paths.Move(txn, path, newParentPath, now)
	})
}

// Lookup resolves path to its live node against a read snapshot.
func (c *Core) Lookup(path string) (*models.PathNode, error) {
	var node *models.PathNode
	err := c.kv.View(func(txn tkv.Txn) error {
		var err error
		node, err = c.paths.Lookup(txn, path)
		return err
	})
	return node, err
}

// GetObject resolves path to the object currently live there.
func (c *Core) GetObject(path string) (*models.Object, error) {
	var obj *models.Object
	err := c.kv.View(func(txn tkv.Txn) error {
		node, err := c.paths.Lookup(txn, path)
		if err != nil {
			return err
		}
		obj, err = c.objects.Get(txn, node.Hash)
		return err
	})
	return obj, err
}

// Children lists the live direct children of path in lexicographic
// order.
func (c *Core) Children(path string) ([]models.PathNode, error) {
	var children []models.PathNode
	err := c.kv.View(func(txn tkv.Txn) error {
		var err error
		children, err = c.paths.Children(txn, path)
		return err
	})
	return children, err
}
