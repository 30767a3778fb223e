package tree

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/store"
	"github.com/copsehq/copse/db/tkv"
)

const testNow = int64(1700000000)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestTree(t *testing.T) (*Tree, tkv.Provider) {
	t.Helper()
	kv, err := tkv.New(tkv.Config{
		Logger:         testLogger(),
		BadgerLogLevel: slog.LevelWarn,
		Directory:      t.TempDir(),
		AppCtx:         context.Background(),
	})
	require.NoError(t, err)

	objects := store.New(store.Config{Logger: testLogger()})
	tr := New(testLogger(), objects)

	err = kv.Update(func(txn tkv.Txn) error {
		_, err := tr.EnsureRoot(txn, &models.Object{
			Type:      models.TypeRoot,
			Fields:    map[string]models.Value{},
			CreatedAt: testNow,
		}, testNow)
		return err
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		objects.Stop()
		kv.Close()
	})
	return tr, kv
}

func ouObject(name string) *models.Object {
	return &models.Object{
		Type:      models.TypeOU,
		Fields:    map[string]models.Value{"name": models.String(name)},
		CreatedAt: testNow,
	}
}

func userObject(uid string) *models.Object {
	return &models.Object{
		Type:      models.TypeUser,
		Fields:    map[string]models.Value{"uid": models.String(uid)},
		CreatedAt: testNow,
	}
}

// mustCreate commits a create in its own transaction.
func mustCreate(t *testing.T, tr *Tree, kv tkv.Provider, path string, obj *models.Object) []models.Operation {
	t.Helper()
	var ops []models.Operation
	err := kv.Update(func(txn tkv.Txn) error {
		var err error
		ops, err = tr.Create(txn, path, obj, testNow)
		return err
	})
	require.NoError(t, err)
	return ops
}

func TestTree_Create(t *testing.T) {
	tr, kv := newTestTree(t)

	ops := mustCreate(t, tr, kv, "/users", ouObject("users"))
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpCreate, ops[0].Kind)
	assert.Equal(t, "/users", ops[0].Path)
	assert.True(t, ops[0].OldHash.IsZero())
	assert.False(t, ops[0].NewHash.IsZero())

	var node *models.PathNode
	err := kv.View(func(txn tkv.Txn) error {
		var err error
		node, err = tr.Lookup(txn, "/users")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "/users", node.Path)
	assert.Equal(t, RootPath, node.ParentPath)
	assert.Equal(t, uint64(0), node.Revision)
	assert.Equal(t, ops[0].NewHash, node.Hash)
}

func TestTree_CreateParentMissing(t *testing.T) {
	tr, kv := newTestTree(t)

	err := kv.Update(func(txn tkv.Txn) error {
		_, err := tr.Create(txn, "/users/alice", userObject("alice"), testNow)
		return err
	})
	require.Error(t, err)
	assert.True(t, IsErrParentMissing(err), "got %v", err)
}

func TestTree_CreateExists(t *testing.T) {
	tr, kv := newTestTree(t)
	mustCreate(t, tr, kv, "/users", ouObject("users"))

	err := kv.Update(func(txn tkv.Txn) error {
		_, err := tr.Create(txn, "/users", ouObject("users2"), testNow)
		return err
	})
	assert.True(t, IsErrPathExists(err), "got %v", err)
}

func TestTree_CreateInvalidPaths(t *testing.T) {
	tr, kv := newTestTree(t)

	for _, path := range []string{"", "users", "/users/", "//users", "/users/../etc", "/a/./b"} {
		err := kv.Update(func(txn tkv.Txn) error {
			_, err := tr.Create(txn, path, ouObject("x"), testNow)
			return err
		})
		assert.True(t, IsErrInvalidPath(err), "path %q: got %v", path, err)
	}
}

func TestTree_Modify(t *testing.T) {
	tr, kv := newTestTree(t)
	mustCreate(t, tr, kv, "/users", ouObject("users"))
	created := mustCreate(t, tr, kv, "/users/alice", userObject("alice"))

	changed := userObject("alice")
	changed.Fields["email"] = models.String("a@x.com")

	var ops []models.Operation
	err := kv.Update(func(txn tkv.Txn) error {
		var err error
		ops, err = tr.Modify(txn, "/users/alice", changed, testNow+5)
		return err
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpModify, ops[0].Kind)
	assert.Equal(t, created[0].NewHash, ops[0].OldHash)
	assert.NotEqual(t, ops[0].OldHash, ops[0].NewHash)

	var node *models.PathNode
	err = kv.View(func(txn tkv.Txn) error {
		var err error
		node, err = tr.Lookup(txn, "/users/alice")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), node.Revision)
	assert.Equal(t, ops[0].NewHash, node.Hash)
}

func TestTree_ModifyMissing(t *testing.T) {
	tr, kv := newTestTree(t)

	err := kv.Update(func(txn tkv.Txn) error {
		_, err := tr.Modify(txn, "/nope", userObject("x"), testNow)
		return err
	})
	assert.True(t, IsErrPathNotFound(err), "got %v", err)
}

func TestTree_DeleteAndTombstone(t *testing.T) {
	tr, kv := newTestTree(t)
	mustCreate(t, tr, kv, "/users", ouObject("users"))
	mustCreate(t, tr, kv, "/users/alice", userObject("alice"))

	t.Run("Delete with live children rejected", func(t *testing.T) {
		err := kv.Update(func(txn tkv.Txn) error {
			_, err := tr.Delete(txn, "/users", testNow)
			return err
		})
		assert.True(t, IsErrHasChildren(err), "got %v", err)
	})

	t.Run("Delete leaf tombstones", func(t *testing.T) {
		var ops []models.Operation
		err := kv.Update(func(txn tkv.Txn) error {
			var err error
			ops, err = tr.Delete(txn, "/users/alice", testNow)
			return err
		})
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, models.OpDelete, ops[0].Kind)
		assert.True(t, ops[0].NewHash.IsZero())

		err = kv.View(func(txn tkv.Txn) error {
			_, err := tr.Lookup(txn, "/users/alice")
			return err
		})
		assert.True(t, IsErrPathNotFound(err), "tombstoned path must not resolve, got %v", err)
	})

	t.Run("Tombstoned path is never reusable", func(t *testing.T) {
		err := kv.Update(func(txn tkv.Txn) error {
			_, err := tr.Create(txn, "/users/alice", userObject("alice2"), testNow)
			return err
		})
		assert.True(t, IsErrPathExists(err), "got %v", err)
	})

	t.Run("Parent deletable once children are tombstoned", func(t *testing.T) {
		err := kv.Update(func(txn tkv.Txn) error {
			_, err := tr.Delete(txn, "/users", testNow)
			return err
		})
		require.NoError(t, err)
	})

	t.Run("Root is not deletable", func(t *testing.T) {
		err := kv.Update(func(txn tkv.Txn) error {
			_, err := tr.Delete(txn, RootPath, testNow)
			return err
		})
		assert.True(t, IsErrInvalidPath(err), "got %v", err)
	})
}

func TestTree_Move(t *testing.T) {
	tr, kv := newTestTree(t)
	mustCreate(t, tr, kv, "/staff", ouObject("staff"))
	mustCreate(t, tr, kv, "/staff/alice", userObject("alice"))
	mustCreate(t, tr, kv, "/staff/alice/keys", ouObject("keys"))
	mustCreate(t, tr, kv, "/contractors", ouObject("contractors"))

	var ops []models.Operation
	err := kv.Update(func(txn tkv.Txn) error {
		var err error
		ops, err = tr.Move(txn, "/staff/alice", "/contractors", testNow+10)
		return err
	})
	require.NoError(t, err)

	// Node plus one live descendant, each a src/dst pair.
	require.Len(t, ops, 4)
	assert.Equal(t, models.OpMoveSrc, ops[0].Kind)
	assert.Equal(t, "/staff/alice", ops[0].Path)
	assert.Equal(t, models.OpMoveDst, ops[1].Kind)
	assert.Equal(t, "/contractors/alice", ops[1].Path)
	assert.Equal(t, ops[0].OldHash, ops[1].NewHash)
	assert.Equal(t, "/staff/alice/keys", ops[2].Path)
	assert.Equal(t, "/contractors/alice/keys", ops[3].Path)

	err = kv.View(func(txn tkv.Txn) error {
		node, err := tr.Lookup(txn, "/contractors/alice")
		if err != nil {
			return err
		}
		assert.Equal(t, "/contractors", node.ParentPath)
		assert.Equal(t, uint64(0), node.Revision, "relocated node restarts its per-path revision")

		if _, err := tr.Lookup(txn, "/contractors/alice/keys"); err != nil {
			return err
		}

		_, err = tr.Lookup(txn, "/staff/alice")
		assert.True(t, IsErrPathNotFound(err), "old path must be tombstoned, got %v", err)
		return nil
	})
	require.NoError(t, err)

	t.Run("Old path is never reusable", func(t *testing.T) {
		err := kv.Update(func(txn tkv.Txn) error {
			_, err := tr.Create(txn, "/staff/alice", userObject("alice"), testNow)
			return err
		})
		assert.True(t, IsErrPathExists(err), "got %v", err)
	})
}

func TestTree_MoveCycle(t *testing.T) {
	tr, kv := newTestTree(t)
	mustCreate(t, tr, kv, "/a", ouObject("a"))
	mustCreate(t, tr, kv, "/a/b", ouObject("b"))
	mustCreate(t, tr, kv, "/a/b/c", ouObject("c"))

	t.Run("Move under own descendant", func(t *testing.T) {
		err := kv.Update(func(txn tkv.Txn) error {
			_, err := tr.Move(txn, "/a", "/a/b/c", testNow)
			return err
		})
		assert.True(t, IsErrCycleDetected(err), "got %v", err)
	})

	t.Run("Move under itself", func(t *testing.T) {
		err := kv.Update(func(txn tkv.Txn) error {
			_, err := tr.Move(txn, "/a/b", "/a/b", testNow)
			return err
		})
		assert.True(t, IsErrCycleDetected(err), "got %v", err)
	})

	t.Run("Move to missing parent", func(t *testing.T) {
		err := kv.Update(func(txn tkv.Txn) error {
			_, err := tr.Move(txn, "/a/b", "/nowhere", testNow)
			return err
		})
		assert.True(t, IsErrParentMissing(err), "got %v", err)
	})
}

func TestTree_Children(t *testing.T) {
	tr, kv := newTestTree(t)
	mustCreate(t, tr, kv, "/svc", ouObject("svc"))
	mustCreate(t, tr, kv, "/svc/web", ouObject("web"))
	mustCreate(t, tr, kv, "/svc/db", ouObject("db"))
	mustCreate(t, tr, kv, "/svc/db/replica", ouObject("replica"))
	mustCreate(t, tr, kv, "/svc/auth", ouObject("auth"))

	err := kv.Update(func(txn tkv.Txn) error {
		_, err := tr.Delete(txn, "/svc/web", testNow)
		return err
	})
	require.NoError(t, err)

	var children []models.PathNode
	err = kv.View(func(txn tkv.Txn) error {
		var err error
		children, err = tr.Children(txn, "/svc")
		return err
	})
	require.NoError(t, err)

	// Direct live children only, lexicographic, no grandchildren, no
	// tombstones.
	require.Len(t, children, 2)
	assert.Equal(t, "/svc/auth", children[0].Path)
	assert.Equal(t, "/svc/db", children[1].Path)
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, RootPath, ParentPath("/users"))
	assert.Equal(t, "/users", ParentPath("/users/alice"))
	assert.Equal(t, "", ParentPath(RootPath))
	assert.Equal(t, "alice", BaseName("/users/alice"))
	assert.Equal(t, "/users/alice", JoinPath("/users", "alice"))
	assert.Equal(t, "/alice", JoinPath(RootPath, "alice"))
}
