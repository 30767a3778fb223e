package store

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/tkv"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestStore(t *testing.T) (*Store, tkv.Provider) {
	t.Helper()
	dir := t.TempDir()
	kv, err := tkv.New(tkv.Config{
		Logger:         testLogger(),
		BadgerLogLevel: slog.LevelWarn,
		Directory:      dir,
		AppCtx:         context.Background(),
	})
	require.NoError(t, err)
	s := New(Config{Logger: testLogger()})
	t.Cleanup(func() {
		s.Stop()
		kv.Close()
	})
	return s, kv
}

func hostObject(name string) *models.Object {
	return &models.Object{
		Type: models.TypeHost,
		Fields: map[string]models.Value{
			"fqdn": models.String(name),
		},
		CreatedAt: 1700000000,
	}
}

func TestStore_PutGet(t *testing.T) {
	s, kv := newTestStore(t)

	obj := hostObject("db1.example.com")
	var hash models.Hash
	err := kv.Update(func(txn tkv.Txn) error {
		var err error
		hash, err = s.Put(txn, obj)
		return err
	})
	require.NoError(t, err)
	require.False(t, hash.IsZero())

	var got *models.Object
	err = kv.View(func(txn tkv.Txn) error {
		var err error
		got, err = s.Get(txn, hash)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, obj, got)
}

func TestStore_PutIdempotent(t *testing.T) {
	s, kv := newTestStore(t)

	first := models.ZeroHash
	second := models.ZeroHash
	err := kv.Update(func(txn tkv.Txn) error {
		var err error
		first, err = s.Put(txn, hostObject("web1.example.com"))
		return err
	})
	require.NoError(t, err)

	err = kv.Update(func(txn tkv.Txn) error {
		var err error
		second, err = s.Put(txn, hostObject("web1.example.com"))
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, first, second, "same content must land on the same hash")
}

func TestStore_GetMissing(t *testing.T) {
	s, kv := newTestStore(t)

	missing := models.Hash{0xde, 0xad}
	err := kv.View(func(txn tkv.Txn) error {
		_, err := s.Get(txn, missing)
		return err
	})
	require.Error(t, err)
	assert.True(t, IsErrObjectNotFound(err), "got %v", err)

	var notFound *ErrObjectNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, missing, notFound.Hash)
}

func TestStore_AbortedPutNotVisible(t *testing.T) {
	s, kv := newTestStore(t)

	var hash models.Hash
	txn, err := kv.BeginWrite()
	require.NoError(t, err)
	hash, err = s.Put(txn, hostObject("ghost.example.com"))
	require.NoError(t, err)
	txn.Discard()

	err = kv.View(func(txn tkv.Txn) error {
		_, err := s.Get(txn, hash)
		return err
	})
	assert.True(t, IsErrObjectNotFound(err),
		"object from an aborted transaction must not be visible, got %v", err)
}
