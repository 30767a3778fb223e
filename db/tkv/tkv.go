// Package tkv is the transactional key-value capability the directory
// engine is built on: an embedded, ordered byte-key store with snapshot
// isolation. Everything above this package consumes the Provider and Txn
// interfaces only, so an alternate transactional backend can be swapped
// in without touching the engine.
package tkv

import (
	"context"
	"log/slog"
)

type Config struct {
	Logger         *slog.Logger
	BadgerLogLevel slog.Level
	Directory      string
	AppCtx         context.Context
}

// Txn is one transaction. Read transactions see a consistent snapshot as
// of their start. Write transactions are conflict-checked at Commit: if a
// key this transaction read or wrote was committed by another writer in
// the meantime, Commit returns ErrConflict and nothing is applied.
type Txn interface {
	// Get returns the value at key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Set stages a write. Only valid on write transactions.
	Set(key string, value []byte) error

	// Delete stages a removal. Only valid on write transactions.
	Delete(key string) error

	// Cursor walks keys with the given prefix in lexicographic order,
	// calling fn for each pair. Returning false stops the walk early.
	Cursor(prefix string, fn func(key string, value []byte) (bool, error)) error

	// Commit applies the transaction atomically, or returns ErrConflict.
	Commit() error

	// Discard abandons the transaction. Safe to call after Commit.
	Discard()
}

// Provider opens transactions against one physical store.
type Provider interface {
	BeginWrite() (Txn, error)
	BeginRead() (Txn, error)

	// View runs fn in a read transaction and discards it.
	View(fn func(Txn) error) error

	// Update runs fn in a write transaction and commits it if fn returns
	// nil; any error (including ErrConflict from the commit) aborts.
	Update(fn func(Txn) error) error

	Close() error
}
