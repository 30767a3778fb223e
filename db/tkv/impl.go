package tkv

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v3"
)

type tkv struct {
	logger *slog.Logger
	appCtx context.Context
	store  *badger.DB
}

var _ Provider = &tkv{}

func New(config Config) (Provider, error) {
	if err := os.MkdirAll(config.Directory, 0755); err != nil {
		return nil, &ErrInternal{Err: err}
	}

	badgerLogLevel := badger.INFO
	switch config.BadgerLogLevel {
	case slog.LevelDebug:
		badgerLogLevel = badger.DEBUG
	case slog.LevelInfo:
		badgerLogLevel = badger.INFO
	case slog.LevelWarn:
		badgerLogLevel = badger.WARNING
	case slog.LevelError:
		badgerLogLevel = badger.ERROR
	default:
		config.Logger.Warn("Unknown badger log level, defaulting to info", "level", config.BadgerLogLevel)
	}

	dbOpts := badger.DefaultOptions(config.Directory).
		WithLogger(newLogger(config.Logger.WithGroup("store"))).
		WithLoggingLevel(badgerLogLevel).
		WithMemTableSize(16 << 20) // 16MB MemTableSize

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, &ErrInternal{Err: err}
	}

	return &tkv{
		logger: config.Logger.WithGroup("tkv"),
		appCtx: config.AppCtx,
		store:  db,
	}, nil
}

func (t *tkv) Close() error {
	if err := t.store.Close(); err != nil {
		t.logger.Error("error closing store db", "error", err)
		return &ErrInternal{Err: err}
	}
	return nil
}

func (t *tkv) BeginWrite() (Txn, error) {
	return &txn{inner: t.store.NewTransaction(true), update: true}, nil
}

func (t *tkv) BeginRead() (Txn, error) {
	return &txn{inner: t.store.NewTransaction(false)}, nil
}

func (t *tkv) View(fn func(Txn) error) error {
	tx, err := t.BeginRead()
	if err != nil {
		return err
	}
	defer tx.Discard()
	return fn(tx)
}

func (t *tkv) Update(fn func(Txn) error) error {
	tx, err := t.BeginWrite()
	if err != nil {
		return err
	}
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// txn wraps one badger transaction. Badger tracks every key a write
// transaction reads, so a Get or Cursor over a key another writer commits
// first will surface ErrConflict at Commit time. That is the engine's
// only write-write contention mechanism; there is no application-level
// locking anywhere above this.
type txn struct {
	inner  *badger.Txn
	update bool
	done   bool
}

var _ Txn = &txn{}

func (x *txn) Get(key string) ([]byte, error) {
	item, err := x.inner.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, &ErrKeyNotFound{Key: key}
		}
		return nil, &ErrInternal{Err: err}
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, &ErrInternal{Err: err}
	}
	return value, nil
}

func (x *txn) Set(key string, value []byte) error {
	if !x.update {
		return &ErrReadOnly{Key: key}
	}
	if err := x.inner.Set([]byte(key), value); err != nil {
		return &ErrInternal{Err: err}
	}
	return nil
}

func (x *txn) Delete(key string) error {
	if !x.update {
		return &ErrReadOnly{Key: key}
	}
	if err := x.inner.Delete([]byte(key)); err != nil {
		return &ErrInternal{Err: err}
	}
	return nil
}

func (x *txn) Cursor(prefix string, fn func(key string, value []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := x.inner.NewIterator(opts)
	defer it.Close()

	prefixBytes := []byte(prefix)
	for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return &ErrInternal{Err: err}
		}
		cont, err := fn(string(item.Key()), value)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (x *txn) Commit() error {
	x.done = true
	if err := x.inner.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return &ErrConflict{Err: err}
		}
		return &ErrInternal{Err: err}
	}
	return nil
}

func (x *txn) Discard() {
	x.inner.Discard()
}
