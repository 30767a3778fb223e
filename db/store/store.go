// Package store is the content-addressed object layer: canonical object
// bytes keyed by their content hash. Records are write-once; a "change"
// elsewhere in the system is always a new object under a new hash. The
// store never deletes — garbage collection would need reference counting
// against the tree and the log, and is out of core.
package store

import (
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/copsehq/copse/db/codec"
	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/tkv"
)

// KeyPrefix is the object namespace inside the key-value store.
const KeyPrefix = "obj/"

var DefaultCacheTTL = 5 * time.Minute

type Config struct {
	Logger   *slog.Logger
	CacheTTL time.Duration
}

// Store persists objects inside caller-supplied transactions. A write
// only becomes durable if the enclosing transaction commits.
//
// Because content-addressed values are immutable, a small TTL cache in
// front of the key-value store is always coherent: a hex hash either
// resolves to the same bytes forever or not at all.
type Store struct {
	logger *slog.Logger
	cache  *ttlcache.Cache[string, []byte]
}

func New(config Config) *Store {
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	cache := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](config.CacheTTL),
	)
	go cache.Start()

	return &Store{
		logger: config.Logger.WithGroup("store"),
		cache:  cache,
	}
}

// Stop shuts down the cache janitor.
func (s *Store) Stop() {
	s.cache.Stop()
}

func objectKey(h models.Hash) string {
	return KeyPrefix + h.Hex()
}

// Put encodes, hashes, and writes the object under its content hash if
// absent. Idempotent: putting the same content twice is a no-op on the
// second write and returns the same hash.
func (s *Store) Put(txn tkv.Txn, obj *models.Object) (models.Hash, error) {
	data, err := codec.EncodeObject(obj)
	if err != nil {
		return models.ZeroHash, err
	}
	hash := codec.HashObject(data)
	key := objectKey(hash)

	// The cache is only populated on reads of committed data; staging an
	// uncommitted write there would leak objects from aborted transactions.
	if s.cache.Has(key) {
		return hash, nil
	}
	if _, err := txn.Get(key); err == nil {
		return hash, nil
	} else if !tkv.IsErrKeyNotFound(err) {
		return models.ZeroHash, err
	}

	if err := txn.Set(key, data); err != nil {
		return models.ZeroHash, err
	}
	s.logger.Debug("object written", "hash", hash.Hex(), "type", obj.Type, "bytes", len(data))
	return hash, nil
}

// Get resolves a content hash to its object.
func (s *Store) Get(txn tkv.Txn, hash models.Hash) (*models.Object, error) {
	data, err := s.GetBytes(txn, hash)
	if err != nil {
		return nil, err
	}
	return codec.DecodeObject(data)
}

// GetBytes resolves a content hash to its canonical bytes. Callers that
// want to re-verify the hash themselves use this form.
func (s *Store) GetBytes(txn tkv.Txn, hash models.Hash) ([]byte, error) {
	key := objectKey(hash)
	if item := s.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	data, err := txn.Get(key)
	if err != nil {
		if tkv.IsErrKeyNotFound(err) {
			return nil, &ErrObjectNotFound{Hash: hash}
		}
		return nil, err
	}
	s.cache.Set(key, data, ttlcache.DefaultTTL)
	return data, nil
}
