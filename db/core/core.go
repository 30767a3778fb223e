// Package core is the directory engine: the façade that composes the
// object store, the directory tree, the transaction log, and the
// credential manager into atomic operations. Every mutating call runs as
// exactly one key-value transaction — validate, write objects, update the
// tree, chain a log entry, commit — and no operation ever spans two.
// On any failure before commit the transaction is discarded natively;
// readers never observe partial state.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/copsehq/copse/db/codec"
	"github.com/copsehq/copse/db/cred"
	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/oplog"
	"github.com/copsehq/copse/db/store"
	"github.com/copsehq/copse/db/tkv"
	"github.com/copsehq/copse/db/tree"
)

// StoreInfoKey holds the store identity record.
const StoreInfoKey = "meta/store"

type Config struct {
	AppCtx context.Context
	Logger *slog.Logger

	// Provider is the transactional key-value backend. The engine only
	// ever touches the interface, so any conforming backend works.
	Provider tkv.Provider

	ObjectCacheTTL time.Duration

	CredentialParams cred.Params
	VerifyRate       float64
	VerifyBurst      int
}

type Core struct {
	appCtx  context.Context
	logger  *slog.Logger
	kv      tkv.Provider
	objects *store.Store
	paths   *tree.Tree
	log     *oplog.Log
	creds   *cred.Manager
	info    models.StoreInfo
}

func New(config Config) (*Core, error) {
	logger := config.Logger.WithGroup("engine")

	objects := store.New(store.Config{
		Logger:   config.Logger,
		CacheTTL: config.ObjectCacheTTL,
	})
	paths := tree.New(config.Logger, objects)

	creds, err := cred.New(cred.Config{
		Logger:      config.Logger,
		Params:      config.CredentialParams,
		VerifyRate:  config.VerifyRate,
		VerifyBurst: config.VerifyBurst,
	}, objects, paths)
	if err != nil {
		objects.Stop()
		return nil, err
	}

	c := &Core{
		appCtx:  config.AppCtx,
		logger:  logger,
		kv:      config.Provider,
		objects: objects,
		paths:   paths,
		log:     oplog.New(config.Logger),
		creds:   creds,
	}

	if err := c.initialize(); err != nil {
		creds.Stop()
		objects.Stop()
		return nil, err
	}
	return c, nil
}

// initialize writes the store identity record and the namespace root on
// first open. Both ride one transaction, and the root creation goes
// through the log so a full replay reconstructs the tree from nothing.
// Two processes racing on a fresh store contend on the log tail; the
// loser simply finds everything in place on retry.
func (c *Core) initialize() error {
	return RetryOnConflict(3, func() error {
		txn, err := c.kv.BeginWrite()
		if err != nil {
			return err
		}
		defer txn.Discard()

		dirty := false

		data, err := txn.Get(StoreInfoKey)
		switch {
		case err == nil:
			if err := codec.Unmarshal(data, &c.info); err != nil {
				return &codec.ErrCorruptEncoding{Reason: fmt.Sprintf("store info: %v", err)}
			}
		case tkv.IsErrKeyNotFound(err):
			c.info = models.StoreInfo{
				ID:        uuid.NewString(),
				CreatedAt: time.Now().Unix(),
			}
			infoBytes, err := codec.Marshal(&c.info)
			if err != nil {
				return &codec.ErrCorruptEncoding{Reason: err.Error()}
			}
			if err := txn.Set(StoreInfoKey, infoBytes); err != nil {
				return err
			}
			dirty = true
		default:
			return err
		}

		now := time.Now().Unix()
		ops, err := c.paths.EnsureRoot(txn, &models.Object{
			Type:      models.TypeRoot,
			Fields:    map[string]models.Value{},
			CreatedAt: now,
		}, now)
		if err != nil {
			return err
		}
		if len(ops) > 0 {
			if _, err := c.log.Append(txn, ops, now); err != nil {
				return err
			}
			dirty = true
		}

		if !dirty {
			return nil
		}
		if err := txn.Commit(); err != nil {
			return err
		}
		c.logger.Info("store initialized", "id", c.info.ID)
		return nil
	})
}

// Info returns the identity record of the open store.
func (c *Core) Info() models.StoreInfo {
	return c.info
}

func (c *Core) Close() error {
	c.creds.Stop()
	c.objects.Stop()
	return c.kv.Close()
}

// mutate runs one atomic engine operation: fn validates and stages the
// namespace writes, the resulting operations are chained onto the log,
// and the whole transaction commits or vanishes. Commit-time contention
// surfaces as tkv.ErrConflict; the caller retries the logical operation
// as a whole, never a sub-step.
func (c *Core) mutate(fn func(txn tkv.Txn, now int64) ([]models.Operation, error)) (*models.LogEntry, error) {
	now := time.Now().Unix()

	txn, err := c.kv.BeginWrite()
	if err != nil {
		return nil, err
	}
	defer txn.Discard()

	ops, err := fn(txn, now)
	if err != nil {
		return nil, err
	}
	entry, err := c.log.Append(txn, ops, now)
	if err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	c.logger.Debug("transaction committed", "sequence", entry.Sequence, "operations", len(ops))
	return entry, nil
}

// RetryOnConflict reruns fn while it fails with the provider's conflict
// error, up to attempts tries. Any other error returns immediately —
// conflicts are the only class the engine expects callers to retry
// automatically.
func RetryOnConflict(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !tkv.IsErrConflict(err) {
			return err
		}
	}
	return err
}
