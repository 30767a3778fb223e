package core

import (
	"context"
	"log/slog"

	"github.com/copsehq/copse/config"
	"github.com/copsehq/copse/db/cred"
	"github.com/copsehq/copse/db/tkv"
)

// Open builds the whole stack from a loaded configuration: the Badger
// provider on cfg.DataDir, then the engine over it. Close shuts both
// down.
func Open(appCtx context.Context, logger *slog.Logger, cfg *config.Store) (*Core, error) {
	kv, err := tkv.New(tkv.Config{
		Logger:    logger,
		Directory: cfg.DataDir,
		AppCtx:    appCtx,
	})
	if err != nil {
		return nil, err
	}

	params := cred.Params{
		N:      cfg.Credential.ScryptN,
		R:      cfg.Credential.ScryptR,
		P:      cfg.Credential.ScryptP,
		KeyLen: cfg.Credential.ScryptKeyLen,
	}
	if params == (cred.Params{}) {
		params = cred.DefaultParams
	}

	c, err := New(Config{
		AppCtx:           appCtx,
		Logger:           logger,
		Provider:         kv,
		ObjectCacheTTL:   cfg.Cache.ObjectTTL,
		CredentialParams: params,
		VerifyRate:       cfg.Credential.VerifyRate,
		VerifyBurst:      cfg.Credential.VerifyBurst,
	})
	if err != nil {
		kv.Close()
		return nil, err
	}
	return c, nil
}
