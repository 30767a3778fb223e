// Package cred builds and checks secret-bearing objects. Plaintext never
// reaches the store: issuing a credential derives an scrypt digest with a
// random salt, and the plaintext buffer is zeroed before returning.
// Verification is constant-effort — a missing path, a non-credential
// object, and a wrong secret all cost one derivation and surface the
// same rejection, so callers cannot probe for path existence through
// error shape or timing.
package cred

import (
	"crypto/rand"
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/time/rate"

	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/store"
	"github.com/copsehq/copse/db/tkv"
	"github.com/copsehq/copse/db/tree"
)

// Credential object field names.
const (
	FieldAlg    = "alg"
	FieldSalt   = "salt"
	FieldDigest = "digest"
	FieldN      = "n"
	FieldR      = "r"
	FieldP      = "p"
)

// AlgScrypt is the only password hashing algorithm currently supported.
const AlgScrypt = "scrypt"

const saltSize = 16

// Params are the scrypt cost parameters baked into each credential.
type Params struct {
	N      int
	R      int
	P      int
	KeyLen int
}

// DefaultParams is the production work factor.
var DefaultParams = Params{N: 1 << 15, R: 8, P: 1, KeyLen: 32}

// TestParams weakens derivation to keep test suites fast. Never use in a
// release configuration.
var TestParams = Params{N: 2, R: 1, P: 1, KeyLen: 32}

type Config struct {
	Logger *slog.Logger
	Params Params

	// VerifyRate/VerifyBurst throttle verification attempts per path.
	// Zero rate disables throttling.
	VerifyRate  float64
	VerifyBurst int
}

type Manager struct {
	logger  *slog.Logger
	params  Params
	objects *store.Store
	paths   *tree.Tree

	// decoy digest burned on verification against a path that has no
	// usable credential, keeping the failure cost uniform.
	decoySalt   []byte
	decoyDigest []byte

	verifyRate  rate.Limit
	verifyBurst int
	limiters    *ttlcache.Cache[string, *rate.Limiter]
}

func New(config Config, objects *store.Store, paths *tree.Tree) (*Manager, error) {
	if config.Params == (Params{}) {
		config.Params = DefaultParams
	}

	decoySalt, err := randomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	decoyPlain, err := randomBytes(32)
	if err != nil {
		return nil, err
	}
	decoyDigest, err := scrypt.Key(decoyPlain, decoySalt, config.Params.N, config.Params.R, config.Params.P, config.Params.KeyLen)
	if err != nil {
		return nil, err
	}
	Zero(decoyPlain)

	m := &Manager{
		logger:      config.Logger.WithGroup("cred"),
		params:      config.Params,
		objects:     objects,
		paths:       paths,
		decoySalt:   decoySalt,
		decoyDigest: decoyDigest,
		verifyRate:  rate.Limit(config.VerifyRate),
		verifyBurst: config.VerifyBurst,
	}

	if config.VerifyRate > 0 {
		m.limiters = ttlcache.New[string, *rate.Limiter](
			ttlcache.WithTTL[string, *rate.Limiter](time.Minute),
			ttlcache.WithDisableTouchOnHit[string, *rate.Limiter](),
		)
		go m.limiters.Start()
	}
	return m, nil
}

// Stop shuts down the limiter cache janitor, if throttling is enabled.
func (m *Manager) Stop() {
	if m.limiters != nil {
		m.limiters.Stop()
	}
}

// Issue derives a credential object from plaintext. The plaintext buffer
// is zeroed before returning, success or failure.
func (m *Manager) Issue(plaintext []byte, now int64) (*models.Object, error) {
	defer Zero(plaintext)

	salt, err := randomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	digest, err := scrypt.Key(plaintext, salt, m.params.N, m.params.R, m.params.P, m.params.KeyLen)
	if err != nil {
		return nil, err
	}

	return &models.Object{
		Type: models.TypeCredential,
		Fields: map[string]models.Value{
			FieldAlg:    models.String(AlgScrypt),
			FieldSalt:   models.Bytes(salt),
			FieldDigest: models.Bytes(digest),
			FieldN:      models.Int(int64(m.params.N)),
			FieldR:      models.Int(int64(m.params.R)),
			FieldP:      models.Int(int64(m.params.P)),
		},
		CreatedAt: now,
	}, nil
}

// Verify checks candidate plaintext against the live credential at path.
// Every failure mode — unknown path, non-credential object, wrong secret,
// throttled attempt — returns ErrCredentialRejected and nothing else.
func (m *Manager) Verify(txn tkv.Txn, path string, candidate []byte) error {
	defer Zero(candidate)

	if !m.allow(path) {
		m.logger.Warn("credential verification throttled", "path", path)
		return ErrCredentialRejected
	}

	salt, digest := m.decoySalt, m.decoyDigest
	params := m.params
	usable := false

	node, err := m.paths.Lookup(txn, path)
	if err == nil {
		obj, err := m.objects.Get(txn, node.Hash)
		if err == nil {
			if mat, ok := credentialMaterial(obj); ok {
				salt, digest, params, usable = mat.salt, mat.digest, mat.params, true
			}
		}
	}

	derived, err := scrypt.Key(candidate, salt, params.N, params.R, params.P, len(digest))
	if err != nil {
		return ErrCredentialRejected
	}
	if subtle.ConstantTimeCompare(derived, digest) != 1 || !usable {
		return ErrCredentialRejected
	}
	return nil
}

type material struct {
	salt   []byte
	digest []byte
	params Params
}

// credentialMaterial extracts salt, digest, and the cost parameters the
// credential was derived with. Verification always uses the stored
// parameters so rotation can change the work factor without breaking
// older credentials.
func credentialMaterial(obj *models.Object) (material, bool) {
	if obj.Type != models.TypeCredential {
		return material{}, false
	}
	alg, _ := obj.Field(FieldAlg)
	if alg.Str != AlgScrypt {
		return material{}, false
	}
	s, okS := obj.Field(FieldSalt)
	d, okD := obj.Field(FieldDigest)
	n, okN := obj.Field(FieldN)
	r, okR := obj.Field(FieldR)
	p, okP := obj.Field(FieldP)
	if !okS || !okD || !okN || !okR || !okP || len(s.Bytes) == 0 || len(d.Bytes) == 0 {
		return material{}, false
	}
	return material{
		salt:   s.Bytes,
		digest: d.Bytes,
		params: Params{N: int(n.Int), R: int(r.Int), P: int(p.Int), KeyLen: len(d.Bytes)},
	}, true
}

func (m *Manager) allow(path string) bool {
	if m.limiters == nil {
		return true
	}
	item := m.limiters.Get(path)
	if item == nil {
		item = m.limiters.Set(path, rate.NewLimiter(m.verifyRate, m.verifyBurst), ttlcache.DefaultTTL)
	}
	return item.Value().Allow()
}

// Zero overwrites a secret buffer.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
