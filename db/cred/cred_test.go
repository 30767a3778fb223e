package cred

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/store"
	"github.com/copsehq/copse/db/tkv"
	"github.com/copsehq/copse/db/tree"
)

const testNow = int64(1700000000)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type credFixture struct {
	kv      tkv.Provider
	objects *store.Store
	paths   *tree.Tree
	mgr     *Manager
}

func newCredFixture(t *testing.T, cfg Config) *credFixture {
	t.Helper()
	kv, err := tkv.New(tkv.Config{
		Logger:         testLogger(),
		BadgerLogLevel: slog.LevelWarn,
		Directory:      t.TempDir(),
		AppCtx:         context.Background(),
	})
	require.NoError(t, err)

	objects := store.New(store.Config{Logger: testLogger()})
	paths := tree.New(testLogger(), objects)

	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	if cfg.Params == (Params{}) {
		cfg.Params = TestParams
	}
	mgr, err := New(cfg, objects, paths)
	require.NoError(t, err)

	err = kv.Update(func(txn tkv.Txn) error {
		_, err := paths.EnsureRoot(txn, &models.Object{
			Type:      models.TypeRoot,
			Fields:    map[string]models.Value{},
			CreatedAt: testNow,
		}, testNow)
		return err
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		mgr.Stop()
		objects.Stop()
		kv.Close()
	})
	return &credFixture{kv: kv, objects: objects, paths: paths, mgr: mgr}
}

// placeCredential issues a credential from secret and commits it at path.
func (f *credFixture) placeCredential(t *testing.T, path, secret string) {
	t.Helper()
	obj, err := f.mgr.Issue([]byte(secret), testNow)
	require.NoError(t, err)
	err = f.kv.Update(func(txn tkv.Txn) error {
		_, err := f.paths.Create(txn, path, obj, testNow)
		return err
	})
	require.NoError(t, err)
}

func TestManager_Issue(t *testing.T) {
	f := newCredFixture(t, Config{})

	plaintext := []byte("hunter2hunter2")
	obj, err := f.mgr.Issue(plaintext, testNow)
	require.NoError(t, err)

	assert.Equal(t, models.TypeCredential, obj.Type)

	alg, ok := obj.Field(FieldAlg)
	require.True(t, ok)
	assert.Equal(t, AlgScrypt, alg.Str)

	salt, ok := obj.Field(FieldSalt)
	require.True(t, ok)
	assert.Len(t, salt.Bytes, saltSize)

	digest, ok := obj.Field(FieldDigest)
	require.True(t, ok)
	assert.Len(t, digest.Bytes, TestParams.KeyLen)

	n, _ := obj.Field(FieldN)
	assert.Equal(t, int64(TestParams.N), n.Int)

	assert.Equal(t, make([]byte, 14), plaintext,
		"plaintext must be zeroed after issuance")
}

func TestManager_IssueUniqueSalts(t *testing.T) {
	f := newCredFixture(t, Config{})

	a, err := f.mgr.Issue([]byte("same secret"), testNow)
	require.NoError(t, err)
	b, err := f.mgr.Issue([]byte("same secret"), testNow)
	require.NoError(t, err)

	saltA, _ := a.Field(FieldSalt)
	saltB, _ := b.Field(FieldSalt)
	assert.NotEqual(t, saltA.Bytes, saltB.Bytes, "each issuance draws a fresh salt")

	digestA, _ := a.Field(FieldDigest)
	digestB, _ := b.Field(FieldDigest)
	assert.NotEqual(t, digestA.Bytes, digestB.Bytes)
}

func TestManager_Verify(t *testing.T) {
	f := newCredFixture(t, Config{})
	f.placeCredential(t, "/svc-token", "correct horse battery staple")

	t.Run("Correct secret accepted", func(t *testing.T) {
		err := f.kv.View(func(txn tkv.Txn) error {
			return f.mgr.Verify(txn, "/svc-token", []byte("correct horse battery staple"))
		})
		require.NoError(t, err)
	})

	t.Run("Wrong secret rejected", func(t *testing.T) {
		err := f.kv.View(func(txn tkv.Txn) error {
			return f.mgr.Verify(txn, "/svc-token", []byte("incorrect horse"))
		})
		assert.ErrorIs(t, err, ErrCredentialRejected)
	})

	t.Run("Missing path rejected identically", func(t *testing.T) {
		err := f.kv.View(func(txn tkv.Txn) error {
			return f.mgr.Verify(txn, "/no-such-path", []byte("anything"))
		})
		assert.ErrorIs(t, err, ErrCredentialRejected,
			"unknown paths must be indistinguishable from wrong secrets")
	})

	t.Run("Non-credential object rejected identically", func(t *testing.T) {
		err := f.kv.Update(func(txn tkv.Txn) error {
			_, err := f.paths.Create(txn, "/plain-ou", &models.Object{
				Type:      models.TypeOU,
				Fields:    map[string]models.Value{"name": models.String("ou")},
				CreatedAt: testNow,
			}, testNow)
			return err
		})
		require.NoError(t, err)

		err = f.kv.View(func(txn tkv.Txn) error {
			return f.mgr.Verify(txn, "/plain-ou", []byte("anything"))
		})
		assert.ErrorIs(t, err, ErrCredentialRejected)
	})

	t.Run("Candidate buffer zeroed", func(t *testing.T) {
		candidate := []byte("correct horse battery staple")
		err := f.kv.View(func(txn tkv.Txn) error {
			return f.mgr.Verify(txn, "/svc-token", candidate)
		})
		require.NoError(t, err)
		assert.Equal(t, make([]byte, len(candidate)), candidate)
	})
}

func TestManager_VerifyUsesStoredParams(t *testing.T) {
	// Issue with one work factor, verify through a manager configured with
	// another. The stored parameters must win.
	f := newCredFixture(t, Config{Params: TestParams})
	f.placeCredential(t, "/old-cred", "legacy secret")

	stronger, err := New(Config{
		Logger: testLogger(),
		Params: Params{N: 4, R: 2, P: 1, KeyLen: 32},
	}, f.objects, f.paths)
	require.NoError(t, err)
	defer stronger.Stop()

	err = f.kv.View(func(txn tkv.Txn) error {
		return stronger.Verify(txn, "/old-cred", []byte("legacy secret"))
	})
	require.NoError(t, err, "credentials issued under older parameters must keep verifying")
}

func TestManager_VerifyThrottled(t *testing.T) {
	f := newCredFixture(t, Config{VerifyRate: 0.001, VerifyBurst: 2})
	f.placeCredential(t, "/throttled", "secret")

	err := f.kv.View(func(txn tkv.Txn) error {
		for i := 0; i < 2; i++ {
			if err := f.mgr.Verify(txn, "/throttled", []byte("secret")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = f.kv.View(func(txn tkv.Txn) error {
		return f.mgr.Verify(txn, "/throttled", []byte("secret"))
	})
	assert.ErrorIs(t, err, ErrCredentialRejected,
		"attempts past the burst must be rejected even with the right secret")

	t.Run("Other paths are not throttled", func(t *testing.T) {
		f.placeCredential(t, "/fresh", "secret")
		err := f.kv.View(func(txn tkv.Txn) error {
			return f.mgr.Verify(txn, "/fresh", []byte("secret"))
		})
		require.NoError(t, err)
	})
}

func TestGeneratePassword(t *testing.T) {
	pattern := regexp.MustCompile(`^COPSE-GENPASS-x[a-z-]+x-\d{5}$`)
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		pw, err := GeneratePassword()
		require.NoError(t, err)
		assert.Regexp(t, pattern, pw)
		seen[pw] = true
	}
	assert.Greater(t, len(seen), 1, "generated passwords must vary")
}

func TestEncodeBubbleBabble(t *testing.T) {
	// Vectors from the Bubble Babble encoding description.
	cases := []struct {
		in   string
		want string
	}{
		{"", "xexax"},
		{"1234567890", "xesef-disof-gytuf-katof-movif-baxux"},
		{"Pineapple", "xigak-nyryk-humil-bosek-sonax"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, encodeBubbleBabble([]byte(tc.in)), "input %q", tc.in)
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}
