package core

import (
	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/tkv"
)

// IssueCredential derives a credential from plaintext and creates it at
// path. The plaintext buffer is zeroed before this returns.
func (c *Core) IssueCredential(path string, plaintext []byte) (*models.LogEntry, error) {
	return c.mutate(func(txn tkv.Txn, now int64) ([]models.Operation, error) {
		obj, err := c.creds.Issue(plaintext, now)
		if err != nil {
			return nil, err
		}
		return c.paths.Create(txn, path, obj, now)
	})
}

// RotateCredential derives a fresh credential from the new plaintext and
// repoints the live path at it. The old digest is never touched in
// place; it stays in the object store as history.
func (c *Core) RotateCredential(path string, newPlaintext []byte) (*models.LogEntry, error) {
	return c.mutate(func(txn tkv.Txn, now int64) ([]models.Operation, error) {
		obj, err := c.creds.Issue(newPlaintext, now)
		if err != nil {
			return nil, err
		}
		return c.paths.Modify(txn, path, obj, now)
	})
}

// VerifyCredential checks candidate plaintext against the live
// credential at path. All failures — unknown path, non-credential
// object, wrong secret — surface as the one uniform
// cred.ErrCredentialRejected.
func (c *Core) VerifyCredential(path string, candidate []byte) error {
	return c.kv.View(func(txn tkv.Txn) error {
		return c.creds.Verify(txn, path, candidate)
	})
}
