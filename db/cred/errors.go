package cred

import "errors"

// ErrCredentialRejected is the single, uniform verification failure. It
// carries no fields on purpose: distinguishing "no such path" from
// "wrong secret" would leak entry existence to an unauthenticated
// caller.
var ErrCredentialRejected = errors.New("credential rejected")

func IsErrCredentialRejected(err error) bool {
	return errors.Is(err, ErrCredentialRejected)
}
