package models

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the width of every content hash in the store.
const HashSize = 32

// Hash is a 32-byte BLAKE3 digest. It is the sole identity of an object:
// two objects with identical canonical encodings share a hash, and the
// object store keys its records by it.
type Hash [HashSize]byte

// ZeroHash is the genesis value: the PrevHash of the first log entry and
// the "no object" marker in operations that create or delete a path.
var ZeroHash Hash

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Hex returns the lowercase hex encoding of the hash. This is the
// canonical format for logs and audit output.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parsing hash: %w", err)
	}
	if len(raw) != HashSize {
		return h, fmt.Errorf("hash is %d bytes, want %d", len(raw), HashSize)
	}
	copy(h[:], raw)
	return h, nil
}
