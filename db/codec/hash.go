package codec

import (
	"github.com/zeebo/blake3"

	"github.com/copsehq/copse/db/models"
)

// Domain separation keys for BLAKE3 keyed hashing. Object hashes and log
// entry hashes live in different domains, so an object encoding can never
// collide with a log entry encoding even if the bytes were equal. Fixed
// constants: changing one invalidates every hash in its domain. The values
// are ASCII zero-padded to 32 bytes so they read cleanly in hex dumps.
var (
	objectDomainKey = [32]byte{
		'c', 'o', 'p', 's', 'e', '.', 'o', 'b', 'j', 'e', 'c', 't',
	}
	entryDomainKey = [32]byte{
		'c', 'o', 'p', 's', 'e', '.', 'l', 'o', 'g', '.', 'e', 'n', 't', 'r', 'y',
	}
)

// HashObject computes the object-domain content hash of canonical bytes.
// Pure function of the bytes alone.
func HashObject(data []byte) models.Hash {
	return keyedHash(objectDomainKey, data)
}

// HashEntry computes the log-entry-domain hash of canonical bytes.
func HashEntry(data []byte) models.Hash {
	return keyedHash(entryDomainKey, data)
}

func keyedHash(key [32]byte, data []byte) models.Hash {
	// NewKeyed only fails on a wrong key length, which the fixed-size
	// key type rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("codec: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var h models.Hash
	copy(h[:], hasher.Sum(nil))
	return h
}
