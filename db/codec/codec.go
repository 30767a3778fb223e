// Package codec canonicalizes domain values into deterministic bytes and
// computes their content hashes. Every record the engine persists (object,
// path node, log entry, meta record) goes through this package, so the
// encoding rules live in exactly one place.
package codec

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/copsehq/copse/db/models"
)

// encMode is CBOR with Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length items.
// The same logical value always produces identical bytes, regardless of
// the order the caller populated its fields. That determinism is
// load-bearing: the resulting bytes are the object's identity.
var encMode cbor.EncMode

// decMode accepts standard CBOR. Unknown map keys are ignored so older
// binaries can read records written by newer ones.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeObject canonicalizes an object. Pure: identical logical objects
// yield identical bytes on every platform and process.
func EncodeObject(obj *models.Object) ([]byte, error) {
	if !models.KnownType(obj.Type) {
		return nil, &ErrSchemaMismatch{Tag: string(obj.Type)}
	}
	data, err := encMode.Marshal(obj)
	if err != nil {
		return nil, &ErrCorruptEncoding{Reason: err.Error()}
	}
	return data, nil
}

// DecodeObject parses canonical object bytes. Malformed bytes are a
// corruption; a well-formed object with an unrecognized type tag is a
// schema mismatch.
func DecodeObject(data []byte) (*models.Object, error) {
	var obj models.Object
	if err := decMode.Unmarshal(data, &obj); err != nil {
		return nil, &ErrCorruptEncoding{Reason: err.Error()}
	}
	if !models.KnownType(obj.Type) {
		return nil, &ErrSchemaMismatch{Tag: string(obj.Type)}
	}
	return &obj, nil
}
