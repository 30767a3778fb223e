package models

// TypeTag identifies the kind of directory object stored at a path.
type TypeTag string

const (
	TypeRoot       TypeTag = "root"
	TypeDomain     TypeTag = "domain"
	TypeOU         TypeTag = "ou"
	TypeUser       TypeTag = "user"
	TypeGroup      TypeTag = "group"
	TypeHost       TypeTag = "host"
	TypeService    TypeTag = "service"
	TypeCredential TypeTag = "credential"
)

// KnownType reports whether the tag is part of the running schema.
// Decoding an object with an unknown tag is a schema mismatch, not a
// corruption: the bytes are well formed but written by a newer version.
func KnownType(t TypeTag) bool {
	switch t {
	case TypeRoot, TypeDomain, TypeOU, TypeUser, TypeGroup,
		TypeHost, TypeService, TypeCredential:
		return true
	}
	return false
}

// ValueKind discriminates the Value union.
type ValueKind uint8

const (
	KindString ValueKind = 1
	KindInt    ValueKind = 2
	KindBool   ValueKind = 3
	KindBytes  ValueKind = 4
)

// Value is one typed attribute value. Exactly one payload field is
// meaningful, selected by Kind; the others stay at their zero value so
// the canonical encoding is identical however the Value was built. All
// payload fields are always encoded — an empty string or empty byte
// slice is a real value, distinct from absent, and must survive a
// round trip unchanged.
type Value struct {
	Kind  ValueKind `cbor:"k"`
	Str   string    `cbor:"s"`
	Int   int64     `cbor:"i"`
	Bool  bool      `cbor:"b"`
	Bytes []byte    `cbor:"y"`
}

func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Int(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func Bool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func Bytes(b []byte) Value  { return Value{Kind: KindBytes, Bytes: b} }

// Object is an immutable, typed directory value. Identity is the content
// hash of its canonical encoding; a "change" is always a new Object with
// a new hash, never an in-place mutation.
type Object struct {
	Type      TypeTag          `cbor:"type"`
	Fields    map[string]Value `cbor:"fields"`
	CreatedAt int64            `cbor:"created_at"`
}

// Field returns the named attribute and whether it is present.
func (o *Object) Field(name string) (Value, bool) {
	v, ok := o.Fields[name]
	return v, ok
}
