package models

// OpKind names one namespace mutation inside a committed transaction.
type OpKind string

const (
	OpCreate  OpKind = "create"
	OpModify  OpKind = "modify"
	OpDelete  OpKind = "delete"
	OpMoveSrc OpKind = "move-src"
	OpMoveDst OpKind = "move-dst"
)

// Operation records one path transition. OldHash is zero for a path that
// had no live object before the transaction, NewHash is zero for a path
// that has none after it (delete, move source).
type Operation struct {
	Path    string `cbor:"path"`
	OldHash Hash   `cbor:"old_hash"`
	NewHash Hash   `cbor:"new_hash"`
	Kind    OpKind `cbor:"kind"`
}

// LogEntry is one committed transaction in the audit chain. EntryHash is
// computed over the entry's canonical encoding with EntryHash itself
// zeroed; entry n's EntryHash must appear as entry n+1's PrevHash.
type LogEntry struct {
	Sequence   uint64      `cbor:"sequence"`
	PrevHash   Hash        `cbor:"prev_hash"`
	Operations []Operation `cbor:"operations"`
	Timestamp  int64       `cbor:"timestamp"`
	EntryHash  Hash        `cbor:"entry_hash"`
}

// LogTail is the meta record tracking the chain head. It is read and
// rewritten inside every appending transaction, which is what makes
// concurrent appends conflict and keeps sequences gap-free.
type LogTail struct {
	Sequence  uint64 `cbor:"sequence"`
	EntryHash Hash   `cbor:"entry_hash"`
}

// StoreInfo identifies a physical store instance. Written once when the
// store is first initialized.
type StoreInfo struct {
	ID        string `cbor:"id"`
	CreatedAt int64  `cbor:"created_at"`
}
