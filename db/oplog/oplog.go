// Package oplog is the hash-chained transaction log: an append-only
// sequence of entries, one per committed namespace transaction, where
// every entry embeds the hash of its predecessor. The chain is stored as
// sequence-keyed records, never as in-memory links, so verification is a
// pure fold over what is actually on disk — independent of the key-value
// engine's own write-ahead log.
package oplog

import (
	"fmt"
	"log/slog"

	"github.com/copsehq/copse/db/codec"
	"github.com/copsehq/copse/db/models"
	"github.com/copsehq/copse/db/tkv"
)

const (
	// KeyPrefix is the log namespace. Entries are keyed by their
	// zero-padded decimal sequence so store iteration order is sequence
	// order.
	KeyPrefix = "log/"

	// TailKey tracks the chain head. Every append reads and rewrites it,
	// which makes concurrent appends contend the same way sibling path
	// writes do — that contention is what keeps sequences gap-free.
	TailKey = "meta/log_tail"
)

type Log struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Log {
	return &Log{logger: logger.WithGroup("oplog")}
}

func entryKey(sequence uint64) string {
	return fmt.Sprintf("%s%020d", KeyPrefix, sequence)
}

// entryHash computes the hash of an entry's canonical encoding with the
// EntryHash field zeroed. PrevHash is part of the encoding, so the hash
// commits to the entire chain behind it.
func entryHash(entry *models.LogEntry) (models.Hash, error) {
	scratch := *entry
	scratch.EntryHash = models.ZeroHash
	data, err := codec.Marshal(&scratch)
	if err != nil {
		return models.ZeroHash, &codec.ErrCorruptEncoding{Reason: err.Error()}
	}
	return codec.HashEntry(data), nil
}

// Append chains a new entry onto the log inside the caller's transaction.
// The sequence is the stored tail's successor; the first entry has
// sequence 1 and the zero hash as PrevHash.
func (l *Log) Append(txn tkv.Txn, operations []models.Operation, now int64) (*models.LogEntry, error) {
	tail, err := l.readTail(txn)
	if err != nil {
		return nil, err
	}

	entry := &models.LogEntry{
		Sequence:   tail.Sequence + 1,
		PrevHash:   tail.EntryHash,
		Operations: operations,
		Timestamp:  now,
	}
	entry.EntryHash, err = entryHash(entry)
	if err != nil {
		return nil, err
	}

	data, err := codec.Marshal(entry)
	if err != nil {
		return nil, &codec.ErrCorruptEncoding{Reason: err.Error()}
	}
	if err := txn.Set(entryKey(entry.Sequence), data); err != nil {
		return nil, err
	}
	if err := l.writeTail(txn, &models.LogTail{Sequence: entry.Sequence, EntryHash: entry.EntryHash}); err != nil {
		return nil, err
	}
	return entry, nil
}

// Tail returns the latest sequence number; 0 when the log is empty.
func (l *Log) Tail(txn tkv.Txn) (uint64, error) {
	tail, err := l.readTail(txn)
	if err != nil {
		return 0, err
	}
	return tail.Sequence, nil
}

// Entry reads one stored entry.
func (l *Log) Entry(txn tkv.Txn, sequence uint64) (*models.LogEntry, error) {
	data, err := txn.Get(entryKey(sequence))
	if err != nil {
		if tkv.IsErrKeyNotFound(err) {
			return nil, &ErrEntryNotFound{Sequence: sequence}
		}
		return nil, err
	}
	var entry models.LogEntry
	if err := codec.Unmarshal(data, &entry); err != nil {
		return nil, &codec.ErrCorruptEncoding{Reason: fmt.Sprintf("log entry %d: %v", sequence, err)}
	}
	return &entry, nil
}

// Audit returns entries from..to inclusive, in sequence order. A zero
// `from` starts at the beginning; a zero `to` runs to the tail. A window
// holding no entries yields nil.
func (l *Log) Audit(txn tkv.Txn, from, to uint64) ([]models.LogEntry, error) {
	from, to, ok, err := l.clampRange(txn, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	entries := make([]models.LogEntry, 0, to-from+1)
	for seq := from; seq <= to; seq++ {
		entry, err := l.Entry(txn, seq)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// VerifyChain recomputes every entry hash in from..to and confirms the
// linkage. The first mismatch fails with ErrChainBroken carrying the
// offending sequence. Integrity failures are operator problems, never
// retried.
func (l *Log) VerifyChain(txn tkv.Txn, from, to uint64) error {
	from, to, ok, err := l.clampRange(txn, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var prev models.Hash
	if from > 1 {
		before, err := l.Entry(txn, from-1)
		if err != nil {
			return err
		}
		prev = before.EntryHash
	}

	for seq := from; seq <= to; seq++ {
		entry, err := l.Entry(txn, seq)
		if err != nil {
			return err
		}
		if entry.Sequence != seq {
			return &ErrChainBroken{Sequence: seq, Reason: "stored sequence does not match key"}
		}
		if entry.PrevHash != prev {
			return &ErrChainBroken{Sequence: seq, Reason: "prev hash does not match predecessor"}
		}
		computed, err := entryHash(entry)
		if err != nil {
			return err
		}
		if computed != entry.EntryHash {
			return &ErrChainBroken{Sequence: seq, Reason: "entry hash does not match contents"}
		}
		prev = entry.EntryHash
	}
	return nil
}

// clampRange widens zero bounds to the stored range. ok is false when
// the resulting window holds no entries: an empty log, a from past the
// tail, or an inverted range.
func (l *Log) clampRange(txn tkv.Txn, from, to uint64) (uint64, uint64, bool, error) {
	tail, err := l.readTail(txn)
	if err != nil {
		return 0, 0, false, err
	}
	if from == 0 {
		from = 1
	}
	if to == 0 || to > tail.Sequence {
		to = tail.Sequence
	}
	if tail.Sequence == 0 || from > to {
		return 0, 0, false, nil
	}
	return from, to, true, nil
}

func (l *Log) readTail(txn tkv.Txn) (*models.LogTail, error) {
	data, err := txn.Get(TailKey)
	if err != nil {
		if tkv.IsErrKeyNotFound(err) {
			return &models.LogTail{}, nil
		}
		return nil, err
	}
	var tail models.LogTail
	if err := codec.Unmarshal(data, &tail); err != nil {
		return nil, &codec.ErrCorruptEncoding{Reason: fmt.Sprintf("log tail: %v", err)}
	}
	return &tail, nil
}

func (l *Log) writeTail(txn tkv.Txn, tail *models.LogTail) error {
	data, err := codec.Marshal(tail)
	if err != nil {
		return &codec.ErrCorruptEncoding{Reason: err.Error()}
	}
	return txn.Set(TailKey, data)
}
