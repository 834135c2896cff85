// Package kv defines the pluggable ordered key-value backend abstraction
// (C2) that the transaction layer (C3) is built on top of. A Driver opens
// Tx handles that support get/set/put/del, ordered range scans, and
// optimistic or pessimistic locking with snapshot isolation.
package kv

import (
	"context"
	"errors"
)

// Sentinel errors returned by Driver implementations. Get returns
// ErrNotFound unwrapped, so callers compare it with ==; the other
// sentinels may come wrapped with op context via fmt.Errorf's %w and are
// matched with errors.Is.
var (
	ErrNotFound        = errors.New("kv: key not found")
	ErrKeyExists       = errors.New("kv: key already exists")
	ErrConflict        = errors.New("kv: transaction conflict")
	ErrTxDone          = errors.New("kv: transaction already committed or cancelled")
	ErrReadOnly        = errors.New("kv: transaction is read-only")
	ErrUnsupportedScan = errors.New("kv: backend does not support reverse scan")
)

// LockMode selects how a transaction detects write-write conflicts.
type LockMode int

const (
	// Optimistic transactions buffer writes and validate the read set
	// at commit time, retrying the caller on ErrConflict.
	Optimistic LockMode = iota
	// Pessimistic transactions acquire a per-key lock on first access
	// and hold it until commit/cancel, never failing with ErrConflict
	// but able to block or deadlock-detect.
	Pessimistic
)

// TxOptions configures a new transaction.
type TxOptions struct {
	ReadOnly bool
	Lock     LockMode
}

// KeyValue is one entry yielded by a range scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Tx is one ordered key-value transaction. All methods except Commit and
// Cancel may be called any number of times before the transaction ends;
// calling any method after Commit or Cancel returns ErrTxDone.
type Tx interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Exists reports whether key is present without fetching its value.
	Exists(ctx context.Context, key []byte) (bool, error)

	// Set unconditionally writes key=val, creating or overwriting.
	Set(ctx context.Context, key, val []byte) error

	// Put writes key=val only if the key's current value matches
	// expect (nil expect means "key must not exist"), returning
	// ErrConflict on mismatch. This backs optimistic compare-and-swap
	// writes used by the sequence allocator and savepoint commit path.
	Put(ctx context.Context, key, val, expect []byte) error

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key []byte) error

	// Clr removes key like Del; C6's purge stage uses it for
	// EXPUNGE-mode tables. Get and Scan report a cleared key exactly as
	// one that never existed.
	Clr(ctx context.Context, key []byte) error

	// Scan returns entries with key in [begin, end) in ascending order,
	// or descending if reverse is true. limit <= 0 means unbounded.
	Scan(ctx context.Context, begin, end []byte, limit int, reverse bool) ([]KeyValue, error)

	// ScanPrefix is a convenience wrapper computing the exclusive end
	// bound from a prefix (the lexicographic successor of prefix).
	ScanPrefix(ctx context.Context, prefix []byte, limit int, reverse bool) ([]KeyValue, error)

	// DelPrefix / ClrPrefix remove (or tombstone) every key sharing the
	// given prefix, used for dropping a table's record range in bulk.
	DelPrefix(ctx context.Context, prefix []byte) error
	ClrPrefix(ctx context.Context, prefix []byte) error

	// Commit finalizes the transaction. Optimistic transactions may
	// return ErrConflict, in which case the caller should retry with a
	// fresh transaction.
	Commit(ctx context.Context) error

	// Cancel discards all writes made through this Tx.
	Cancel(ctx context.Context) error
}

// Driver opens transactions against one backend instance. Concrete
// drivers (memory, sqlstore) register a constructing Factory under a
// name via Register.
type Driver interface {
	// Begin starts a new transaction with the given options.
	Begin(ctx context.Context, opts TxOptions) (Tx, error)

	// Close releases any resources (connection pools, file handles)
	// held by the driver.
	Close(ctx context.Context) error
}
