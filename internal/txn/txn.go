// Package txn implements the transaction layer (C3) that sits above the
// raw ordered key-value backend (C2): definition caching, batched
// sequence allocation, a savepoint stack for nested rollback, a
// pre-commit event buffer, and an async event queue with
// retry/dead-letter semantics.
package txn

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/surrealcore/coredb/internal/kv"
)

// Transaction wraps a kv.Tx with the additional bookkeeping C3 requires.
// Every field of Transaction belongs to one logical transaction; the
// definition cache lives on the *Store instead, so entries stored in it
// outlive a single transaction (each entry is checked against its
// catalog cache version, see internal/catalog).
type Transaction struct {
	store *Store
	tx    kv.Tx
	opts  kv.TxOptions

	mu         sync.Mutex
	savepoints []*savepoint
	events     []PendingEvent
	closed     bool
}

// savepoint captures enough of a nested scope to roll it back without
// discarding the whole transaction: the set of keys written since the
// savepoint was pushed, each with its value before this scope (nil means
// "did not exist"), and the last operation recorded for it.
type savepoint struct {
	saved map[string]SavedValue
}

// SavedValue records a key's value at the moment a
// savepoint was taken, along with what the last operation on that key
// was, so rollback can tell "restore this value" apart from "this key
// did not exist yet".
type SavedValue struct {
	Value   []byte
	Existed bool
	LastOp  string // "set", "del", "clr", ""
}

// PendingEvent is a catalog EVENT firing buffered during document
// processing (C6 stage 15) and flushed only once the owning transaction
// commits, so an event handler never observes a mutation that was rolled
// back.
type PendingEvent struct {
	Name    string
	Payload map[string]interface{}
}

// Store is the shared per-backend state a Transaction is opened against:
// the underlying kv.Driver plus the definition cache and sequence
// allocator state that must survive across transactions.
type Store struct {
	Driver kv.Driver

	defCache *definitionCache
	seqMu    sync.Mutex
	seqs     map[string]*SequenceState
	queue    *EventQueue
}

// NewStore wraps a kv.Driver with C3's transaction-layer state.
func NewStore(driver kv.Driver) *Store {
	return &Store{
		Driver:   driver,
		defCache: newDefinitionCache(),
		seqs:     make(map[string]*SequenceState),
		queue:    NewEventQueue(),
	}
}

// Begin opens a new Transaction against the store.
func (s *Store) Begin(ctx context.Context, opts kv.TxOptions) (*Transaction, error) {
	tx, err := s.Driver.Begin(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("txn: begin: %w", err)
	}
	return &Transaction{store: s, tx: tx, opts: opts}, nil
}

// Raw exposes the underlying kv.Tx for direct key access by layers (C4-C9)
// that already speak in encoded keys.
func (t *Transaction) Raw() kv.Tx { return t.tx }

// DefinitionCache returns the store-wide catalog definition cache.
func (t *Transaction) DefinitionCache() *definitionCache { return t.store.defCache }

// PushSavepoint starts a new nested rollback scope.
func (t *Transaction) PushSavepoint() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.savepoints = append(t.savepoints, &savepoint{saved: make(map[string]SavedValue)})
}

// noteWrite records the pre-write state of key for every open savepoint,
// the first time each savepoint observes that key. Call this before
// applying a mutation through Raw().
func (t *Transaction) noteWrite(ctx context.Context, key []byte, op string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := string(key)
	for _, sp := range t.savepoints {
		if _, ok := sp.saved[k]; ok {
			continue
		}
		cur, err := t.tx.Get(ctx, key)
		sp.saved[k] = SavedValue{Value: cur, Existed: err == nil, LastOp: op}
	}
}

// ReleaseSavepoint commits the most recently pushed savepoint into its
// parent scope (or into the transaction itself if it was the outermost).
func (t *Transaction) ReleaseSavepoint() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.savepoints)
	if n == 0 {
		return fmt.Errorf("txn: release savepoint: no savepoint open")
	}
	released := t.savepoints[n-1]
	t.savepoints = t.savepoints[:n-1]
	if n-1 > 0 {
		parent := t.savepoints[n-2]
		for k, v := range released.saved {
			if _, ok := parent.saved[k]; !ok {
				parent.saved[k] = v
			}
		}
	}
	return nil
}

// RollbackSavepoint undoes every write recorded since the most recently
// pushed savepoint, restoring prior values or deleting keys that did not
// exist before the scope began.
func (t *Transaction) RollbackSavepoint(ctx context.Context) error {
	t.mu.Lock()
	n := len(t.savepoints)
	if n == 0 {
		t.mu.Unlock()
		return fmt.Errorf("txn: rollback savepoint: no savepoint open")
	}
	sp := t.savepoints[n-1]
	t.savepoints = t.savepoints[:n-1]
	t.mu.Unlock()

	for k, sv := range sp.saved {
		key := []byte(k)
		if sv.Existed {
			if err := t.tx.Set(ctx, key, sv.Value); err != nil {
				return fmt.Errorf("txn: rollback savepoint restore %x: %w", key, err)
			}
		} else {
			if err := t.tx.Del(ctx, key); err != nil {
				return fmt.Errorf("txn: rollback savepoint delete %x: %w", key, err)
			}
		}
	}
	return nil
}

// Set performs a tracked write: every open savepoint records the prior
// value before the write lands.
func (t *Transaction) Set(ctx context.Context, key, val []byte) error {
	t.noteWrite(ctx, key, "set")
	return t.tx.Set(ctx, key, val)
}

// Del performs a tracked delete.
func (t *Transaction) Del(ctx context.Context, key []byte) error {
	t.noteWrite(ctx, key, "del")
	return t.tx.Del(ctx, key)
}

// Clr performs a tracked clear (see kv.Tx.Clr).
func (t *Transaction) Clr(ctx context.Context, key []byte) error {
	t.noteWrite(ctx, key, "clr")
	return t.tx.Clr(ctx, key)
}

// BufferEvent queues a catalog EVENT to fire once the transaction
// commits (C6 stage 15), rather than firing it immediately — an event
// whose triggering write is rolled back must never be observed.
func (t *Transaction) BufferEvent(e PendingEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

// Commit finalizes the underlying kv.Tx and, only on success, hands the
// buffered events to the store's async EventQueue for delivery.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return kv.ErrTxDone
	}
	t.closed = true
	events := t.events
	t.mu.Unlock()

	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("txn: commit: %w", err)
	}
	for _, e := range events {
		t.store.queue.Enqueue(e)
	}
	log.Printf("txn: committed with %d buffered event(s)", len(events))
	return nil
}

// Cancel discards the underlying kv.Tx and drops any buffered events.
func (t *Transaction) Cancel(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	if err := t.tx.Cancel(ctx); err != nil {
		return fmt.Errorf("txn: cancel: %w", err)
	}
	return nil
}
