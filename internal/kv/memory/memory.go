// Package memory implements an in-process kv.Driver backed by a sorted
// slice, registered under the name "memory". It is the reference backend
// used by unit tests across C3-C9 and by ephemeral/scratch namespaces that
// never need durability.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/surrealcore/coredb/internal/kv"
)

func init() {
	kv.Register("memory", func(ctx context.Context, dsn string, opts kv.Options) (kv.Driver, error) {
		return New(), nil
	})
}

// store holds the key-value map shared by every transaction opened
// against one Driver instance. Ordering for Scan is produced on demand by
// sorting the matched keys rather than maintaining a standing order, which
// keeps Commit O(writes) instead of O(log n) per key.
type store struct {
	mu   sync.RWMutex
	vals map[string][]byte
	// tomb marks a key as explicitly cleared (vs. never set), so Clr is
	// distinguishable from Del for callers that care (C6 purge stage).
	tomb map[string]bool
}

func newStore() *store {
	return &store{vals: make(map[string][]byte), tomb: make(map[string]bool)}
}

// Driver is the in-memory kv.Driver implementation.
type Driver struct {
	store *store
}

// New returns a fresh, empty memory driver.
func New() *Driver {
	return &Driver{store: newStore()}
}

func (d *Driver) Begin(ctx context.Context, opts kv.TxOptions) (kv.Tx, error) {
	return &tx{drv: d, opts: opts, writes: make(map[string][]byte), deletes: make(map[string]bool), clears: make(map[string]bool)}, nil
}

func (d *Driver) Close(ctx context.Context) error { return nil }

// tx buffers writes locally and applies them atomically to the shared
// store on Commit, while holding store.mu. Reads are not isolated: Get and
// Scan see the shared store as it is at each call, overlaid with this
// transaction's own buffered writes, so commits made by other
// transactions after Begin are visible. Commit performs no conflict
// check and TxOptions.Lock is ignored; when two transactions write the
// same key, the later commit's value wins.
type tx struct {
	drv  *Driver
	opts kv.TxOptions

	done    bool
	writes  map[string][]byte
	deletes map[string]bool
	clears  map[string]bool
}

func (t *tx) checkDone() error {
	if t.done {
		return kv.ErrTxDone
	}
	return nil
}

func (t *tx) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := t.checkDone(); err != nil {
		return nil, err
	}
	k := string(key)
	if t.deletes[k] || t.clears[k] {
		return nil, kv.ErrNotFound
	}
	if v, ok := t.writes[k]; ok {
		return append([]byte(nil), v...), nil
	}
	t.drv.store.mu.RLock()
	defer t.drv.store.mu.RUnlock()
	v, ok := t.drv.store.vals[k]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (t *tx) Exists(ctx context.Context, key []byte) (bool, error) {
	_, err := t.Get(ctx, key)
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *tx) Set(ctx context.Context, key, val []byte) error {
	if err := t.checkDone(); err != nil {
		return err
	}
	if t.opts.ReadOnly {
		return kv.ErrReadOnly
	}
	k := string(key)
	t.writes[k] = append([]byte(nil), val...)
	delete(t.deletes, k)
	delete(t.clears, k)
	return nil
}

func (t *tx) Put(ctx context.Context, key, val, expect []byte) error {
	if err := t.checkDone(); err != nil {
		return err
	}
	if t.opts.ReadOnly {
		return kv.ErrReadOnly
	}
	cur, err := t.Get(ctx, key)
	if err != nil && err != kv.ErrNotFound {
		return err
	}
	if expect == nil {
		if err == nil {
			return fmt.Errorf("put %x: %w", key, kv.ErrKeyExists)
		}
	} else {
		if err == kv.ErrNotFound || !bytes.Equal(cur, expect) {
			return fmt.Errorf("put %x: %w", key, kv.ErrConflict)
		}
	}
	return t.Set(ctx, key, val)
}

func (t *tx) Del(ctx context.Context, key []byte) error {
	if err := t.checkDone(); err != nil {
		return err
	}
	if t.opts.ReadOnly {
		return kv.ErrReadOnly
	}
	k := string(key)
	t.deletes[k] = true
	delete(t.writes, k)
	delete(t.clears, k)
	return nil
}

func (t *tx) Clr(ctx context.Context, key []byte) error {
	if err := t.checkDone(); err != nil {
		return err
	}
	if t.opts.ReadOnly {
		return kv.ErrReadOnly
	}
	k := string(key)
	t.clears[k] = true
	delete(t.writes, k)
	delete(t.deletes, k)
	return nil
}

func successor(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded end
}

func (t *tx) Scan(ctx context.Context, begin, end []byte, limit int, reverse bool) ([]kv.KeyValue, error) {
	if err := t.checkDone(); err != nil {
		return nil, err
	}
	t.drv.store.mu.RLock()
	merged := map[string][]byte{}
	for k, v := range t.drv.store.vals {
		merged[k] = v
	}
	t.drv.store.mu.RUnlock()
	for k, v := range t.writes {
		merged[k] = v
	}
	for k := range t.deletes {
		delete(merged, k)
	}
	for k := range t.clears {
		delete(merged, k)
	}

	var out []kv.KeyValue
	for k, v := range merged {
		kb := []byte(k)
		if begin != nil && bytes.Compare(kb, begin) < 0 {
			continue
		}
		if end != nil && bytes.Compare(kb, end) >= 0 {
			continue
		}
		out = append(out, kv.KeyValue{Key: kb, Value: append([]byte(nil), v...)})
	}
	sort.Slice(out, func(i, j int) bool {
		c := bytes.Compare(out[i].Key, out[j].Key)
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) ScanPrefix(ctx context.Context, prefix []byte, limit int, reverse bool) ([]kv.KeyValue, error) {
	return t.Scan(ctx, prefix, successor(prefix), limit, reverse)
}

func (t *tx) DelPrefix(ctx context.Context, prefix []byte) error {
	entries, err := t.ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := t.Del(ctx, e.Key); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) ClrPrefix(ctx context.Context, prefix []byte) error {
	entries, err := t.ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := t.Clr(ctx, e.Key); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.checkDone(); err != nil {
		return err
	}
	t.drv.store.mu.Lock()
	defer t.drv.store.mu.Unlock()
	for k := range t.deletes {
		delete(t.drv.store.vals, k)
		delete(t.drv.store.tomb, k)
	}
	for k := range t.clears {
		delete(t.drv.store.vals, k)
		t.drv.store.tomb[k] = true
	}
	for k, v := range t.writes {
		t.drv.store.vals[k] = v
		delete(t.drv.store.tomb, k)
	}
	t.done = true
	return nil
}

func (t *tx) Cancel(ctx context.Context) error {
	t.done = true
	return nil
}
