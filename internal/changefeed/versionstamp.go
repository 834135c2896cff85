// Package changefeed implements the change feed and live query layer
// (C8): a versionstamped per-table mutation log (spec.md 4.8) consumed by
// SHOW CHANGES, and live-query registration/matching/notification
// dispatch, including the archive-on-node-death semantics decided in
// SPEC_FULL.md's C8 resolution of the reconnection Open Question.
package changefeed

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/value"
)

// NextVersionstamp allocates the next database-wide monotonic
// versionstamp via a compare-and-swap counter, mirroring C3's sequence
// allocator (internal/txn/sequence.go) but allocating exactly one
// versionstamp per call rather than a batch; the document pipeline calls
// it once per record mutation.
func NextVersionstamp(ctx context.Context, tx kv.Tx, ns, db string) (value.Versionstamp, error) {
	key := keycodec.ChangeFeedVersionstampCounter(ns, db).Bytes()
	raw, err := tx.Get(ctx, key)
	var cur uint64
	if err == kv.ErrNotFound {
		raw = nil
	} else if err != nil {
		return value.Versionstamp{}, err
	} else {
		cur = binary.BigEndian.Uint64(raw)
	}
	next := cur + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := tx.Put(ctx, key, buf, raw); err != nil {
		return value.Versionstamp{}, fmt.Errorf("changefeed: allocate versionstamp: %w", err)
	}
	var vs value.Versionstamp
	copy(vs[:8], buf)
	return vs, nil
}
