package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/value"
)

// MutationKind names the kind of change one TableMutation recorded.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// TableMutation is one record-level change folded into a change-feed
// entry; a single commit may batch several into one Entry.
type TableMutation struct {
	Kind     MutationKind `json:"kind"`
	RecordID string       `json:"record_id"`
	Before   string       `json:"before,omitempty"`
	After    string       `json:"after,omitempty"`
}

// Entry is the decoded form of one !cf<versionstamp> change-feed record.
type Entry struct {
	Versionstamp value.Versionstamp
	Mutations    []TableMutation
}

type entryWire struct {
	Mutations []TableMutation `json:"mutations"`
}

// WriteEntry appends one versionstamped change-feed record for a table,
// called after the document processor pipeline's "changefeeds" stage
// accumulates the commit's mutations.
func WriteEntry(ctx context.Context, tx kv.Tx, ns, db, tb string, vs value.Versionstamp, mutations []TableMutation) error {
	raw, err := json.Marshal(entryWire{Mutations: mutations})
	if err != nil {
		return fmt.Errorf("changefeed: encode entry: %w", err)
	}
	return tx.Set(ctx, keycodec.ChangeFeedEntry(ns, db, tb, [10]byte(vs)).Bytes(), raw)
}

// ReadSince range-scans the change feed for a table from a watermark
// versionstamp (inclusive) up to limit entries, backing SHOW CHANGES FOR
// TABLE t SINCE ts LIMIT n.
func ReadSince(ctx context.Context, tx kv.Tx, ns, db, tb string, since value.Versionstamp, limit int) ([]Entry, error) {
	begin := keycodec.ChangeFeedEntry(ns, db, tb, [10]byte(since)).Bytes()
	end := keycodec.ChangeFeedPrefix(ns, db, tb).Bytes()
	end = successorPrefix(end)

	kvs, err := tx.Scan(ctx, begin, end, limit, false)
	if err != nil {
		return nil, fmt.Errorf("changefeed: scan: %w", err)
	}
	out := make([]Entry, 0, len(kvs))
	for _, kv := range kvs {
		var w entryWire
		if err := json.Unmarshal(kv.Value, &w); err != nil {
			return nil, fmt.Errorf("changefeed: decode entry: %w", err)
		}
		vs, ok := versionstampFromKey(kv.Key)
		if !ok {
			continue
		}
		out = append(out, Entry{Versionstamp: vs, Mutations: w.Mutations})
	}
	return out, nil
}

// versionstampFromKey recovers the trailing 10-byte versionstamp written
// by keycodec.ChangeFeedEntry, which appends it as raw bytes with no
// further framing after.
func versionstampFromKey(key []byte) (value.Versionstamp, bool) {
	if len(key) < 10 {
		return value.Versionstamp{}, false
	}
	var vs value.Versionstamp
	copy(vs[:], key[len(key)-10:])
	return vs, true
}

// PruneBefore deletes every change-feed entry for a table strictly older
// than the given watermark, the operation changefeed_gc_interval drives
// periodically so a long-lived database doesn't retain mutation history
// indefinitely.
func PruneBefore(ctx context.Context, tx kv.Tx, ns, db, tb string, before value.Versionstamp) (int, error) {
	begin := keycodec.ChangeFeedPrefix(ns, db, tb).Bytes()
	end := keycodec.ChangeFeedEntry(ns, db, tb, [10]byte(before)).Bytes()

	kvs, err := tx.Scan(ctx, begin, end, 0, false)
	if err != nil {
		return 0, fmt.Errorf("changefeed: scan for prune: %w", err)
	}
	for _, kv := range kvs {
		if err := tx.Del(ctx, kv.Key); err != nil {
			return 0, fmt.Errorf("changefeed: prune: %w", err)
		}
	}
	return len(kvs), nil
}

func successorPrefix(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
