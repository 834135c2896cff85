// Package index implements the secondary index engines (C7): standard
// and unique composite indices here, with BM25 full-text search,
// M-Tree, and HNSW nearest-neighbor indices in the fts/mtree/hnsw
// subpackages.
package index

import (
	"context"
	"fmt"

	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/value"
)

// Entry is one row of a standard/unique index: the indexed field values
// in declaration order, plus the record id that produced them.
type Entry struct {
	Values []value.Value
	Record value.RecordID
}

func encodeValues(vals []value.Value) []byte {
	var out []byte
	for _, v := range vals {
		j, _ := value.ToJSON(v)
		out = append(out, []byte(j)...)
		out = append(out, 0)
	}
	return out
}

// Maintain writes or removes the index entries for one document's
// before/after projection onto fields, called by the document processor
// pipeline's "index" stage for every CREATE/UPDATE/UPSERT/DELETE.
func Maintain(ctx context.Context, tx kv.Tx, ns, db, tb, ixName string, fields []string, unique bool, before, after value.Value, rec value.RecordID) error {
	beforeVals := project(before, fields)
	afterVals := project(after, fields)

	if beforeVals != nil && !equalProjections(beforeVals, afterVals) {
		key := keycodec.IndexEntry(ns, db, tb, ixName, encodeValues(beforeVals), []byte(rec.Key.String())).Bytes()
		if err := tx.Del(ctx, key); err != nil {
			return fmt.Errorf("index: remove stale entry: %w", err)
		}
	}
	if afterVals == nil {
		return nil
	}
	key := keycodec.IndexEntry(ns, db, tb, ixName, encodeValues(afterVals), []byte(rec.Key.String())).Bytes()
	if unique {
		existing, err := tx.ScanPrefix(ctx, keycodec.IndexEntryValuePrefix(ns, db, tb, ixName, encodeValues(afterVals)).Bytes(), 1, false)
		if err != nil {
			return fmt.Errorf("index: unique check: %w", err)
		}
		for _, e := range existing {
			if string(e.Key) != string(key) {
				return fmt.Errorf("index: unique constraint %q violated by %s", ixName, rec)
			}
		}
	}
	recJSON, _ := value.ToJSON(value.Record(rec))
	if err := tx.Set(ctx, key, []byte(recJSON)); err != nil {
		return fmt.Errorf("index: write entry: %w", err)
	}
	return nil
}

func project(doc value.Value, fields []string) []value.Value {
	if doc.IsNone() {
		return nil
	}
	out := make([]value.Value, len(fields))
	for i, f := range fields {
		out[i] = doc.Get(f)
	}
	return out
}

func equalProjections(a, b []value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !value.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Lookup scans the index for entries whose projected values equal
// exactly the given values, returning matching record ids in index
// order (ascending by the encoded projection, then by record id).
func Lookup(ctx context.Context, tx kv.Tx, ns, db, tb, ixName string, vals []value.Value) ([]value.RecordID, error) {
	prefix := keycodec.IndexEntryValuePrefix(ns, db, tb, ixName, encodeValues(vals)).Bytes()
	entries, err := tx.ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return nil, fmt.Errorf("index: lookup: %w", err)
	}
	out := make([]value.RecordID, 0, len(entries))
	for _, e := range entries {
		rv := value.FromJSON(string(e.Value))
		out = append(out, rv.AsRecordID())
	}
	return out, nil
}
