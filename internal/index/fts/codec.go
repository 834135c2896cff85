package fts

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/surrealcore/coredb/internal/kv"
)

// docEntry is the !bd value: the owning record plus the term ids it
// contributed to, so a later update or delete can retract exactly the
// postings this document wrote without a corpus-wide scan.
type docEntry struct {
	RecordJSON string   `json:"record"`
	TermIDs    []uint64 `json:"term_ids"`
	Length     int      `json:"length"`
}

// termEntry is the !bt value: the allocated term id and the term's
// document frequency, used for the BM25 idf component.
type termEntry struct {
	TermID  uint64 `json:"term_id"`
	DocFreq int    `json:"doc_freq"`
}

// stats is the !bs value: corpus-wide aggregates for BM25 normalization.
type stats struct {
	DocCount    int `json:"doc_count"`
	TotalLength int `json:"total_length"`
}

func encodeDocEntry(e docEntry) []byte {
	b, _ := json.Marshal(e)
	return b
}

func decodeDocEntry(raw []byte) (docEntry, error) {
	var e docEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return docEntry{}, fmt.Errorf("fts: decode doc entry: %w", err)
	}
	return e, nil
}

func encodeTermEntry(e termEntry) []byte {
	b, _ := json.Marshal(e)
	return b
}

func decodeTermEntry(raw []byte) (termEntry, error) {
	var e termEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return termEntry{}, fmt.Errorf("fts: decode term entry: %w", err)
	}
	return e, nil
}

func encodeStats(s stats) []byte {
	b, _ := json.Marshal(s)
	return b
}

func decodeStats(raw []byte) (stats, error) {
	var s stats
	if err := json.Unmarshal(raw, &s); err != nil {
		return stats{}, fmt.Errorf("fts: decode stats: %w", err)
	}
	return s, nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(raw []byte) uint64 {
	return binary.BigEndian.Uint64(raw)
}

// nextCounter allocates the next id from a monotonic counter key using a
// compare-and-swap Put, mirroring C3's sequence-head allocator (internal/
// txn/sequence.go) but scoped to a single call rather than batched, since
// FTS index maintenance runs far less often than record writes.
func nextCounter(ctx context.Context, tx kv.Tx, key []byte) (uint64, error) {
	cur, err := tx.Get(ctx, key)
	var curVal uint64
	if err == kv.ErrNotFound {
		cur = nil
	} else if err != nil {
		return 0, err
	} else {
		curVal = decodeUint64(cur)
	}
	next := curVal + 1
	if err := tx.Put(ctx, key, encodeUint64(next), cur); err != nil {
		return 0, fmt.Errorf("fts: allocate id: %w", err)
	}
	return next, nil
}
