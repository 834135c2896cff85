// Package fts implements the BM25 full-text search index (C7): four
// B-Tree-shaped KV spaces (doc registry, doc-length, term dictionary,
// postings) plus one corpus-statistics key, maintained transactionally
// through C3 (no term-offsets space is kept), as described
// by spec.md 4.7 and grounded on the google/btree-ordered in-memory
// scoring pass used by Search.
package fts

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/btree"

	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/value"
)

// Params holds the BM25 tuning constants named in DEFINE INDEX ... BM25(k1,b).
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams matches the (1.2, 0.75) constants used throughout spec.md's
// worked examples.
func DefaultParams() Params { return Params{K1: 1.2, B: 0.75} }

func projectText(doc value.Value, fields []string) string {
	var parts []string
	for _, f := range fields {
		v := doc.Get(f)
		if v.IsNullish() {
			continue
		}
		parts = append(parts, v.AsString())
	}
	return strings.Join(parts, " ")
}

// Maintain indexes, re-indexes, or retracts one document's contribution to
// a full-text index, called by the document processor pipeline's "index"
// stage whenever the index's SEARCH fields change between before and
// after.
func Maintain(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, fields []string, before, after value.Value, rec value.RecordID) error {
	if !before.IsNone() {
		if err := retract(ctx, tx, ns, db, tb, ix, rec); err != nil {
			return fmt.Errorf("fts: retract: %w", err)
		}
	}
	if after.IsNone() {
		return nil
	}
	text := projectText(after, fields)
	if text == "" {
		return nil
	}
	if err := insert(ctx, tx, ns, db, tb, ix, text, rec); err != nil {
		return fmt.Errorf("fts: insert: %w", err)
	}
	return nil
}

func readStats(ctx context.Context, tx kv.Tx, ns, db, tb, ix string) (stats, error) {
	raw, err := tx.Get(ctx, keycodec.FTSStats(ns, db, tb, ix).Bytes())
	if err == kv.ErrNotFound {
		return stats{}, nil
	}
	if err != nil {
		return stats{}, err
	}
	return decodeStats(raw)
}

func writeStats(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, s stats) error {
	return tx.Set(ctx, keycodec.FTSStats(ns, db, tb, ix).Bytes(), encodeStats(s))
}

func insert(ctx context.Context, tx kv.Tx, ns, db, tb, ix, text string, rec value.RecordID) error {
	tokens := Tokenize(text)
	freqs := TermFrequencies(tokens)

	recJSON, err := value.ToJSON(value.Record(rec))
	if err != nil {
		return err
	}

	docID, err := nextCounter(ctx, tx, keycodec.FTSDocCounter(ns, db, tb, ix).Bytes())
	if err != nil {
		return err
	}

	termIDs := make([]uint64, 0, len(freqs))
	for term, tf := range freqs {
		termID, df, err := getOrCreateTerm(ctx, tx, ns, db, tb, ix, term)
		if err != nil {
			return err
		}
		df++
		if err := tx.Set(ctx, keycodec.FTSTermDict(ns, db, tb, ix, term).Bytes(), encodeTermEntry(termEntry{TermID: termID, DocFreq: df})); err != nil {
			return err
		}
		if err := tx.Set(ctx, keycodec.FTSPostings(ns, db, tb, ix, termID, docID).Bytes(), encodeUint64(uint64(tf))); err != nil {
			return err
		}
		termIDs = append(termIDs, termID)
	}

	if err := tx.Set(ctx, keycodec.FTSDocRegistry(ns, db, tb, ix, docID).Bytes(), encodeDocEntry(docEntry{RecordJSON: recJSON, TermIDs: termIDs, Length: len(tokens)})); err != nil {
		return err
	}
	if err := tx.Set(ctx, keycodec.FTSDocLength(ns, db, tb, ix, docID).Bytes(), encodeUint64(uint64(len(tokens)))); err != nil {
		return err
	}
	if err := tx.Set(ctx, keycodec.FTSDocByRecord(ns, db, tb, ix, []byte(rec.Key.String())).Bytes(), encodeUint64(docID)); err != nil {
		return err
	}

	s, err := readStats(ctx, tx, ns, db, tb, ix)
	if err != nil {
		return err
	}
	s.DocCount++
	s.TotalLength += len(tokens)
	return writeStats(ctx, tx, ns, db, tb, ix, s)
}

func getOrCreateTerm(ctx context.Context, tx kv.Tx, ns, db, tb, ix, term string) (termID uint64, docFreq int, err error) {
	raw, err := tx.Get(ctx, keycodec.FTSTermDict(ns, db, tb, ix, term).Bytes())
	if err == nil {
		e, derr := decodeTermEntry(raw)
		if derr != nil {
			return 0, 0, derr
		}
		return e.TermID, e.DocFreq, nil
	}
	if err != kv.ErrNotFound {
		return 0, 0, err
	}
	id, err := nextCounter(ctx, tx, keycodec.FTSTermCounter(ns, db, tb, ix).Bytes())
	if err != nil {
		return 0, 0, err
	}
	return id, 0, nil
}

func retract(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, rec value.RecordID) error {
	byRecordKey := keycodec.FTSDocByRecord(ns, db, tb, ix, []byte(rec.Key.String())).Bytes()
	raw, err := tx.Get(ctx, byRecordKey)
	if err == kv.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	docID := decodeUint64(raw)

	docKey := keycodec.FTSDocRegistry(ns, db, tb, ix, docID).Bytes()
	docRaw, err := tx.Get(ctx, docKey)
	if err == kv.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	entry, err := decodeDocEntry(docRaw)
	if err != nil {
		return err
	}

	retracted := make(map[uint64]bool, len(entry.TermIDs))
	for _, termID := range entry.TermIDs {
		retracted[termID] = true
		if err := tx.Del(ctx, keycodec.FTSPostings(ns, db, tb, ix, termID, docID).Bytes()); err != nil {
			return err
		}
	}
	dict, err := tx.ScanPrefix(ctx, keycodec.FTSTermDictPrefix(ns, db, tb, ix).Bytes(), 0, false)
	if err != nil {
		return err
	}
	for _, d := range dict {
		if te, err := decodeTermEntry(d.Value); err == nil && retracted[te.TermID] && te.DocFreq > 0 {
			te.DocFreq--
			if err := tx.Set(ctx, d.Key, encodeTermEntry(te)); err != nil {
				return err
			}
		}
	}
	if err := tx.Del(ctx, docKey); err != nil {
		return err
	}
	if err := tx.Del(ctx, keycodec.FTSDocLength(ns, db, tb, ix, docID).Bytes()); err != nil {
		return err
	}
	if err := tx.Del(ctx, byRecordKey); err != nil {
		return err
	}

	s, err := readStats(ctx, tx, ns, db, tb, ix)
	if err != nil {
		return err
	}
	s.DocCount--
	s.TotalLength -= entry.Length
	return writeStats(ctx, tx, ns, db, tb, ix, s)
}

// Hit is one BM25 search result.
type Hit struct {
	Record value.RecordID
	Score  float64
}

// scoreEntry backs the btree used to keep running per-document scores in
// a single ordered structure while terms are folded in one at a time,
// rather than repeatedly re-sorting a map.
type scoreEntry struct {
	docID uint64
	score float64
}

func (e scoreEntry) Less(other btree.Item) bool {
	return e.docID < other.(scoreEntry).docID
}

// Search ranks documents against the query by BM25, using the corpus-wide
// doc count and average length snapshotted in !bs.
func Search(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, params Params, query string, limit int) ([]Hit, error) {
	s, err := readStats(ctx, tx, ns, db, tb, ix)
	if err != nil {
		return nil, fmt.Errorf("fts: search stats: %w", err)
	}
	if s.DocCount == 0 {
		return nil, nil
	}
	avgdl := float64(s.TotalLength) / float64(s.DocCount)

	scores := btree.New(32)
	terms := uniqueTerms(Tokenize(query))
	for _, term := range terms {
		raw, err := tx.Get(ctx, keycodec.FTSTermDict(ns, db, tb, ix, term).Bytes())
		if err == kv.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		te, err := decodeTermEntry(raw)
		if err != nil {
			return nil, err
		}
		if te.DocFreq == 0 {
			continue
		}
		idf := math.Log(1 + (float64(s.DocCount)-float64(te.DocFreq)+0.5)/(float64(te.DocFreq)+0.5))

		postings, err := tx.ScanPrefix(ctx, keycodec.FTSPostingsPrefix(ns, db, tb, ix, te.TermID).Bytes(), 0, false)
		if err != nil {
			return nil, err
		}
		for _, p := range postings {
			docID, ok := postingDocID(p.Key)
			if !ok {
				continue
			}
			tf := float64(decodeUint64(p.Value))
			lenRaw, err := tx.Get(ctx, keycodec.FTSDocLength(ns, db, tb, ix, docID).Bytes())
			if err != nil {
				continue
			}
			docLen := float64(decodeUint64(lenRaw))
			denom := tf + params.K1*(1-params.B+params.B*(docLen/avgdl))
			contribution := idf * (tf * (params.K1 + 1)) / denom

			existing := scores.Get(scoreEntry{docID: docID})
			if existing != nil {
				e := existing.(scoreEntry)
				e.score += contribution
				scores.ReplaceOrInsert(e)
			} else {
				scores.ReplaceOrInsert(scoreEntry{docID: docID, score: contribution})
			}
		}
	}

	var hits []Hit
	scores.Ascend(func(item btree.Item) bool {
		e := item.(scoreEntry)
		docRaw, err := tx.Get(ctx, keycodec.FTSDocRegistry(ns, db, tb, ix, e.docID).Bytes())
		if err != nil {
			return true
		}
		entry, err := decodeDocEntry(docRaw)
		if err != nil {
			return true
		}
		rv := value.FromJSON(entry.RecordJSON)
		hits = append(hits, Hit{Record: rv.AsRecordID(), Score: e.score})
		return true
	})

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Compact prunes term-dictionary entries whose DocFreq has dropped to
// zero: retract deletes a term's postings as documents are removed but
// leaves the term id allocated in the dictionary, so a long-lived index
// accumulates dead terms pointing at nothing. Compact is the background
// pass index_compaction_interval drives, returning how many entries it
// removed.
func Compact(ctx context.Context, tx kv.Tx, ns, db, tb, ix string) (int, error) {
	entries, err := tx.ScanPrefix(ctx, keycodec.FTSTermDictPrefix(ns, db, tb, ix).Bytes(), 0, false)
	if err != nil {
		return 0, fmt.Errorf("fts: compact: scan term dict: %w", err)
	}
	removed := 0
	for _, e := range entries {
		te, err := decodeTermEntry(e.Value)
		if err != nil {
			return removed, fmt.Errorf("fts: compact: decode term entry: %w", err)
		}
		if te.DocFreq > 0 {
			continue
		}
		if err := tx.Del(ctx, e.Key); err != nil {
			return removed, fmt.Errorf("fts: compact: delete term entry: %w", err)
		}
		removed++
	}
	return removed, nil
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// postingDocID recovers the trailing docId segment from a posting key,
// which is the last 8 raw bytes written after FTSPostingsPrefix and the
// tagged 8-byte termId segment.
func postingDocID(key []byte) (uint64, bool) {
	if len(key) < 8 {
		return 0, false
	}
	tail := key[len(key)-8:]
	var v uint64
	for _, b := range tail {
		v = v<<8 | uint64(b)
	}
	return v, true
}
