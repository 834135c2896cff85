package plan

import (
	"context"
	"fmt"

	"github.com/surrealcore/coredb/internal/index"
	"github.com/surrealcore/coredb/internal/index/fts"
	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/value"
)

// IndexIterator produces documents for a bound predicate over a
// standard/unique index, resolving each candidate record id straight
// to its stored document rather than leaving that to a separate
// resolve step, since C6's document processor is only invoked on
// writes in this module (there is no read-side DP pass to hand
// candidates to).
type IndexIterator struct {
	Table string
	Index string
	Match []value.Value // exact-match projection; nil means "all entries"
}

func (i *IndexIterator) Name() string          { return fmt.Sprintf("IndexIterator(%s.%s)", i.Table, i.Index) }
func (i *IndexIterator) RequiredContext() Scope { return ScopeDatabase }
func (i *IndexIterator) AccessMode() AccessMode { return ReadOnly }
func (i *IndexIterator) MutatesContext() bool   { return false }
func (i *IndexIterator) OutputContext(ec *ExecContext) *ExecContext { return ec }

func (i *IndexIterator) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	if ec.Tx == nil {
		return instrument(ctx, i.Name(), nil, fmt.Errorf("plan: index iterator: no open transaction"))
	}
	var ids []value.RecordID
	var err error
	if i.Match == nil {
		prefix := keycodec.IndexEntryPrefix(ec.Namespace, ec.Database, i.Table, i.Index).Bytes()
		entries, serr := ec.Tx.Raw().ScanPrefix(ctx, prefix, 0, false)
		for _, e := range entries {
			ids = append(ids, value.FromJSON(string(e.Value)).AsRecordID())
		}
		err = serr
	} else {
		ids, err = index.Lookup(ctx, ec.Tx.Raw(), ec.Namespace, ec.Database, i.Table, i.Index, i.Match)
	}
	if err != nil {
		return instrument(ctx, i.Name(), nil, fmt.Errorf("plan: index iterator: %w", err))
	}

	values := make([]value.Value, 0, len(ids))
	for _, id := range ids {
		key := keycodec.Record(ec.Namespace, ec.Database, i.Table, keycodec.RecordKeyString, []byte(id.Key.String())).Bytes()
		raw, err := ec.Tx.Raw().Get(ctx, key)
		if err != nil {
			continue // stale index entry pointing at a since-deleted record
		}
		doc, err := value.Decode(raw)
		if err != nil {
			return instrument(ctx, i.Name(), nil, fmt.Errorf("plan: index iterator: decode %s: %w", i.Table, err))
		}
		values = append(values, doc)
	}
	return instrument(ctx, i.Name(), batchedStream(ctx, ec, values, 0), nil)
}

// SearchIterator wraps the BM25 full-text index (C7), producing
// documents ranked by score instead of key order.
type SearchIterator struct {
	Table  string
	Index  string
	Query  string
	Limit  int
	Params fts.Params
}

func (s *SearchIterator) Name() string          { return fmt.Sprintf("SearchIterator(%s.%s)", s.Table, s.Index) }
func (s *SearchIterator) RequiredContext() Scope { return ScopeDatabase }
func (s *SearchIterator) AccessMode() AccessMode { return ReadOnly }
func (s *SearchIterator) MutatesContext() bool   { return false }
func (s *SearchIterator) OutputContext(ec *ExecContext) *ExecContext { return ec }

func (s *SearchIterator) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	if ec.Tx == nil {
		return instrument(ctx, s.Name(), nil, fmt.Errorf("plan: search iterator: no open transaction"))
	}
	params := s.Params
	if params == (fts.Params{}) {
		params = fts.DefaultParams()
	}
	hits, err := fts.Search(ctx, ec.Tx.Raw(), ec.Namespace, ec.Database, s.Table, s.Index, params, s.Query, s.Limit)
	if err != nil {
		return instrument(ctx, s.Name(), nil, fmt.Errorf("plan: search iterator: %w", err))
	}

	values := make([]value.Value, 0, len(hits))
	for _, h := range hits {
		key := keycodec.Record(ec.Namespace, ec.Database, s.Table, keycodec.RecordKeyString, []byte(h.Record.Key.String())).Bytes()
		raw, err := ec.Tx.Raw().Get(ctx, key)
		if err != nil {
			continue
		}
		doc, err := value.Decode(raw)
		if err != nil {
			return instrument(ctx, s.Name(), nil, fmt.Errorf("plan: search iterator: decode %s: %w", s.Table, err))
		}
		values = append(values, doc)
	}
	return instrument(ctx, s.Name(), batchedStream(ctx, ec, values, 0), nil)
}
