package plan

import (
	"context"
	"fmt"

	"github.com/surrealcore/coredb/internal/index/hnsw"
	"github.com/surrealcore/coredb/internal/index/mtree"
	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/value"
)

// KnnEngine selects which vector index backs a KnnIterator.
type KnnEngine int

const (
	KnnMTree KnnEngine = iota
	KnnHNSW
)

// KnnIterator wraps the M-Tree or HNSW nearest-neighbor index (C7),
// yielding (recordId, distance) pairs as {id, distance} objects in
// distance order. Neither underlying Search supports true pagination,
// so the full top-K result is fetched once and sliced into batches;
// next_batch(limit) is therefore BatchSize, not an independently
// adjustable per-call argument.
type KnnIterator struct {
	Table     string
	Index     string
	Engine    KnnEngine
	Query     []float64
	K         int
	BatchSize int
}

func (k *KnnIterator) Name() string          { return fmt.Sprintf("KnnIterator(%s.%s)", k.Table, k.Index) }
func (k *KnnIterator) RequiredContext() Scope { return ScopeDatabase }
func (k *KnnIterator) AccessMode() AccessMode { return ReadOnly }
func (k *KnnIterator) MutatesContext() bool   { return false }
func (k *KnnIterator) OutputContext(ec *ExecContext) *ExecContext { return ec }

func (k *KnnIterator) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	if ec.Tx == nil {
		return instrument(ctx, k.Name(), nil, fmt.Errorf("plan: knn iterator: no open transaction"))
	}

	type hit struct {
		Record   value.RecordID
		Distance float64
	}
	var hits []hit
	switch k.Engine {
	case KnnHNSW:
		raw, err := hnsw.Search(ctx, ec.Tx.Raw(), ec.Namespace, ec.Database, k.Table, k.Index, k.Query, k.K)
		if err != nil {
			return instrument(ctx, k.Name(), nil, fmt.Errorf("plan: knn iterator: %w", err))
		}
		for _, h := range raw {
			hits = append(hits, hit{Record: h.Record, Distance: h.Distance})
		}
	default:
		raw, err := mtree.Search(ctx, ec.Tx.Raw(), ec.Namespace, ec.Database, k.Table, k.Index, k.Query, k.K)
		if err != nil {
			return instrument(ctx, k.Name(), nil, fmt.Errorf("plan: knn iterator: %w", err))
		}
		for _, h := range raw {
			hits = append(hits, hit{Record: h.Record, Distance: h.Distance})
		}
	}

	values := make([]value.Value, 0, len(hits))
	for _, h := range hits {
		obj := map[string]value.Value{
			"id":       value.Record(h.Record),
			"distance": value.Float(h.Distance),
		}
		key := keycodec.Record(ec.Namespace, ec.Database, k.Table, keycodec.RecordKeyString, []byte(h.Record.Key.String())).Bytes()
		if raw, err := ec.Tx.Raw().Get(ctx, key); err == nil {
			if doc, err := value.Decode(raw); err == nil {
				obj["record"] = doc
			}
		}
		values = append(values, value.Object(obj))
	}
	return instrument(ctx, k.Name(), batchedStream(ctx, ec, values, k.BatchSize), nil)
}
