package plan

import (
	"context"
	"fmt"

	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/value"
)

// TableScan range-scans every record key under a table in record-id
// order, decoding each back into the document value the document
// processor (C6) would have stored it as.
type TableScan struct {
	Table     string
	BatchSize int
}

func (t *TableScan) Name() string          { return fmt.Sprintf("TableScan(%s)", t.Table) }
func (t *TableScan) RequiredContext() Scope { return ScopeDatabase }
func (t *TableScan) AccessMode() AccessMode { return ReadOnly }
func (t *TableScan) MutatesContext() bool   { return false }
func (t *TableScan) OutputContext(ec *ExecContext) *ExecContext { return ec }

func (t *TableScan) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	if ec.Tx == nil {
		return instrument(ctx, t.Name(), nil, fmt.Errorf("plan: table scan: no open transaction"))
	}
	prefix := keycodec.RecordPrefix(ec.Namespace, ec.Database, t.Table).Bytes()
	entries, err := ec.Tx.Raw().ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return instrument(ctx, t.Name(), nil, fmt.Errorf("plan: table scan: %w", err))
	}

	values := make([]value.Value, 0, len(entries))
	for _, e := range entries {
		v, err := value.Decode(e.Value)
		if err != nil {
			return instrument(ctx, t.Name(), nil, fmt.Errorf("plan: table scan: decode %s: %w", t.Table, err))
		}
		values = append(values, v)
	}
	return instrument(ctx, t.Name(), batchedStream(ctx, ec, values, t.BatchSize), nil)
}

// batchedStream slices values into DefaultBatchSize-sized batches (or
// BatchSize if positive), checking the deadline between each one.
func batchedStream(ctx context.Context, ec *ExecContext, values []value.Value, batchSize int) Stream {
	batches := chunk(values, batchSize)
	i := 0
	return StreamFunc(func(ctx context.Context) (Batch, bool, error) {
		if err := ec.CheckDeadline(ctx); err != nil {
			return Batch{}, false, err
		}
		if i >= len(batches) {
			return Batch{}, false, nil
		}
		b := batches[i]
		i++
		return b, true, nil
	})
}
