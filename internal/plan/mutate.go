package plan

import (
	"context"
	"fmt"

	"github.com/surrealcore/coredb/internal/doc"
	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/query"
	"github.com/surrealcore/coredb/internal/value"
)

// Mutate is the QEP's only write path: every CREATE, UPDATE, UPSERT,
// DELETE and RELATE statement lowers to a Mutate node, which drives each
// target record through the document processor (C6) rather than poking
// the KV store directly the way TableScan reads it. A statement with a
// literal target (CREATE one:id, RELATE a->b) supplies Targets; a
// statement with a WHERE clause (UPDATE foo WHERE ..., DELETE foo WHERE
// ...) supplies Match instead and Mutate resolves the matching record
// ids itself with a table scan, mirroring how TableScan already range-
// scans the same key prefix for reads.
type Mutate struct {
	Table    string
	Mutation doc.Mutation

	// Targets is the explicit list of record ids to mutate. Set by the
	// caller for statements with a literal target; a CREATE with no
	// given id uses a single entry whose Key.Kind is
	// value.RecordIDKeyRandom, letting C6's load_initial stage generate
	// one.
	Targets []value.RecordID
	// Match, when Targets is empty, selects every existing record in
	// Table whose current value satisfies it. Nil with empty Targets
	// mutates every record in the table.
	Match query.Matcher

	// Content is the CONTENT/SET/MERGE payload applied to every
	// target. RELATE additionally expects it to carry "in" and "out"
	// record-id fields per internal/doc's edges stage.
	Content value.Value
}

func (m *Mutate) Name() string          { return fmt.Sprintf("Mutate(%s)", m.Table) }
func (m *Mutate) RequiredContext() Scope { return ScopeTransaction }
func (m *Mutate) AccessMode() AccessMode { return ReadWrite }
func (m *Mutate) MutatesContext() bool   { return false }
func (m *Mutate) OutputContext(ec *ExecContext) *ExecContext { return ec }

func (m *Mutate) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	if ec.Tx == nil {
		return instrument(ctx, m.Name(), nil, fmt.Errorf("plan: mutate: no open transaction"))
	}

	targets := m.Targets
	if len(targets) == 0 {
		resolved, err := m.resolveTargets(ctx, ec)
		if err != nil {
			return instrument(ctx, m.Name(), nil, fmt.Errorf("plan: mutate: %w", err))
		}
		targets = resolved
	}

	results := make([]value.Value, 0, len(targets))
	for _, rid := range targets {
		if err := ec.CheckDeadline(ctx); err != nil {
			return instrument(ctx, m.Name(), nil, err)
		}
		d := &doc.Context{
			Namespace: ec.Namespace,
			Database:  ec.Database,
			Table:     m.Table,
			RecordID:  rid,
			Mutation:  m.Mutation,
			Content:   m.Content,
		}
		if err := doc.Run(ctx, ec.Tx, ec.Catalog, d); err != nil {
			return instrument(ctx, m.Name(), nil, fmt.Errorf("plan: mutate: %w", err))
		}
		if d.Ignore {
			continue
		}
		results = append(results, d.Final)
	}
	return instrument(ctx, m.Name(), batchedStream(ctx, ec, results, DefaultBatchSize), nil)
}

// resolveTargets range-scans Table the same way TableScan does, keeping
// only the records Match accepts (or all of them, if Match is nil), and
// recovers each one's record id from its key via keycodec.DecodeRecordKey
// rather than re-deriving it from the decoded value, since a record's
// own fields carry no guaranteed "id" key.
func (m *Mutate) resolveTargets(ctx context.Context, ec *ExecContext) ([]value.RecordID, error) {
	prefix := keycodec.RecordPrefix(ec.Namespace, ec.Database, m.Table).Bytes()
	entries, err := ec.Tx.Raw().ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", m.Table, err)
	}
	var out []value.RecordID
	for _, e := range entries {
		if m.Match != nil {
			rv, err := value.Decode(e.Value)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", m.Table, err)
			}
			if !m.Match(rv) {
				continue
			}
		}
		_, idBytes, err := keycodec.DecodeRecordKey(ec.Namespace, ec.Database, m.Table, e.Key)
		if err != nil {
			return nil, fmt.Errorf("decode record key: %w", err)
		}
		out = append(out, value.RecordID{
			Table: m.Table,
			Key:   value.RecordIDKey{Kind: value.RecordIDKeyString, Str: string(idBytes)},
		})
	}
	return out, nil
}
