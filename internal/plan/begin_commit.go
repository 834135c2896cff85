package plan

import (
	"context"
	"fmt"

	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/txn"
	"github.com/surrealcore/coredb/internal/value"
)

// BeginPlan opens a new transaction on the datastore and hands the rest
// of the plan tree a context carrying it; per original_source's
// begin_plan.rs it carries no payload beyond that handle, so its value
// stream yields a single NONE.
type BeginPlan struct {
	ReadOnly bool
	nextTx   *txn.Transaction
}

func (b *BeginPlan) Name() string          { return "BeginPlan" }
func (b *BeginPlan) RequiredContext() Scope { return ScopeDatabase }
func (b *BeginPlan) MutatesContext() bool   { return true }

func (b *BeginPlan) AccessMode() AccessMode {
	if b.ReadOnly {
		return ReadOnly
	}
	return ReadWrite
}

func (b *BeginPlan) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	tx, err := ec.Store.Begin(ctx, kv.TxOptions{ReadOnly: b.ReadOnly})
	if err != nil {
		return instrument(ctx, b.Name(), nil, fmt.Errorf("plan: begin: %w", err))
	}
	b.nextTx = tx
	return instrument(ctx, b.Name(), sliceStream([]Batch{{Values: []value.Value{value.None()}}}), nil)
}

func (b *BeginPlan) OutputContext(ec *ExecContext) *ExecContext {
	return ec.withTx(b.nextTx)
}

// CommitPlan commits the context's current transaction. Committing a
// read-only transaction is a caller error: a read-only BeginPlan should
// be followed by Cancel, never CommitPlan.
type CommitPlan struct{}

func (c *CommitPlan) Name() string          { return "CommitPlan" }
func (c *CommitPlan) RequiredContext() Scope { return ScopeTransaction }
func (c *CommitPlan) AccessMode() AccessMode { return WriteOnly }
func (c *CommitPlan) MutatesContext() bool   { return true }

func (c *CommitPlan) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	if ec.Tx == nil {
		return instrument(ctx, c.Name(), nil, fmt.Errorf("plan: commit: no open transaction"))
	}
	if err := ec.Tx.Commit(ctx); err != nil {
		return instrument(ctx, c.Name(), nil, fmt.Errorf("plan: commit: %w", err))
	}
	return instrument(ctx, c.Name(), sliceStream([]Batch{{Values: []value.Value{value.None()}}}), nil)
}

func (c *CommitPlan) OutputContext(ec *ExecContext) *ExecContext {
	out := *ec
	out.Tx = nil
	return &out
}
