// Package plan implements the query execution plan (C9): the tree of
// operators a compiled logical plan lowers to, each exposing a uniform
// contract (required enclosing context, access mode, a batch stream,
// and whether it mutates the context) so the scheduler driving the tree
// never needs a type switch on the concrete operator.
//
// Operators are pull-based: a parent calls Next on a child's Stream to
// obtain the next Batch, backpressuring production to consumption the
// way the teacher's coop package backpressures WebSocket sends against
// slow readers.
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealcore/coredb/internal/catalog"
	"github.com/surrealcore/coredb/internal/telemetry"
	"github.com/surrealcore/coredb/internal/txn"
	"github.com/surrealcore/coredb/internal/value"
)

// Scope is the minimum enclosing environment an operator needs.
type Scope int

const (
	ScopeRoot Scope = iota
	ScopeNamespace
	ScopeDatabase
	ScopeTransaction
)

// AccessMode is how an operator touches the datastore. Combining two
// modes up an operator tree is AND-of-writes: ReadWrite if either side
// writes and either side also reads, WriteOnly if neither side reads.
type AccessMode int

const (
	ReadOnly AccessMode = iota
	WriteOnly
	ReadWrite
)

// Combine folds a child operator's access mode into the parent's.
func (m AccessMode) Combine(other AccessMode) AccessMode {
	if m == other {
		return m
	}
	return ReadWrite
}

// DefaultBatchSize bounds how many values one Batch carries, balancing
// per-batch overhead (a context cancellation check, an otel span event)
// against holding too much of a large scan in memory at once.
const DefaultBatchSize = 256

// Batch is one slice of a stream's output.
type Batch struct {
	Values []value.Value
}

// Stream yields successive batches. Next returns ok=false once
// exhausted; callers must stop calling Next after that, matching the
// teacher's io.Reader-style "one more call after EOF is undefined"
// convention rather than a typed ErrExhausted.
type Stream interface {
	Next(ctx context.Context) (Batch, bool, error)
}

// StreamFunc adapts a plain function into a Stream.
type StreamFunc func(ctx context.Context) (Batch, bool, error)

func (f StreamFunc) Next(ctx context.Context) (Batch, bool, error) { return f(ctx) }

// sliceStream replays a pre-materialized list of batches; Begin and
// Commit use it to emit their single result batch.
func sliceStream(batches []Batch) Stream {
	i := 0
	return StreamFunc(func(ctx context.Context) (Batch, bool, error) {
		if err := ctx.Err(); err != nil {
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

func chunk(values []value.Value, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out []Batch
	for size < len(values) {
		out = append(out, Batch{Values: append([]value.Value(nil), values[:size]...)})
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, Batch{Values: append([]value.Value(nil), values...)})
	}
	return out
}

// ExecContext is the environment an operator executes under: the
// enclosing namespace/database, the transaction BeginPlan installs, the
// catalog, and the deadline ALTER SYSTEM QUERY_TIMEOUT imposes.
type ExecContext struct {
	Namespace string
	Database  string
	Catalog   *catalog.Catalog
	Store     *txn.Store
	Tx        *txn.Transaction
	Deadline  time.Time
}

// CheckDeadline returns a Canceled-shaped error once Deadline has
// passed, called by every operator between batches per spec.md §4.9's
// cooperative cancellation rule.
func (ec *ExecContext) CheckDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if !ec.Deadline.IsZero() && time.Now().After(ec.Deadline) {
		return fmt.Errorf("plan: query_timeout exceeded")
	}
	return nil
}

// withTx returns a shallow copy of ec carrying tx, used by BeginPlan's
// OutputContext without mutating the parent's ExecContext in place.
func (ec *ExecContext) withTx(tx *txn.Transaction) *ExecContext {
	out := *ec
	out.Tx = tx
	return &out
}

// Operator is one node of a query execution plan.
type Operator interface {
	Name() string
	RequiredContext() Scope
	AccessMode() AccessMode
	Execute(ctx context.Context, ec *ExecContext) (Stream, error)
	MutatesContext() bool
	// OutputContext derives the context a parent operator should use
	// after this one ran; operators that don't mutate the context
	// return ec unchanged.
	OutputContext(ec *ExecContext) *ExecContext
}

// instrument wraps a Stream so every Next call is one otel span plus one
// histogram record of the batch's production latency, the ambient
// instrumentation SPEC_FULL.md's domain-stack wiring table asks every
// operator to carry.
func instrument(ctx context.Context, opName string, s Stream, err error) (Stream, error) {
	if err != nil {
		return nil, err
	}
	tracer := telemetry.Tracer()
	hist, _ := telemetry.Meter().Float64Histogram(
		"plan.operator.batch_latency_ms",
	)
	return StreamFunc(func(ctx context.Context) (Batch, bool, error) {
		start := time.Now()
		spanCtx, span := tracer.Start(ctx, opName)
		b, ok, err := s.Next(spanCtx)
		span.End()
		if hist != nil {
			hist.Record(ctx, float64(time.Since(start).Milliseconds()))
		}
		return b, ok, err
	}), nil
}
