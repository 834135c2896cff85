package plan

import (
	"context"
	"sort"

	"github.com/surrealcore/coredb/internal/query"
	"github.com/surrealcore/coredb/internal/value"
)

// Filter keeps only the input values that pass Match, the same
// query.Matcher the document processor's live-query stage (C8) runs
// against a mutation's before/after state.
type Filter struct {
	Input Operator
	Match query.Matcher
}

func (f *Filter) Name() string          { return "Filter" }
func (f *Filter) RequiredContext() Scope { return f.Input.RequiredContext() }
func (f *Filter) AccessMode() AccessMode { return f.Input.AccessMode() }
func (f *Filter) MutatesContext() bool   { return f.Input.MutatesContext() }
func (f *Filter) OutputContext(ec *ExecContext) *ExecContext { return f.Input.OutputContext(ec) }

func (f *Filter) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	child, err := f.Input.Execute(ctx, ec)
	if err != nil {
		return instrument(ctx, f.Name(), nil, err)
	}
	return instrument(ctx, f.Name(), StreamFunc(func(ctx context.Context) (Batch, bool, error) {
		for {
			if err := ec.CheckDeadline(ctx); err != nil {
				return Batch{}, false, err
			}
			b, ok, err := child.Next(ctx)
			if err != nil || !ok {
				return Batch{}, ok, err
			}
			kept := make([]value.Value, 0, len(b.Values))
			for _, v := range b.Values {
				if f.Match(v) {
					kept = append(kept, v)
				}
			}
			if len(kept) == 0 {
				continue
			}
			return Batch{Values: kept}, true, nil
		}
	}), nil)
}

// Order buffers its entire input and re-sorts it by Less. The teacher's
// external merge-sort spill path for oversized result sets is not
// implemented; the whole input is sorted in memory.
type Order struct {
	Input Operator
	Less  func(a, b value.Value) bool
}

func (o *Order) Name() string          { return "Order" }
func (o *Order) RequiredContext() Scope { return o.Input.RequiredContext() }
func (o *Order) AccessMode() AccessMode { return o.Input.AccessMode() }
func (o *Order) MutatesContext() bool   { return o.Input.MutatesContext() }
func (o *Order) OutputContext(ec *ExecContext) *ExecContext { return o.Input.OutputContext(ec) }

func (o *Order) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	all, err := drain(ctx, ec, o.Input)
	if err != nil {
		return instrument(ctx, o.Name(), nil, err)
	}
	sortValues(all, o.Less)
	return instrument(ctx, o.Name(), batchedStream(ctx, ec, all, 0), nil)
}

// Limit truncates the input to at most N values total, across batches.
type Limit struct {
	Input Operator
	N     int
}

func (l *Limit) Name() string          { return "Limit" }
func (l *Limit) RequiredContext() Scope { return l.Input.RequiredContext() }
func (l *Limit) AccessMode() AccessMode { return l.Input.AccessMode() }
func (l *Limit) MutatesContext() bool   { return l.Input.MutatesContext() }
func (l *Limit) OutputContext(ec *ExecContext) *ExecContext { return l.Input.OutputContext(ec) }

func (l *Limit) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	child, err := l.Input.Execute(ctx, ec)
	if err != nil {
		return instrument(ctx, l.Name(), nil, err)
	}
	remaining := l.N
	return instrument(ctx, l.Name(), StreamFunc(func(ctx context.Context) (Batch, bool, error) {
		if remaining <= 0 {
			return Batch{}, false, nil
		}
		if err := ec.CheckDeadline(ctx); err != nil {
			return Batch{}, false, err
		}
		b, ok, err := child.Next(ctx)
		if err != nil || !ok {
			return Batch{}, ok, err
		}
		if len(b.Values) > remaining {
			b.Values = b.Values[:remaining]
		}
		remaining -= len(b.Values)
		return b, true, nil
	}), nil)
}

// Start skips the first N values, across batches.
type Start struct {
	Input Operator
	N     int
}

func (s *Start) Name() string          { return "Start" }
func (s *Start) RequiredContext() Scope { return s.Input.RequiredContext() }
func (s *Start) AccessMode() AccessMode { return s.Input.AccessMode() }
func (s *Start) MutatesContext() bool   { return s.Input.MutatesContext() }
func (s *Start) OutputContext(ec *ExecContext) *ExecContext { return s.Input.OutputContext(ec) }

func (s *Start) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	child, err := s.Input.Execute(ctx, ec)
	if err != nil {
		return instrument(ctx, s.Name(), nil, err)
	}
	skip := s.N
	return instrument(ctx, s.Name(), StreamFunc(func(ctx context.Context) (Batch, bool, error) {
		for {
			if err := ec.CheckDeadline(ctx); err != nil {
				return Batch{}, false, err
			}
			b, ok, err := child.Next(ctx)
			if err != nil || !ok {
				return Batch{}, ok, err
			}
			if skip == 0 {
				return b, true, nil
			}
			if skip >= len(b.Values) {
				skip -= len(b.Values)
				continue
			}
			b.Values = b.Values[skip:]
			skip = 0
			return b, true, nil
		}
	}), nil)
}

func drain(ctx context.Context, ec *ExecContext, op Operator) ([]value.Value, error) {
	s, err := op.Execute(ctx, ec)
	if err != nil {
		return nil, err
	}
	var all []value.Value
	for {
		if err := ec.CheckDeadline(ctx); err != nil {
			return nil, err
		}
		b, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, b.Values...)
	}
}

func sortValues(vals []value.Value, less func(a, b value.Value) bool) {
	if less == nil {
		less = func(a, b value.Value) bool { return value.Compare(a, b) < 0 }
	}
	sort.SliceStable(vals, func(i, j int) bool { return less(vals[i], vals[j]) })
}
