package plan

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// maxConcurrentOpens bounds how many input streams Union opens at once;
// opening a TableScan input means running its initial range scan, so
// fanning all of them out unbounded would spike KV backend load on a
// plan with many Union branches.
const maxConcurrentOpens = 4

// Union chains N input streams in order: all of input 0's values, then
// input 1's, and so on. Per original_source's union.rs it is pure
// concatenation with no deduplication.
type Union struct {
	Inputs []Operator
}

func (u *Union) Name() string          { return "Union" }
func (u *Union) MutatesContext() bool   { return false }
func (u *Union) OutputContext(ec *ExecContext) *ExecContext { return ec }

func (u *Union) RequiredContext() Scope {
	scope := ScopeRoot
	for _, in := range u.Inputs {
		if in.RequiredContext() > scope {
			scope = in.RequiredContext()
		}
	}
	return scope
}

func (u *Union) AccessMode() AccessMode {
	mode := ReadOnly
	for _, in := range u.Inputs {
		mode = mode.Combine(in.AccessMode())
	}
	return mode
}

// Execute opens every input stream concurrently, bounded by a weighted
// semaphore, then replays their batches strictly in input order.
func (u *Union) Execute(ctx context.Context, ec *ExecContext) (Stream, error) {
	streams := make([]Stream, len(u.Inputs))
	errs := make([]error, len(u.Inputs))
	sem := semaphore.NewWeighted(maxConcurrentOpens)
	done := make(chan int, len(u.Inputs))

	for idx, in := range u.Inputs {
		idx, in := idx, in
		if err := sem.Acquire(ctx, 1); err != nil {
			return instrument(ctx, u.Name(), nil, fmt.Errorf("plan: union: %w", err))
		}
		go func() {
			defer sem.Release(1)
			s, err := in.Execute(ctx, ec)
			streams[idx] = s
			errs[idx] = err
			done <- idx
		}()
	}
	for range u.Inputs {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return instrument(ctx, u.Name(), nil, fmt.Errorf("plan: union: %w", err))
		}
	}

	cur := 0
	return instrument(ctx, u.Name(), StreamFunc(func(ctx context.Context) (Batch, bool, error) {
		if err := ec.CheckDeadline(ctx); err != nil {
			return Batch{}, false, err
		}
		for cur < len(streams) {
			b, ok, err := streams[cur].Next(ctx)
			if err != nil {
				return Batch{}, false, err
			}
			if ok {
				return b, true, nil
			}
			cur++
		}
		return Batch{}, false, nil
	}), nil)
}
