// Package compact runs the background index-compaction pass
// index_compaction_interval drives: periodically pruning dead
// term-dictionary entries out of full-text indexes so a long-lived
// database doesn't accumulate unbounded dictionary bloat from
// documents that have since been updated or deleted.
package compact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/surrealcore/coredb/internal/index/fts"
	"github.com/surrealcore/coredb/internal/kv"
)

const defaultConcurrency = 5

// Config tunes the compaction scheduler.
type Config struct {
	Interval    time.Duration // index_compaction_interval
	Concurrency int
	DryRun      bool
}

// Target names one full-text index to compact.
type Target struct {
	Namespace string
	Database  string
	Table     string
	Index     string
}

// Result records the outcome of compacting one Target.
type Result struct {
	Target  Target
	Removed int
	Err     error
}

// Compactor runs CompactOnce against a discovery function on a timer
// until Stop is called, mirroring the teacher's worker-pool shape
// (bounded goroutines draining a work channel) with Haiku-based issue
// summarization replaced by fts.Compact.
type Compactor struct {
	store  kv.Driver
	config Config
	lookup func(ctx context.Context) ([]Target, error)

	cancel context.CancelFunc
	done   chan struct{}
}

// New wires a Compactor against a driver and a function that lists the
// full-text indexes currently eligible for compaction (the catalog
// walk is left to the caller, since Catalog has no "every index in the
// system" method and building one is out of scope here).
func New(store kv.Driver, lookup func(ctx context.Context) ([]Target, error), config Config) *Compactor {
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	return &Compactor{store: store, config: config, lookup: lookup}
}

// CompactOnce runs a single compaction pass over every Target lookup
// currently returns, fanning work out across config.Concurrency workers.
func (c *Compactor) CompactOnce(ctx context.Context) ([]Result, error) {
	targets, err := c.lookup(ctx)
	if err != nil {
		return nil, fmt.Errorf("compact: list targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, nil
	}

	workCh := make(chan Target, len(targets))
	resultCh := make(chan Result, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < c.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range workCh {
				resultCh <- c.compactSingle(ctx, t)
			}
		}()
	}

	for _, t := range targets {
		workCh <- t
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, 0, len(targets))
	for r := range resultCh {
		results = append(results, r)
	}
	return results, nil
}

func (c *Compactor) compactSingle(ctx context.Context, t Target) Result {
	if err := ctx.Err(); err != nil {
		return Result{Target: t, Err: err}
	}
	if c.config.DryRun {
		return Result{Target: t}
	}

	tx, err := c.store.Begin(ctx, kv.TxOptions{})
	if err != nil {
		return Result{Target: t, Err: fmt.Errorf("compact: begin: %w", err)}
	}
	removed, err := fts.Compact(ctx, tx, t.Namespace, t.Database, t.Table, t.Index)
	if err != nil {
		_ = tx.Cancel(ctx)
		return Result{Target: t, Err: fmt.Errorf("compact: %w", err)}
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{Target: t, Err: fmt.Errorf("compact: commit: %w", err)}
	}
	return Result{Target: t, Removed: removed}
}

// Start runs CompactOnce every config.Interval until Stop is called.
// Errors from individual passes are swallowed (the next tick retries);
// callers that need visibility should call CompactOnce directly instead.
func (c *Compactor) Start(ctx context.Context) {
	if c.config.Interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = c.CompactOnce(ctx)
			}
		}
	}()
}

// Stop cancels the background loop started by Start and waits for it
// to exit.
func (c *Compactor) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}
