package cluster

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/surrealcore/coredb/internal/changefeed"
	"github.com/surrealcore/coredb/internal/kv"
)

// ReapExpired archives every live query owned by a node whose heartbeat
// has fallen behind the membership's ttl, the C10-triggers-C8 integration
// point SPEC_FULL.md's C8 resolution describes: a dead node's live
// queries are preserved for inspection, not silently dropped.
func (m *Membership) ReapExpired(ctx context.Context, now time.Time) error {
	expired, err := m.Expired(ctx, now)
	if err != nil {
		return fmt.Errorf("cluster: reap: list expired: %w", err)
	}
	for _, node := range expired {
		tx, err := m.driver.Begin(ctx, kv.TxOptions{})
		if err != nil {
			return fmt.Errorf("cluster: reap: begin: %w", err)
		}
		if err := changefeed.Archive(ctx, tx, node.ID); err != nil {
			tx.Cancel(ctx)
			return fmt.Errorf("cluster: reap: archive %s: %w", node.ID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("cluster: reap: commit %s: %w", node.ID, err)
		}
		log.Printf("cluster: archived live queries for expired node %q", node.ID)
	}
	return nil
}
