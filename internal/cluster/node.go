// Package cluster implements node membership (C10): heartbeat
// registration, liveness detection, and the garbage collection of stale
// heartbeat entries. Detecting a dead node triggers live-query archival
// (internal/changefeed.Archive) per the reconnection decision recorded
// for C8/C10 in SPEC_FULL.md.
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/kv"
)

// maxHeartbeatRetries bounds the backoff.Retry loop used to ride out
// optimistic conflicts on heartbeat writes. It is a separate, smaller
// budget than the maxRetryDepth of 8 that internal/txn.EventQueue uses
// for event delivery.
const maxHeartbeatRetries = 5

// Node is one cluster member's identity and capability tags, the
// payload stored alongside each heartbeat entry.
type Node struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	Tags    []string `json:"tags"`
}

type heartbeatWire struct {
	Node Node `json:"node"`
}

// Membership tracks cluster nodes through their heartbeat entries in the
// KV space. ttl is how long a node is considered live after its most
// recent heartbeat.
type Membership struct {
	driver kv.Driver
	ttl    time.Duration
}

// NewMembership returns a Membership backed by driver, treating a node as
// dead once ttl has elapsed since its last heartbeat.
func NewMembership(driver kv.Driver, ttl time.Duration) *Membership {
	return &Membership{driver: driver, ttl: ttl}
}

// Heartbeat records a liveness entry for node at timestamp now, retrying
// on optimistic conflicts with exponential backoff.
func (m *Membership) Heartbeat(ctx context.Context, node Node, now time.Time) error {
	raw, err := json.Marshal(heartbeatWire{Node: node})
	if err != nil {
		return fmt.Errorf("cluster: encode heartbeat: %w", err)
	}
	key := keycodec.NodeHeartbeat(node.ID, now.UnixNano()).Bytes()

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxHeartbeatRetries)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		tx, err := m.driver.Begin(ctx, kv.TxOptions{})
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, key, raw); err != nil {
			tx.Cancel(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			if errors.Is(err, kv.ErrConflict) {
				log.Printf("cluster: heartbeat conflict for node %q, attempt %d", node.ID, attempt)
			}
			return err
		}
		return nil
	}, policy)
}

// Live returns every node whose most recent heartbeat is within ttl of
// now, deduplicated to each node's latest entry.
func (m *Membership) Live(ctx context.Context, now time.Time) ([]Node, error) {
	latest, err := m.latestByNode(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-m.ttl)
	out := make([]Node, 0, len(latest))
	for _, e := range latest {
		if !e.ts.Before(cutoff) {
			out = append(out, e.node)
		}
	}
	return out, nil
}

// Expired returns every node whose most recent heartbeat has fallen
// behind ttl, the candidates C10 hands to internal/changefeed.Archive.
func (m *Membership) Expired(ctx context.Context, now time.Time) ([]Node, error) {
	latest, err := m.latestByNode(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-m.ttl)
	out := make([]Node, 0, len(latest))
	for _, e := range latest {
		if e.ts.Before(cutoff) {
			out = append(out, e.node)
		}
	}
	return out, nil
}

// GC deletes heartbeat entries older than retain, keeping the heartbeat
// range from growing without bound. It never deletes a node's single
// most recent entry even if retain would otherwise cover it, so Live
// and Expired always have at least one entry per node to consult.
func (m *Membership) GC(ctx context.Context, retain time.Time) error {
	tx, err := m.driver.Begin(ctx, kv.TxOptions{})
	if err != nil {
		return fmt.Errorf("cluster: gc begin: %w", err)
	}
	defer tx.Cancel(ctx)

	latest, err := m.latestKeysByNode(ctx, tx)
	if err != nil {
		return err
	}
	begin := keycodec.NodeHeartbeatPrefix().Bytes()
	end := keycodec.NodeHeartbeatBefore(retain.UnixNano()).Bytes()
	entries, err := tx.Scan(ctx, begin, end, 0, false)
	if err != nil {
		return fmt.Errorf("cluster: gc scan: %w", err)
	}
	for _, e := range entries {
		if latest[string(e.Key)] {
			continue
		}
		if err := tx.Del(ctx, e.Key); err != nil {
			return fmt.Errorf("cluster: gc delete: %w", err)
		}
	}
	return tx.Commit(ctx)
}

type timestampedNode struct {
	node Node
	ts   time.Time
}

func (m *Membership) latestByNode(ctx context.Context) (map[string]timestampedNode, error) {
	tx, err := m.driver.Begin(ctx, kv.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("cluster: begin: %w", err)
	}
	defer tx.Cancel(ctx)

	entries, err := tx.ScanPrefix(ctx, keycodec.NodeHeartbeatPrefix().Bytes(), 0, false)
	if err != nil {
		return nil, fmt.Errorf("cluster: scan: %w", err)
	}

	latest := make(map[string]timestampedNode)
	for _, e := range entries {
		var w heartbeatWire
		if err := json.Unmarshal(e.Value, &w); err != nil {
			return nil, fmt.Errorf("cluster: decode heartbeat: %w", err)
		}
		ts, ok := heartbeatTimestamp(e.Key)
		if !ok {
			continue
		}
		if prev, seen := latest[w.Node.ID]; !seen || ts.After(prev.ts) {
			latest[w.Node.ID] = timestampedNode{node: w.Node, ts: ts}
		}
	}
	return latest, nil
}

// latestKeysByNode returns the set of heartbeat keys (by raw key bytes)
// that are each node's most recent entry, so GC can spare them.
func (m *Membership) latestKeysByNode(ctx context.Context, tx kv.Tx) (map[string]bool, error) {
	entries, err := tx.ScanPrefix(ctx, keycodec.NodeHeartbeatPrefix().Bytes(), 0, false)
	if err != nil {
		return nil, fmt.Errorf("cluster: scan: %w", err)
	}
	type seen struct {
		key []byte
		ts  time.Time
	}
	latest := make(map[string]seen)
	for _, e := range entries {
		var w heartbeatWire
		if err := json.Unmarshal(e.Value, &w); err != nil {
			return nil, fmt.Errorf("cluster: decode heartbeat: %w", err)
		}
		ts, ok := heartbeatTimestamp(e.Key)
		if !ok {
			continue
		}
		if prev, ok := latest[w.Node.ID]; !ok || ts.After(prev.ts) {
			latest[w.Node.ID] = seen{key: e.Key, ts: ts}
		}
	}
	out := make(map[string]bool, len(latest))
	for _, s := range latest {
		out[string(s.key)] = true
	}
	return out, nil
}

// heartbeatTimestamp recovers the timestamp embedded in a
// keycodec.NodeHeartbeat key: an 8-byte sign-flipped big-endian int64
// immediately after the "/!hb" prefix tag byte.
func heartbeatTimestamp(key []byte) (time.Time, bool) {
	// "/!hb" is written as a literal segment: one tag byte followed by a
	// 4-byte big-endian length and the literal's bytes, then the i64
	// segment's own tag byte precedes its 8-byte payload.
	const literalHeaderLen = 1 + 4 + 4 // tag + length + "/!hb"
	const i64TagLen = 1
	offset := literalHeaderLen + i64TagLen
	if len(key) < offset+8 {
		return time.Time{}, false
	}
	raw := key[offset : offset+8]
	var u uint64
	for _, b := range raw {
		u = u<<8 | uint64(b)
	}
	// i64 encoding sign-flips the top bit so byte order matches numeric
	// order; flip it back to recover the original two's-complement bits.
	u ^= 1 << 63
	return time.Unix(0, int64(u)), true
}
