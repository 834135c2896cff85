// Package mtree implements the M-Tree KNN vector index (C7): per-index
// metadata and nodes persisted through C3 at keycodec.MTreeNode, insertion
// by minimum-radius-increase subtree selection with two-point promote
// splits, and best-first KNN search pruned by the triangle inequality, as
// described by spec.md 4.7.
package mtree

import (
	"bytes"
	"container/heap"
	"context"
	"fmt"

	"github.com/surrealcore/coredb/internal/index/metric"
	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/value"
)

// Config names the index-wide parameters fixed when DEFINE INDEX created
// the M-Tree: the distance metric and the branching factor before a node
// splits.
type Config struct {
	Metric     metric.Kind
	MinkowskiP float64
	MaxEntries int
}

func (c Config) dist(a, b []float64) float64 {
	return metric.Distance(c.Metric, c.MinkowskiP, a, b)
}

func maxEntries(c Config) int {
	if c.MaxEntries <= 0 {
		return 16
	}
	return c.MaxEntries
}

func loadMeta(ctx context.Context, tx kv.Tx, ns, db, tb, ix string) (metaWire, bool, error) {
	raw, err := tx.Get(ctx, keycodec.MTreeNode(ns, db, tb, ix, 0).Bytes())
	if err == kv.ErrNotFound {
		return metaWire{}, false, nil
	}
	if err != nil {
		return metaWire{}, false, err
	}
	m, err := decodeMeta(raw)
	return m, true, err
}

func saveMeta(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, m metaWire) error {
	return tx.Set(ctx, keycodec.MTreeNode(ns, db, tb, ix, 0).Bytes(), encodeMeta(m))
}

func loadNode(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, id uint64) (nodeWire, error) {
	raw, err := tx.Get(ctx, keycodec.MTreeNode(ns, db, tb, ix, id).Bytes())
	if err != nil {
		return nodeWire{}, fmt.Errorf("mtree: load node %d: %w", id, err)
	}
	return decodeNode(raw)
}

func saveNode(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, id uint64, n nodeWire) error {
	return tx.Set(ctx, keycodec.MTreeNode(ns, db, tb, ix, id).Bytes(), encodeNode(n))
}

// Insert adds one vector into the index, called by the document processor
// pipeline's "index" stage for a record whose HNSW/M-Tree-indexed field
// was set or changed.
func Insert(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, cfg Config, vector []float64, rec value.RecordID) error {
	meta, ok, err := loadMeta(ctx, tx, ns, db, tb, ix)
	if err != nil {
		return err
	}
	recJSON, err := value.ToJSON(value.Record(rec))
	if err != nil {
		return err
	}
	if !ok {
		rootID := uint64(1)
		leaf := nodeWire{Leaf: true, Entries: []entryWire{{Center: vector, RecordJSON: recJSON}}}
		if err := saveNode(ctx, tx, ns, db, tb, ix, rootID, leaf); err != nil {
			return err
		}
		meta = metaWire{RootID: rootID, NextNodeID: rootID + 1, Metric: cfg.Metric, MinkowskiP: cfg.MinkowskiP, MaxEntries: maxEntries(cfg)}
		return saveMeta(ctx, tx, ns, db, tb, ix, meta)
	}

	nextID := meta.NextNodeID
	self, sibling, err := insertInto(ctx, tx, ns, db, tb, ix, cfg, meta.RootID, vector, recJSON, &nextID)
	if err != nil {
		return err
	}
	meta.NextNodeID = nextID

	if sibling != nil {
		newRootID := nextID
		nextID++
		meta.NextNodeID = nextID
		newRoot := nodeWire{Leaf: false, Entries: []entryWire{
			{Center: self.Center, CoveringRadius: self.CoveringRadius, ChildRef: meta.RootID},
			{Center: sibling.Center, CoveringRadius: sibling.CoveringRadius, ChildRef: sibling.ChildRef},
		}}
		if err := saveNode(ctx, tx, ns, db, tb, ix, newRootID, newRoot); err != nil {
			return err
		}
		meta.RootID = newRootID
	}
	return saveMeta(ctx, tx, ns, db, tb, ix, meta)
}

// Remove tombstones rec's leaf entry rather than restructuring the tree:
// rebalancing an M-Tree on delete (merging underfull nodes) would need a
// second split-undo path this index doesn't otherwise carry, so Search
// just skips entries marked Deleted instead. Called by the document
// processor's "index" stage on a record delete for an M-Tree-indexed
// field.
func Remove(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, rec value.RecordID) error {
	_, ok, err := loadMeta(ctx, tx, ns, db, tb, ix)
	if err != nil || !ok {
		return err
	}
	prefix := keycodec.MTreeNodePrefix(ns, db, tb, ix).Bytes()
	metaKey := keycodec.MTreeNode(ns, db, tb, ix, 0).Bytes()
	entries, err := tx.ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return fmt.Errorf("mtree: remove: scan: %w", err)
	}
	target := rec.String()
	for _, e := range entries {
		if bytes.Equal(e.Key, metaKey) {
			continue
		}
		n, err := decodeNode(e.Value)
		if err != nil {
			return fmt.Errorf("mtree: remove: decode node: %w", err)
		}
		if !n.Leaf {
			continue
		}
		changed := false
		for i := range n.Entries {
			if n.Entries[i].Deleted || n.Entries[i].RecordJSON == "" {
				continue
			}
			if value.FromJSON(n.Entries[i].RecordJSON).AsRecordID().String() == target {
				n.Entries[i].Deleted = true
				changed = true
			}
		}
		if changed {
			if err := tx.Set(ctx, e.Key, encodeNode(n)); err != nil {
				return fmt.Errorf("mtree: remove: save node: %w", err)
			}
		}
	}
	return nil
}

// insertInto recurses to the leaf holding vector's target subtree,
// returns the (possibly enlarged) entry describing nodeID for its parent,
// and a second entry if nodeID split and produced a new sibling node.
func insertInto(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, cfg Config, nodeID uint64, vector []float64, recJSON string, nextID *uint64) (entryWire, *entryWire, error) {
	n, err := loadNode(ctx, tx, ns, db, tb, ix, nodeID)
	if err != nil {
		return entryWire{}, nil, err
	}

	if n.Leaf {
		n.Entries = append(n.Entries, entryWire{Center: vector, RecordJSON: recJSON})
		return finishNode(ctx, tx, ns, db, tb, ix, cfg, nodeID, n, nextID)
	}

	bestIdx := chooseSubtree(cfg, n.Entries, vector)
	childSelf, childSibling, err := insertInto(ctx, tx, ns, db, tb, ix, cfg, n.Entries[bestIdx].ChildRef, vector, recJSON, nextID)
	if err != nil {
		return entryWire{}, nil, err
	}
	n.Entries[bestIdx].CoveringRadius = childSelf.CoveringRadius
	if childSibling != nil {
		n.Entries = append(n.Entries, *childSibling)
	}
	return finishNode(ctx, tx, ns, db, tb, ix, cfg, nodeID, n, nextID)
}

// chooseSubtree picks the child entry requiring the least covering-radius
// increase to admit vector, preferring one that already contains it.
func chooseSubtree(cfg Config, entries []entryWire, vector []float64) int {
	best := -1
	bestContaining := false
	var bestMetric float64
	for i, e := range entries {
		d := cfg.dist(e.Center, vector)
		containing := d <= e.CoveringRadius
		var m float64
		if containing {
			m = d
		} else {
			m = d - e.CoveringRadius
		}
		if best == -1 {
			best, bestContaining, bestMetric = i, containing, m
			continue
		}
		if containing && !bestContaining {
			best, bestContaining, bestMetric = i, containing, m
			continue
		}
		if containing == bestContaining && m < bestMetric {
			best, bestContaining, bestMetric = i, containing, m
		}
	}
	return best
}

// finishNode writes nodeID's content back, splitting it via two-point
// promote if it now exceeds the configured branching factor.
func finishNode(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, cfg Config, nodeID uint64, n nodeWire, nextID *uint64) (entryWire, *entryWire, error) {
	if len(n.Entries) <= maxEntries(cfg) {
		if err := saveNode(ctx, tx, ns, db, tb, ix, nodeID, n); err != nil {
			return entryWire{}, nil, err
		}
		return coveringEntry(cfg, nodeID, n), nil, nil
	}

	left, right := twoPointSplit(cfg, n.Entries)
	leftNode := nodeWire{Leaf: n.Leaf, Entries: left}
	rightNode := nodeWire{Leaf: n.Leaf, Entries: right}

	rightID := *nextID
	*nextID++

	if err := saveNode(ctx, tx, ns, db, tb, ix, nodeID, leftNode); err != nil {
		return entryWire{}, nil, err
	}
	if err := saveNode(ctx, tx, ns, db, tb, ix, rightID, rightNode); err != nil {
		return entryWire{}, nil, err
	}

	leftEntry := coveringEntry(cfg, nodeID, leftNode)
	rightEntry := coveringEntry(cfg, rightID, rightNode)
	return leftEntry, &rightEntry, nil
}

// coveringEntry summarizes a node's content as the entry its parent (or
// the root wrapper) should hold: the first entry's center as the routing
// object, and a covering radius wide enough to contain every member.
func coveringEntry(cfg Config, nodeID uint64, n nodeWire) entryWire {
	center := n.Entries[0].Center
	var radius float64
	for _, e := range n.Entries {
		d := cfg.dist(center, e.Center) + e.CoveringRadius
		if d > radius {
			radius = d
		}
	}
	return entryWire{Center: center, CoveringRadius: radius, ChildRef: nodeID}
}

// twoPointSplit implements M-Tree's promote policy: the two entries
// farthest apart become the new seeds, and every other entry joins
// whichever seed it is closer to.
func twoPointSplit(cfg Config, entries []entryWire) ([]entryWire, []entryWire) {
	var seedA, seedB int
	var maxDist float64 = -1
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			d := cfg.dist(entries[i].Center, entries[j].Center)
			if d > maxDist {
				maxDist, seedA, seedB = d, i, j
			}
		}
	}

	var left, right []entryWire
	for i, e := range entries {
		if i == seedA {
			left = append(left, e)
			continue
		}
		if i == seedB {
			right = append(right, e)
			continue
		}
		if cfg.dist(entries[seedA].Center, e.Center) <= cfg.dist(entries[seedB].Center, e.Center) {
			left = append(left, e)
		} else {
			right = append(right, e)
		}
	}
	return left, right
}

// Hit is one KNN search result in increasing distance order.
type Hit struct {
	Record   value.RecordID
	Distance float64
}

type pendingRef struct {
	nodeID     uint64
	lowerBound float64
}

type pendingHeap []pendingRef

func (h pendingHeap) Len() int            { return len(h) }
func (h pendingHeap) Less(i, j int) bool  { return h[i].lowerBound < h[j].lowerBound }
func (h pendingHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x interface{}) { *h = append(*h, x.(pendingRef)) }
func (h *pendingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

type resultHit struct {
	rec      value.RecordID
	distance float64
}

type resultHeap []resultHit

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].distance > h[j].distance }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(resultHit)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Search performs best-first KNN search, pruning candidate subtrees whose
// lower-bound distance (center distance minus covering radius) already
// exceeds the current k-th best result, per the triangle inequality.
func Search(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, query []float64, k int) ([]Hit, error) {
	meta, ok, err := loadMeta(ctx, tx, ns, db, tb, ix)
	if err != nil || !ok {
		return nil, err
	}
	cfg := Config{Metric: meta.Metric, MinkowskiP: meta.MinkowskiP, MaxEntries: meta.MaxEntries}

	pending := &pendingHeap{{nodeID: meta.RootID, lowerBound: 0}}
	heap.Init(pending)
	results := &resultHeap{}

	for pending.Len() > 0 {
		ref := heap.Pop(pending).(pendingRef)
		if results.Len() >= k && ref.lowerBound > (*results)[0].distance {
			break
		}
		n, err := loadNode(ctx, tx, ns, db, tb, ix, ref.nodeID)
		if err != nil {
			return nil, err
		}
		if n.Leaf {
			for _, e := range n.Entries {
				if e.Deleted {
					continue
				}
				d := cfg.dist(query, e.Center)
				rv := value.FromJSON(e.RecordJSON)
				heap.Push(results, resultHit{rec: rv.AsRecordID(), distance: d})
				if results.Len() > k {
					heap.Pop(results)
				}
			}
			continue
		}
		for _, e := range n.Entries {
			d := cfg.dist(query, e.Center)
			lb := d - e.CoveringRadius
			if lb < 0 {
				lb = 0
			}
			if results.Len() >= k && lb > (*results)[0].distance {
				continue
			}
			heap.Push(pending, pendingRef{nodeID: e.ChildRef, lowerBound: lb})
		}
	}

	hits := make([]Hit, results.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		h := heap.Pop(results).(resultHit)
		hits[i] = Hit{Record: h.rec, Distance: h.distance}
	}
	return hits, nil
}
