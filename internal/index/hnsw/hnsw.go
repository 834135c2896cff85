// Package hnsw implements the HNSW KNN vector index (C7): a layered
// proximity graph with per-(layer,element) edge lists persisted through
// C3 at keycodec.HNSWNode, built by greedy entry-point descent plus
// beam-search construction, and searched by the same descent followed by
// a final beam search at layer 0, as described by spec.md 4.7.
package hnsw

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/surrealcore/coredb/internal/index/metric"
	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/value"
)

// Remove tombstones rec's element rather than unlinking it from every
// neighbor's adjacency list at every layer: pruning a graph node out of
// HNSW while keeping the remaining graph connected is its own algorithm
// (typically reconnecting each orphaned neighbor pair), so instead the
// element is marked Deleted and excluded from Search results while
// greedy descent still traverses through it. Called by the document
// processor's "index" stage on a record delete for an HNSW-indexed
// field.
func Remove(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, rec value.RecordID) error {
	meta, ok, err := loadMeta(ctx, tx, ns, db, tb, ix)
	if err != nil || !ok {
		return err
	}
	target := rec.String()
	for id := uint64(0); id < meta.ElementCount; id++ {
		d, err := loadDoc(ctx, tx, ns, db, tb, ix, id)
		if err != nil {
			return fmt.Errorf("hnsw: remove: load doc %d: %w", id, err)
		}
		if d.Deleted || value.FromJSON(d.RecordJSON).AsRecordID().String() != target {
			continue
		}
		d.Deleted = true
		if err := saveDoc(ctx, tx, ns, db, tb, ix, id, d); err != nil {
			return fmt.Errorf("hnsw: remove: save doc %d: %w", id, err)
		}
		return nil
	}
	return nil
}

// Config names the index-wide parameters fixed when DEFINE INDEX created
// the HNSW index: M is the target number of bidirectional connections per
// element per layer, EfConstruction the beam width used while building,
// and Ef the default beam width used while searching.
type Config struct {
	Metric         metric.Kind
	MinkowskiP     float64
	M              int
	EfConstruction int
	Ef             int
}

func defaults(cfg Config) Config {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.Ef <= 0 {
		cfg.Ef = 50
	}
	return cfg
}

func (c Config) dist(a, b []float64) float64 {
	return metric.Distance(c.Metric, c.MinkowskiP, a, b)
}

func loadMeta(ctx context.Context, tx kv.Tx, ns, db, tb, ix string) (metaWire, bool, error) {
	raw, err := tx.Get(ctx, keycodec.HNSWMeta(ns, db, tb, ix).Bytes())
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
	return tx.Set(ctx, keycodec.HNSWMeta(ns, db, tb, ix).Bytes(), encodeMeta(m))
}

func loadDoc(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, id uint64) (docWire, error) {
	raw, err := tx.Get(ctx, keycodec.HNSWDocMap(ns, db, tb, ix, id).Bytes())
	if err != nil {
		return docWire{}, fmt.Errorf("hnsw: load doc %d: %w", id, err)
	}
	return decodeDoc(raw)
}

func saveDoc(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, id uint64, d docWire) error {
	return tx.Set(ctx, keycodec.HNSWDocMap(ns, db, tb, ix, id).Bytes(), encodeDoc(d))
}

func loadNeighbors(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, layer int, id uint64) ([]uint64, error) {
	raw, err := tx.Get(ctx, keycodec.HNSWNode(ns, db, tb, ix, layer, id).Bytes())
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeNeighbors(raw)
}

func saveNeighbors(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, layer int, id uint64, ids []uint64) error {
	return tx.Set(ctx, keycodec.HNSWNode(ns, db, tb, ix, layer, id).Bytes(), encodeNeighbors(ids))
}

func randomLevel(m int) int {
	mL := 1 / math.Log(float64(m))
	u := rand.Float64()
	for u == 0 {
		u = rand.Float64()
	}
	return int(math.Floor(-math.Log(u) * mL))
}

// Insert adds one vector into the index, called by the document processor
// pipeline's "index" stage for a record whose HNSW-indexed field was set
// or changed.
func Insert(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, cfg Config, vector []float64, rec value.RecordID) error {
	cfg = defaults(cfg)
	recJSON, err := value.ToJSON(value.Record(rec))
	if err != nil {
		return err
	}

	meta, ok, err := loadMeta(ctx, tx, ns, db, tb, ix)
	if err != nil {
		return err
	}
	if !ok {
		if err := saveDoc(ctx, tx, ns, db, tb, ix, 0, docWire{RecordJSON: recJSON, Vector: vector}); err != nil {
			return err
		}
		if err := saveNeighbors(ctx, tx, ns, db, tb, ix, 0, 0, nil); err != nil {
			return err
		}
		return saveMeta(ctx, tx, ns, db, tb, ix, metaWire{
			EntryPoint: 0, MaxLayer: 0, ElementCount: 1,
			Metric: cfg.Metric, MinkowskiP: cfg.MinkowskiP,
			M: cfg.M, Ef: cfg.Ef, EfConstruct: cfg.EfConstruction,
		})
	}

	elementID := meta.ElementCount
	meta.ElementCount++
	if err := saveDoc(ctx, tx, ns, db, tb, ix, elementID, docWire{RecordJSON: recJSON, Vector: vector}); err != nil {
		return err
	}

	level := randomLevel(cfg.M)

	curr := meta.EntryPoint
	currVec, err := loadDoc(ctx, tx, ns, db, tb, ix, curr)
	if err != nil {
		return err
	}
	currDist := cfg.dist(vector, currVec.Vector)

	for layer := meta.MaxLayer; layer > level; layer-- {
		curr, currDist, err = greedyDescend(ctx, tx, cfg, ns, db, tb, ix, layer, curr, currDist, vector)
		if err != nil {
			return err
		}
	}

	top := level
	if meta.MaxLayer < top {
		top = meta.MaxLayer
	}
	for layer := top; layer >= 0; layer-- {
		candidates, err := beamSearchLayer(ctx, tx, cfg, ns, db, tb, ix, layer, curr, vector, cfg.EfConstruction)
		if err != nil {
			return err
		}
		neighbors := selectNeighbors(candidates, cfg.M)
		ids := make([]uint64, len(neighbors))
		for i, c := range neighbors {
			ids[i] = c.id
		}
		if err := saveNeighbors(ctx, tx, ns, db, tb, ix, layer, elementID, ids); err != nil {
			return err
		}
		for _, n := range neighbors {
			if err := addBackEdge(ctx, tx, cfg, ns, db, tb, ix, layer, n.id, elementID); err != nil {
				return err
			}
		}
		if len(neighbors) > 0 {
			curr = neighbors[0].id
		}
	}

	if level > meta.MaxLayer {
		for layer := meta.MaxLayer + 1; layer <= level; layer++ {
			if err := saveNeighbors(ctx, tx, ns, db, tb, ix, layer, elementID, nil); err != nil {
				return err
			}
		}
		meta.MaxLayer = level
		meta.EntryPoint = elementID
	}
	return saveMeta(ctx, tx, ns, db, tb, ix, meta)
}

// addBackEdge adds elementID to neighborID's adjacency list at layer,
// trimming back to M entries by keeping the M closest to neighborID's own
// vector — the same connectivity-pruning heuristic the forward insert
// uses, applied symmetrically so back edges don't grow unbounded.
func addBackEdge(ctx context.Context, tx kv.Tx, cfg Config, ns, db, tb, ix string, layer int, neighborID, elementID uint64) error {
	ids, err := loadNeighbors(ctx, tx, ns, db, tb, ix, layer, neighborID)
	if err != nil {
		return err
	}
	ids = append(ids, elementID)
	if len(ids) <= cfg.M {
		return saveNeighbors(ctx, tx, ns, db, tb, ix, layer, neighborID, ids)
	}

	selfDoc, err := loadDoc(ctx, tx, ns, db, tb, ix, neighborID)
	if err != nil {
		return err
	}
	type scored struct {
		id   uint64
		dist float64
	}
	scoredIDs := make([]scored, 0, len(ids))
	for _, id := range ids {
		d, err := loadDoc(ctx, tx, ns, db, tb, ix, id)
		if err != nil {
			return err
		}
		scoredIDs = append(scoredIDs, scored{id: id, dist: cfg.dist(selfDoc.Vector, d.Vector)})
	}
	sort.Slice(scoredIDs, func(i, j int) bool { return scoredIDs[i].dist < scoredIDs[j].dist })
	trimmed := make([]uint64, cfg.M)
	for i := 0; i < cfg.M; i++ {
		trimmed[i] = scoredIDs[i].id
	}
	return saveNeighbors(ctx, tx, ns, db, tb, ix, layer, neighborID, trimmed)
}

func greedyDescend(ctx context.Context, tx kv.Tx, cfg Config, ns, db, tb, ix string, layer int, curr uint64, currDist float64, query []float64) (uint64, float64, error) {
	for {
		neighbors, err := loadNeighbors(ctx, tx, ns, db, tb, ix, layer, curr)
		if err != nil {
			return 0, 0, err
		}
		improved := false
		for _, n := range neighbors {
			d, err := loadDoc(ctx, tx, ns, db, tb, ix, n)
			if err != nil {
				return 0, 0, err
			}
			dist := cfg.dist(query, d.Vector)
			if dist < currDist {
				curr, currDist, improved = n, dist, true
			}
		}
		if !improved {
			return curr, currDist, nil
		}
	}
}

type candidate struct {
	id   uint64
	dist float64
}

type minCandHeap []candidate

func (h minCandHeap) Len() int            { return len(h) }
func (h minCandHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minCandHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minCandHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minCandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

type maxCandHeap []candidate

func (h maxCandHeap) Len() int            { return len(h) }
func (h maxCandHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxCandHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxCandHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxCandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// beamSearchLayer is the standard HNSW layer search: expand from entry,
// tracking up to ef best candidates found so far, until the candidate
// frontier can no longer improve on the worst kept result.
func beamSearchLayer(ctx context.Context, tx kv.Tx, cfg Config, ns, db, tb, ix string, layer int, entry uint64, query []float64, ef int) ([]candidate, error) {
	entryDoc, err := loadDoc(ctx, tx, ns, db, tb, ix, entry)
	if err != nil {
		return nil, err
	}
	entryDist := cfg.dist(query, entryDoc.Vector)

	visited := map[uint64]bool{entry: true}
	candidates := &minCandHeap{{id: entry, dist: entryDist}}
	results := &maxCandHeap{{id: entry, dist: entryDist}}
	heap.Init(candidates)
	heap.Init(results)

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candidate)
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}
		neighbors, err := loadNeighbors(ctx, tx, ns, db, tb, ix, layer, c.id)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			d, err := loadDoc(ctx, tx, ns, db, tb, ix, n)
			if err != nil {
				return nil, err
			}
			dist := cfg.dist(query, d.Vector)
			if results.Len() < ef || dist < (*results)[0].dist {
				heap.Push(candidates, candidate{id: n, dist: dist})
				heap.Push(results, candidate{id: n, dist: dist})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out, nil
}

// selectNeighbors implements the simple (non-heuristic) neighbor
// selection variant: the M closest candidates by distance. The full
// diversity-aware heuristic from the HNSW paper is not implemented.
func selectNeighbors(candidates []candidate, m int) []candidate {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	return candidates
}

// Hit is one KNN search result in increasing distance order.
type Hit struct {
	Record   value.RecordID
	Distance float64
}

// Search performs approximate KNN search: greedy descent from the entry
// point through the upper layers, then a beam search at layer 0 with
// width max(ef,k), returning the k closest elements found.
func Search(ctx context.Context, tx kv.Tx, ns, db, tb, ix string, query []float64, k int) ([]Hit, error) {
	meta, ok, err := loadMeta(ctx, tx, ns, db, tb, ix)
	if err != nil || !ok {
		return nil, err
	}
	cfg := defaults(Config{Metric: meta.Metric, MinkowskiP: meta.MinkowskiP, M: meta.M, EfConstruction: meta.EfConstruct, Ef: meta.Ef})

	curr := meta.EntryPoint
	currDoc, err := loadDoc(ctx, tx, ns, db, tb, ix, curr)
	if err != nil {
		return nil, err
	}
	currDist := cfg.dist(query, currDoc.Vector)

	for layer := meta.MaxLayer; layer > 0; layer-- {
		curr, currDist, err = greedyDescend(ctx, tx, cfg, ns, db, tb, ix, layer, curr, currDist, query)
		if err != nil {
			return nil, err
		}
	}

	ef := cfg.Ef
	if ef < k {
		ef = k
	}
	candidates, err := beamSearchLayer(ctx, tx, cfg, ns, db, tb, ix, 0, curr, query, ef)
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	hits := make([]Hit, 0, k)
	for _, c := range candidates {
		if len(hits) >= k {
			break
		}
		d, err := loadDoc(ctx, tx, ns, db, tb, ix, c.id)
		if err != nil {
			return nil, err
		}
		if d.Deleted {
			continue
		}
		rv := value.FromJSON(d.RecordJSON)
		hits = append(hits, Hit{Record: rv.AsRecordID(), Distance: c.dist})
	}
	return hits, nil
}
