package mtree

import (
	"encoding/json"
	"fmt"

	"github.com/surrealcore/coredb/internal/index/metric"
)

// entryWire is one routing object or leaf object inside a node: center
// vector, covering radius (meaningful only on internal entries), the
// child node this entry routes to (0 for leaf entries), and the distance
// from this entry's center back to its parent's center (cached to avoid
// recomputation during split promotion).
type entryWire struct {
	Center           []float64 `json:"center"`
	CoveringRadius   float64   `json:"covering_radius"`
	ChildRef         uint64    `json:"child_ref,omitempty"`
	DistanceToParent float64   `json:"distance_to_parent"`
	RecordJSON       string    `json:"record,omitempty"`
	Deleted          bool      `json:"deleted,omitempty"`
}

type nodeWire struct {
	Leaf    bool        `json:"leaf"`
	Entries []entryWire `json:"entries"`
}

type metaWire struct {
	RootID     uint64      `json:"root_id"`
	NextNodeID uint64      `json:"next_node_id"`
	Metric     metric.Kind `json:"metric"`
	MinkowskiP float64     `json:"minkowski_p"`
	MaxEntries int         `json:"max_entries"`
}

func encodeNode(n nodeWire) []byte {
	b, _ := json.Marshal(n)
	return b
}

func decodeNode(raw []byte) (nodeWire, error) {
	var n nodeWire
	if err := json.Unmarshal(raw, &n); err != nil {
		return nodeWire{}, fmt.Errorf("mtree: decode node: %w", err)
	}
	return n, nil
}

func encodeMeta(m metaWire) []byte {
	b, _ := json.Marshal(m)
	return b
}

func decodeMeta(raw []byte) (metaWire, error) {
	var m metaWire
	if err := json.Unmarshal(raw, &m); err != nil {
		return metaWire{}, fmt.Errorf("mtree: decode meta: %w", err)
	}
	return m, nil
}
