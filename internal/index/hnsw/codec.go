package hnsw

import (
	"encoding/json"
	"fmt"

	"github.com/surrealcore/coredb/internal/index/metric"
)

type metaWire struct {
	EntryPoint   uint64      `json:"entry_point"`
	MaxLayer     int         `json:"max_layer"`
	ElementCount uint64      `json:"element_count"`
	Metric       metric.Kind `json:"metric"`
	MinkowskiP   float64     `json:"minkowski_p"`
	M            int         `json:"m"`
	Ef           int         `json:"ef"`
	EfConstruct  int         `json:"ef_construction"`
}

type docWire struct {
	RecordJSON string    `json:"record"`
	Vector     []float64 `json:"vector"`
	Deleted    bool      `json:"deleted,omitempty"`
}

func encodeMeta(m metaWire) []byte {
	b, _ := json.Marshal(m)
	return b
}

func decodeMeta(raw []byte) (metaWire, error) {
	var m metaWire
	if err := json.Unmarshal(raw, &m); err != nil {
		return metaWire{}, fmt.Errorf("hnsw: decode meta: %w", err)
	}
	return m, nil
}

func encodeDoc(d docWire) []byte {
	b, _ := json.Marshal(d)
	return b
}

func decodeDoc(raw []byte) (docWire, error) {
	var d docWire
	if err := json.Unmarshal(raw, &d); err != nil {
		return docWire{}, fmt.Errorf("hnsw: decode doc: %w", err)
	}
	return d, nil
}

func encodeNeighbors(ids []uint64) []byte {
	b, _ := json.Marshal(ids)
	return b
}

func decodeNeighbors(raw []byte) ([]uint64, error) {
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("hnsw: decode neighbors: %w", err)
	}
	return ids, nil
}
