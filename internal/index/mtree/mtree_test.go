package mtree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealcore/coredb/internal/index/metric"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/kv/memory"
	"github.com/surrealcore/coredb/internal/value"
)

func rec(tb, key string) value.RecordID {
	return value.RecordID{Table: tb, Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: key}}
}

func TestInsertSingleVectorThenSearchReturnsItself(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	cfg := Config{Metric: metric.Euclidean, MaxEntries: 4}
	r := rec("doc", "1")
	require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, []float64{1, 2, 3}, r))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "doc", "vec_idx", []float64{1, 2, 3}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, r, hits[0].Record)
	assert.Equal(t, 0.0, hits[0].Distance)
}

func TestSearchReturnsNearestOfMany(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	cfg := Config{Metric: metric.Euclidean, MaxEntries: 2}

	vectors := map[string][]float64{
		"near": {1, 1},
		"mid":  {5, 5},
		"far":  {100, 100},
	}
	for key, v := range vectors {
		require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, v, rec("doc", key)))
	}
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "doc", "vec_idx", []float64{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rec("doc", "near"), hits[0].Record)
}

func TestRemoveExcludesEntryFromSearch(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	cfg := Config{Metric: metric.Euclidean, MaxEntries: 4}

	near := rec("doc", "near")
	require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, []float64{1, 1}, near))
	require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, []float64{5, 5}, rec("doc", "mid")))
	require.NoError(t, Remove(ctx, tx, "test", "test", "doc", "vec_idx", near))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "doc", "vec_idx", []float64{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rec("doc", "mid"), hits[0].Record)
}

func TestSearchTopKOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	cfg := Config{Metric: metric.Euclidean, MaxEntries: 2}

	for i := 0; i < 8; i++ {
		v := []float64{float64(i), float64(i)}
		require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, v, rec("doc", string(rune('a'+i)))))
	}
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "doc", "vec_idx", []float64{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
	assert.Equal(t, rec("doc", "a"), hits[0].Record)
}
