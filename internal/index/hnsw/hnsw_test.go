package hnsw

import (
	"context"
	"fmt"
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

func TestInsertSingleElementSearchReturnsItself(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	cfg := Config{Metric: metric.Euclidean, M: 8, EfConstruction: 32, Ef: 16}
	r := rec("doc", "1")
	require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, []float64{1, 2}, r))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "doc", "vec_idx", []float64{1, 2}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, r, hits[0].Record)
	assert.Equal(t, 0.0, hits[0].Distance)
}

func TestSearchFindsNearestAmongClusteredPoints(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	cfg := Config{Metric: metric.Euclidean, M: 8, EfConstruction: 64, Ef: 32}

	for i := 0; i < 20; i++ {
		v := []float64{float64(i) * 10, float64(i) * 10}
		require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, v, rec("doc", fmt.Sprintf("p%d", i))))
	}
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "doc", "vec_idx", []float64{51, 51}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rec("doc", "p5"), hits[0].Record)
}

func TestRemoveExcludesElementFromSearch(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	cfg := Config{Metric: metric.Euclidean, M: 8, EfConstruction: 32, Ef: 16}

	near := rec("doc", "near")
	require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, []float64{1, 1}, near))
	require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, []float64{50, 50}, rec("doc", "far")))
	require.NoError(t, Remove(ctx, tx, "test", "test", "doc", "vec_idx", near))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "doc", "vec_idx", []float64{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rec("doc", "far"), hits[0].Record)
}

func TestSearchTopKSortedByDistance(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	cfg := Config{Metric: metric.Euclidean, M: 8, EfConstruction: 64, Ef: 32}

	for i := 0; i < 10; i++ {
		v := []float64{float64(i), float64(i)}
		require.NoError(t, Insert(ctx, tx, "test", "test", "doc", "vec_idx", cfg, v, rec("doc", fmt.Sprintf("p%d", i))))
	}
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "doc", "vec_idx", []float64{0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 5)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
}
