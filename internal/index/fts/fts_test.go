package fts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/kv/memory"
	"github.com/surrealcore/coredb/internal/value"
)

func record(tb, key string) value.RecordID {
	return value.RecordID{Table: tb, Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: key}}
}

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("Hello, World!"))
}

func TestSearchFindsMatchingDocument(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)

	doc := value.Object(map[string]value.Value{"title": value.Str("Hello World!")})
	rec := record("blog", "1")
	require.NoError(t, Maintain(ctx, tx, "test", "test", "blog", "blog_title", []string{"title"}, value.None(), doc, rec))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "blog", "blog_title", DefaultParams(), "hello", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rec, hits[0].Record)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestSearchExcludesRetractedDocument(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	rec := record("blog", "1")

	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	before := value.Object(map[string]value.Value{"title": value.Str("Hello World!")})
	require.NoError(t, Maintain(ctx, tx, "test", "test", "blog", "blog_title", []string{"title"}, value.None(), before, rec))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, Maintain(ctx, tx2, "test", "test", "blog", "blog_title", []string{"title"}, before, value.None(), rec))
	require.NoError(t, tx2.Commit(ctx))

	tx3, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx3, "test", "test", "blog", "blog_title", DefaultParams(), "hello", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 0)
}

func TestSearchRanksHigherFrequencyFirst(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)

	doc1 := value.Object(map[string]value.Value{"title": value.Str("go go go programming")})
	doc2 := value.Object(map[string]value.Value{"title": value.Str("go programming is fun and rewarding")})
	require.NoError(t, Maintain(ctx, tx, "test", "test", "blog", "blog_title", []string{"title"}, value.None(), doc1, record("blog", "1")))
	require.NoError(t, Maintain(ctx, tx, "test", "test", "blog", "blog_title", []string{"title"}, value.None(), doc2, record("blog", "2")))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	hits, err := Search(ctx, tx2, "test", "test", "blog", "blog_title", DefaultParams(), "go", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, record("blog", "1"), hits[0].Record)
}
