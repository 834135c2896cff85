package plan_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealcore/coredb/internal/catalog"
	"github.com/surrealcore/coredb/internal/index"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/plan"
	"github.com/surrealcore/coredb/internal/value"
)

func TestRebuildIndexConcurrentlyPopulatesEntriesForEveryRecord(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)
	createPerson(t, store, cat, "tobie", 30)
	createPerson(t, store, cat, "jaime", 31)
	createPerson(t, store, cat, "matt", 32)

	tx, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, plan.RebuildIndexConcurrently(ctx, tx.Raw(), "test", "test", "person", "name_idx", []string{"name"}, false, 2))
	require.NoError(t, tx.Commit(ctx))

	roTx, err := store.Begin(ctx, kv.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	ids, err := index.Lookup(ctx, roTx.Raw(), "test", "test", "person", "name_idx", nil)
	require.NoError(t, err)
	assert.Empty(t, ids) // exact-match lookup with no projection matches nothing

	found := 0
	for _, name := range []string{"tobie", "jaime", "matt"} {
		hits, err := index.Lookup(ctx, roTx.Raw(), "test", "test", "person", "name_idx", []value.Value{value.Str(name)})
		require.NoError(t, err)
		found += len(hits)
	}
	assert.Equal(t, 3, found)
}
