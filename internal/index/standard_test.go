package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/kv/memory"
	"github.com/surrealcore/coredb/internal/value"
)

func recordID(tb, key string) value.RecordID {
	return value.RecordID{Table: tb, Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: key}}
}

func TestMaintainWritesAndLookupFinds(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)

	after := value.Object(map[string]value.Value{"name": value.Str("Tobie")})
	rec := recordID("person", "tobie")
	require.NoError(t, Maintain(ctx, tx, "test", "test", "person", "idx_name", []string{"name"}, false, value.None(), after, rec))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	got, err := Lookup(ctx, tx2, "test", "test", "person", "idx_name", []value.Value{value.Str("Tobie")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func TestMaintainDistinctValuesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)

	rec1 := recordID("person", "tobie")
	rec2 := recordID("person", "jaime")
	after1 := value.Object(map[string]value.Value{"name": value.Str("Tobie")})
	after2 := value.Object(map[string]value.Value{"name": value.Str("Tobie2")})
	require.NoError(t, Maintain(ctx, tx, "test", "test", "person", "idx_name", []string{"name"}, false, value.None(), after1, rec1))
	require.NoError(t, Maintain(ctx, tx, "test", "test", "person", "idx_name", []string{"name"}, false, value.None(), after2, rec2))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	got, err := Lookup(ctx, tx2, "test", "test", "person", "idx_name", []value.Value{value.Str("Tobie")})
	require.NoError(t, err)
	require.Len(t, got, 1, "lookup of %q must not match the entry for %q", "Tobie", "Tobie2")
	assert.Equal(t, rec1, got[0])
}

func TestMaintainUniqueConstraintRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)

	after := value.Object(map[string]value.Value{"email": value.Str("tobie@surrealdb.com")})
	require.NoError(t, Maintain(ctx, tx, "test", "test", "person", "idx_email", []string{"email"}, true, value.None(), after, recordID("person", "tobie")))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	err = Maintain(ctx, tx2, "test", "test", "person", "idx_email", []string{"email"}, true, value.None(), after, recordID("person", "jaime"))
	assert.Error(t, err)
}

func TestMaintainRemovesStaleEntryOnUpdate(t *testing.T) {
	ctx := context.Background()
	drv := memory.New()
	rec := recordID("person", "tobie")

	tx, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	before := value.Object(map[string]value.Value{"name": value.Str("Tobie")})
	require.NoError(t, Maintain(ctx, tx, "test", "test", "person", "idx_name", []string{"name"}, false, value.None(), before, rec))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	after := value.Object(map[string]value.Value{"name": value.Str("Tobias")})
	require.NoError(t, Maintain(ctx, tx2, "test", "test", "person", "idx_name", []string{"name"}, false, before, after, rec))
	require.NoError(t, tx2.Commit(ctx))

	tx3, err := drv.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	got, err := Lookup(ctx, tx3, "test", "test", "person", "idx_name", []value.Value{value.Str("Tobie")})
	require.NoError(t, err)
	assert.Len(t, got, 0)
}
