package plan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealcore/coredb/internal/catalog"
	"github.com/surrealcore/coredb/internal/doc"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/plan"
	"github.com/surrealcore/coredb/internal/query"
	"github.com/surrealcore/coredb/internal/value"
)

func TestMutateCreateWithExplicitIDPersistsThroughDocProcessor(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)

	ec := &plan.ExecContext{Namespace: "test", Database: "test", Catalog: cat, Store: store}
	begin := &plan.BeginPlan{}
	bs, err := begin.Execute(ctx, ec)
	require.NoError(t, err)
	drainAll(t, ctx, bs)
	ec = begin.OutputContext(ec)

	m := &plan.Mutate{
		Table:    "person",
		Mutation: doc.MutationCreate,
		Targets: []value.RecordID{
			{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "tobie"}},
		},
		Content: value.Object(map[string]value.Value{"name": value.Str("tobie")}),
	}
	ms, err := m.Execute(ctx, ec)
	require.NoError(t, err)
	created := drainAll(t, ctx, ms)
	require.Len(t, created, 1)
	assert.Equal(t, value.Str("tobie"), created[0].Get("name"))

	commit := &plan.CommitPlan{}
	cs, err := commit.Execute(ctx, ec)
	require.NoError(t, err)
	drainAll(t, ctx, cs)

	tx2, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	ec2 := &plan.ExecContext{Namespace: "test", Database: "test", Catalog: cat, Store: store, Tx: tx2}
	scan := &plan.TableScan{Table: "person"}
	ss, err := scan.Execute(ctx, ec2)
	require.NoError(t, err)
	values := drainAll(t, ctx, ss)
	require.Len(t, values, 1)
	assert.Equal(t, value.Str("tobie"), values[0].Get("name"))
}

func TestMutateCreateDuplicateIDFails(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)
	createPerson(t, store, cat, "tobie", 30)

	tx, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	ec := &plan.ExecContext{Namespace: "test", Database: "test", Catalog: cat, Store: store, Tx: tx}
	m := &plan.Mutate{
		Table:    "person",
		Mutation: doc.MutationCreate,
		Targets: []value.RecordID{
			{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "tobie"}},
		},
		Content: value.Object(map[string]value.Value{"name": value.Str("tobie")}),
	}
	_, err = m.Execute(ctx, ec)
	require.Error(t, err)
}

func TestMutateUpdateWhereMatchesResolvesTargetsFromScan(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)
	createPerson(t, store, cat, "tobie", 30)
	createPerson(t, store, cat, "jaime", 31)

	tx, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	ec := &plan.ExecContext{Namespace: "test", Database: "test", Catalog: cat, Store: store, Tx: tx}

	match, err := query.Compile("name = jaime", time.Now())
	require.NoError(t, err)

	m := &plan.Mutate{
		Table:    "person",
		Mutation: doc.MutationUpdate,
		Match:    match,
		Content:  value.Object(map[string]value.Value{"age": value.Num(value.NewInt(32))}),
	}
	ms, err := m.Execute(ctx, ec)
	require.NoError(t, err)
	updated := drainAll(t, ctx, ms)
	require.Len(t, updated, 1)
	assert.Equal(t, value.Str("jaime"), updated[0].Get("name"))
	assert.Equal(t, value.NewInt(32), updated[0].Get("age").AsNumber())
	require.NoError(t, tx.Commit(ctx))

	tx2, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	ec2 := &plan.ExecContext{Namespace: "test", Database: "test", Catalog: cat, Store: store, Tx: tx2}
	scan := &plan.TableScan{Table: "person"}
	ss, err := scan.Execute(ctx, ec2)
	require.NoError(t, err)
	values := drainAll(t, ctx, ss)
	require.Len(t, values, 2)
	var jaime value.Value
	for _, v := range values {
		if value.Equal(v.Get("name"), value.Str("jaime")) {
			jaime = v
		}
	}
	assert.Equal(t, value.NewInt(32), jaime.Get("age").AsNumber())
}

func TestMutateDeleteWhereMatchesRemovesOnlyMatchingRecords(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)
	createPerson(t, store, cat, "tobie", 30)
	createPerson(t, store, cat, "jaime", 31)

	tx, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	ec := &plan.ExecContext{Namespace: "test", Database: "test", Catalog: cat, Store: store, Tx: tx}

	match, err := query.Compile("name = tobie", time.Now())
	require.NoError(t, err)

	m := &plan.Mutate{
		Table:    "person",
		Mutation: doc.MutationDelete,
		Match:    match,
	}
	ms, err := m.Execute(ctx, ec)
	require.NoError(t, err)
	drainAll(t, ctx, ms)
	require.NoError(t, tx.Commit(ctx))

	tx2, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	ec2 := &plan.ExecContext{Namespace: "test", Database: "test", Catalog: cat, Store: store, Tx: tx2}
	scan := &plan.TableScan{Table: "person"}
	ss, err := scan.Execute(ctx, ec2)
	require.NoError(t, err)
	values := drainAll(t, ctx, ss)
	require.Len(t, values, 1)
	assert.Equal(t, value.Str("jaime"), values[0].Get("name"))
}

func TestMutateDeleteNonexistentRecordIsIgnoredNotErrored(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)

	tx, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	ec := &plan.ExecContext{Namespace: "test", Database: "test", Catalog: cat, Store: store, Tx: tx}

	m := &plan.Mutate{
		Table:    "person",
		Mutation: doc.MutationDelete,
		Targets: []value.RecordID{
			{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "ghost"}},
		},
	}
	ms, err := m.Execute(ctx, ec)
	require.NoError(t, err)
	assert.Empty(t, drainAll(t, ctx, ms))
}
