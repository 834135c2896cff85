package doc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealcore/coredb/internal/catalog"
	"github.com/surrealcore/coredb/internal/changefeed"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/kv/memory"
	"github.com/surrealcore/coredb/internal/txn"
	"github.com/surrealcore/coredb/internal/value"
)

func setup(t *testing.T) (*txn.Store, *catalog.Catalog) {
	t.Helper()
	driver := memory.New()
	return txn.NewStore(driver), catalog.New(driver)
}

func TestCreateStoresRecord(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)

	tx, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)

	d := &Context{
		Namespace: "test", Database: "test", Table: "person",
		RecordID: value.RecordID{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "tobie"}},
		Mutation: MutationCreate,
		Content:  value.Object(map[string]value.Value{"name": value.Str("Tobie")}),
	}
	require.NoError(t, Run(ctx, tx, cat, d))
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, "Tobie", d.Final.Get("name").AsString())
}

func TestCreateOnExistingRecordFails(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)

	rid := value.RecordID{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "tobie"}}

	tx1, _ := store.Begin(ctx, kv.TxOptions{})
	d1 := &Context{Namespace: "test", Database: "test", Table: "person", RecordID: rid, Mutation: MutationCreate, Content: value.Object(map[string]value.Value{"name": value.Str("Tobie")})}
	require.NoError(t, Run(ctx, tx1, cat, d1))
	require.NoError(t, tx1.Commit(ctx))

	tx2, _ := store.Begin(ctx, kv.TxOptions{})
	d2 := &Context{Namespace: "test", Database: "test", Table: "person", RecordID: rid, Mutation: MutationCreate, Content: value.Object(map[string]value.Value{"name": value.Str("Jaime")})}
	err = Run(ctx, tx2, cat, d2)
	assert.Error(t, err)
}

func TestDeleteRemovesRecord(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)
	rid := value.RecordID{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "tobie"}}

	tx1, _ := store.Begin(ctx, kv.TxOptions{})
	d1 := &Context{Namespace: "test", Database: "test", Table: "person", RecordID: rid, Mutation: MutationCreate, Content: value.Object(map[string]value.Value{"name": value.Str("Tobie")})}
	require.NoError(t, Run(ctx, tx1, cat, d1))
	require.NoError(t, tx1.Commit(ctx))

	tx2, _ := store.Begin(ctx, kv.TxOptions{})
	d2 := &Context{Namespace: "test", Database: "test", Table: "person", RecordID: rid, Mutation: MutationDelete}
	require.NoError(t, Run(ctx, tx2, cat, d2))
	require.NoError(t, tx2.Commit(ctx))

	tx3, _ := store.Begin(ctx, kv.TxOptions{ReadOnly: true})
	d3 := &Context{Namespace: "test", Database: "test", Table: "person", RecordID: rid, Mutation: MutationUpdate, Content: value.EmptyObject()}
	_ = loadInitial(ctx, tx3, cat, d3)
	assert.True(t, d3.Before.IsNone())
}

func TestIndexStageMaintainsStandardIndex(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)
	require.NoError(t, cat.DefineIndex(ctx, catalog.IndexDef{
		Namespace: "test", Database: "test", Table: "person",
		Name: "idx_name", Kind: catalog.IndexUnique, Fields: []string{"name"},
	}))

	tx, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	d := &Context{
		Namespace: "test", Database: "test", Table: "person",
		RecordID: value.RecordID{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "tobie"}},
		Mutation: MutationCreate,
		Content:  value.Object(map[string]value.Value{"name": value.Str("Tobie")}),
	}
	require.NoError(t, Run(ctx, tx, cat, d))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	d2 := &Context{
		Namespace: "test", Database: "test", Table: "person",
		RecordID: value.RecordID{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "jaime"}},
		Mutation: MutationCreate,
		Content:  value.Object(map[string]value.Value{"name": value.Str("Tobie")}),
	}
	err = Run(ctx, tx2, cat, d2)
	assert.Error(t, err, "unique index must reject a second record with the same name")
}

func TestEventBufferedForMatchingMutation(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)
	require.NoError(t, cat.DefineEvent(ctx, catalog.EventDef{Namespace: "test", Database: "test", Table: "person", Name: "on_create", When: catalog.EventCreate}))

	tx, _ := store.Begin(ctx, kv.TxOptions{})
	rid := value.RecordID{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "tobie"}}
	d := &Context{Namespace: "test", Database: "test", Table: "person", RecordID: rid, Mutation: MutationCreate, Content: value.EmptyObject()}
	require.NoError(t, Run(ctx, tx, cat, d))
	require.Len(t, d.PendingEvents, 1)
	assert.Equal(t, "on_create", d.PendingEvents[0].Name)
}

func TestChangefeedsStageWritesMutationEntry(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)

	tx, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	rid := value.RecordID{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "tobie"}}
	d := &Context{
		Namespace: "test", Database: "test", Table: "person",
		RecordID: rid, Mutation: MutationCreate,
		Content: value.Object(map[string]value.Value{"name": value.Str("Tobie")}),
	}
	require.NoError(t, Run(ctx, tx, cat, d))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := store.Begin(ctx, kv.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	entries, err := changefeed.ReadSince(ctx, tx2.Raw(), "test", "test", "person", value.Versionstamp{}, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Mutations, 1)
	assert.Equal(t, changefeed.MutationCreate, entries[0].Mutations[0].Kind)
	assert.Equal(t, rid.String(), entries[0].Mutations[0].RecordID)
}

func TestLivesStageProducesNotificationForMatchingQuery(t *testing.T) {
	ctx := context.Background()
	store, cat := setup(t)
	_, err := cat.DefineTable(ctx, "test", "test", "person", catalog.TableNormal, catalog.Schemaless)
	require.NoError(t, err)

	var liveID [16]byte
	liveID[0] = 1
	def := changefeed.Def{ID: liveID, Node: "node1", Namespace: "test", Database: "test", Table: "person"}

	tx0, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, changefeed.Register(ctx, tx0.Raw(), def))
	require.NoError(t, tx0.Commit(ctx))

	tx, err := store.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	rid := value.RecordID{Table: "person", Key: value.RecordIDKey{Kind: value.RecordIDKeyString, Str: "tobie"}}
	alwaysMatch := func(value.Value) bool { return true }
	d := &Context{
		Namespace: "test", Database: "test", Table: "person",
		RecordID:     rid,
		Mutation:     MutationCreate,
		Content:      value.Object(map[string]value.Value{"name": value.Str("Tobie")}),
		LiveMatchers: map[[16]byte]changefeed.Matcher{liveID: alwaysMatch},
	}
	require.NoError(t, Run(ctx, tx, cat, d))
	require.NoError(t, tx.Commit(ctx))

	require.Len(t, d.Notifications, 1)
	assert.Equal(t, changefeed.NotificationCreate, d.Notifications[0].Kind)
	assert.Equal(t, liveID, d.Notifications[0].LiveID)
}
