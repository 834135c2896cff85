package cluster_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealcore/coredb/internal/changefeed"
	"github.com/surrealcore/coredb/internal/cluster"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/kv/memory"
)

func TestHeartbeatThenLiveReportsNode(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	m := cluster.NewMembership(driver, time.Minute)

	now := time.Now()
	require.NoError(t, m.Heartbeat(ctx, cluster.Node{ID: "n1", Address: "10.0.0.1:8000", Tags: []string{"index"}}, now))

	live, err := m.Live(ctx, now.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "n1", live[0].ID)
}

func TestExpiredReportsNodeAfterTTL(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	m := cluster.NewMembership(driver, time.Minute)

	now := time.Now()
	require.NoError(t, m.Heartbeat(ctx, cluster.Node{ID: "n1"}, now))

	expired, err := m.Expired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "n1", expired[0].ID)

	live, err := m.Live(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, live, 0)
}

func TestLaterHeartbeatSupersedesEarlierOne(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	m := cluster.NewMembership(driver, time.Minute)

	now := time.Now()
	require.NoError(t, m.Heartbeat(ctx, cluster.Node{ID: "n1", Tags: []string{"v1"}}, now))
	require.NoError(t, m.Heartbeat(ctx, cluster.Node{ID: "n1", Tags: []string{"v2"}}, now.Add(time.Second)))

	live, err := m.Live(ctx, now.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, []string{"v2"}, live[0].Tags)
}

func TestGCRemovesOldEntriesButKeepsLatest(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	m := cluster.NewMembership(driver, time.Minute)

	now := time.Now()
	require.NoError(t, m.Heartbeat(ctx, cluster.Node{ID: "n1"}, now))
	require.NoError(t, m.Heartbeat(ctx, cluster.Node{ID: "n1"}, now.Add(time.Hour)))

	require.NoError(t, m.GC(ctx, now.Add(30*time.Minute)))

	live, err := m.Live(ctx, now.Add(time.Hour+time.Second))
	require.NoError(t, err)
	require.Len(t, live, 1)
}

func TestReapExpiredArchivesLiveQueries(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	m := cluster.NewMembership(driver, time.Minute)

	now := time.Now()
	require.NoError(t, m.Heartbeat(ctx, cluster.Node{ID: "n1"}, now))

	tx, err := driver.Begin(ctx, kv.TxOptions{})
	require.NoError(t, err)
	var lqID [16]byte
	lqID[0] = 9
	require.NoError(t, changefeed.Register(ctx, tx, changefeed.Def{ID: lqID, Node: "n1", Namespace: "test", Database: "test", Table: "person"}))
	require.NoError(t, tx.Commit(ctx))

	require.NoError(t, m.ReapExpired(ctx, now.Add(2*time.Minute)))

	tx2, err := driver.Begin(ctx, kv.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defs, err := changefeed.List(ctx, tx2, "test", "test", "person")
	require.NoError(t, err)
	assert.Len(t, defs, 0)
}
