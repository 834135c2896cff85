// Command coredbd is the process that owns one storage backend for the
// lifetime of a node: it loads configuration, opens the configured C2
// driver, starts the C10 heartbeat loop and the index-compaction
// background pass, and waits for a termination signal. It starts no
// change-feed GC pass.
// It intentionally exposes no SQL surface, RPC/HTTP/GraphQL listener, or
// REPL — those are out of scope (see SPEC_FULL.md's Non-goals); this is
// the ambient process shell the rest of the packages run inside.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/surrealcore/coredb/internal/changefeed"
	"github.com/surrealcore/coredb/internal/cluster"
	"github.com/surrealcore/coredb/internal/compact"
	"github.com/surrealcore/coredb/internal/config"
	"github.com/surrealcore/coredb/internal/kv"
	_ "github.com/surrealcore/coredb/internal/kv/memory"
	_ "github.com/surrealcore/coredb/internal/kv/sqlstore"
	"github.com/surrealcore/coredb/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a coredb.toml configuration file")
	nodeID := flag.String("node", "", "this node's cluster identity (default: a random id)")
	natsURL := flag.String("nats-url", "", "NATS server URL for cross-node live-query relay (empty disables it)")
	flag.Parse()

	if err := run(*configPath, *nodeID, *natsURL); err != nil {
		log.Fatalf("coredbd: %v", err)
	}
}

func run(configPath, nodeID, natsURL string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTelemetry, err := telemetry.Configure(os.Stderr)
	if err != nil {
		return fmt.Errorf("configure telemetry: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driverName := cfg.Storage.Driver
	if driverName == "" {
		driverName = "memory"
	}
	driver, err := kv.Open(ctx, driverName, cfg.Storage.DSN, kv.Options{})
	if err != nil {
		return fmt.Errorf("open storage %q: %w", driverName, err)
	}
	defer driver.Close(ctx)

	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	membership := cluster.NewMembership(driver, 3*cfg.NodeMembershipRefreshInterval)
	stopHeartbeat := startHeartbeatLoop(ctx, membership, nodeID, cfg.NodeMembershipRefreshInterval)
	defer stopHeartbeat()

	compactor := compact.New(driver, staticIndexTargets(cfg), compact.Config{
		Interval: cfg.IndexCompactionInterval,
	})
	compactor.Start(ctx)
	defer compactor.Stop()

	if natsURL != "" {
		nc, err := nats.Connect(natsURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()
		relay := changefeed.NewRelay(nc)
		dispatcher := changefeed.NewDispatcher()
		unsubscribe, err := relay.Subscribe(ctx, nodeID, dispatcher)
		if err != nil {
			return fmt.Errorf("subscribe live-query relay: %w", err)
		}
		defer unsubscribe()
	}

	log.Printf("coredbd: node %s ready (storage=%s)", nodeID, driverName)
	<-ctx.Done()
	log.Printf("coredbd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return shutdownTelemetry(shutdownCtx)
}

// startHeartbeatLoop records this node's liveness on a fixed interval
// until ctx is canceled, returning a func that blocks until the
// background goroutine has exited.
func startHeartbeatLoop(ctx context.Context, m *cluster.Membership, nodeID string, interval time.Duration) func() {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		node := cluster.Node{ID: nodeID}
		for {
			if err := m.Heartbeat(ctx, node, time.Now()); err != nil && ctx.Err() == nil {
				log.Printf("coredbd: heartbeat failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return func() { <-done }
}

// staticIndexTargets adapts the storage config's explicit index list into
// the compactor's lookup hook. The catalog has no "list every index in
// the system" operation (each namespace/database/table is addressed
// individually), so auto-discovery is deferred; operators name the
// indexes this node should sweep.
func staticIndexTargets(cfg *config.Config) func(context.Context) ([]compact.Target, error) {
	targets := make([]compact.Target, 0, len(cfg.Storage.Tunable))
	if raw, ok := cfg.Storage.Tunable["compaction_targets"].([]interface{}); ok {
		for _, t := range raw {
			m, ok := t.(map[string]interface{})
			if !ok {
				continue
			}
			targets = append(targets, compact.Target{
				Namespace: stringField(m, "namespace"),
				Database:  stringField(m, "database"),
				Table:     stringField(m, "table"),
				Index:     stringField(m, "index"),
			})
		}
	}
	return func(context.Context) ([]compact.Target, error) { return targets, nil }
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
