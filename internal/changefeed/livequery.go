package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/kv"
)

// Def is a registered live query: the session that owns it, the node it
// is bound to (SPEC_FULL's C8 resolution: no cross-session migration),
// and the fields/table it was registered against. Condition evaluation is
// supplied by the caller as a Matcher rather than stored here, since
// compiling and evaluating the query language's WHERE expressions is
// outside this package's scope.
type Def struct {
	ID        [16]byte `json:"-"`
	Node      string   `json:"node"`
	Namespace string   `json:"namespace"`
	Database  string   `json:"database"`
	Table     string   `json:"table"`
	Fields    []string `json:"fields"`
}

func encodeDef(d Def) []byte {
	b, _ := json.Marshal(d)
	return b
}

func decodeDef(id [16]byte, raw []byte) (Def, error) {
	var d Def
	if err := json.Unmarshal(raw, &d); err != nil {
		return Def{}, fmt.Errorf("changefeed: decode live query: %w", err)
	}
	d.ID = id
	return d, nil
}

// Register persists a live query under both its table-scoped key (so DP's
// "lives" stage can find every live query bound to a table) and its
// node-scoped key (so C10 can find every live query bound to a node when
// that node's heartbeat expires).
func Register(ctx context.Context, tx kv.Tx, d Def) error {
	raw := encodeDef(d)
	if err := tx.Set(ctx, keycodec.LiveQuery(d.Namespace, d.Database, d.Table, d.ID).Bytes(), raw); err != nil {
		return fmt.Errorf("changefeed: register live query: %w", err)
	}
	if err := tx.Set(ctx, keycodec.LiveQueryByNode(d.Node, d.ID).Bytes(), raw); err != nil {
		return fmt.Errorf("changefeed: register live query by node: %w", err)
	}
	return nil
}

// Kill removes a live query's registration entirely, the effect of an
// explicit KILL statement (as opposed to Archive, which preserves the
// definition for operator inspection after a node death).
func Kill(ctx context.Context, tx kv.Tx, d Def) error {
	if err := tx.Del(ctx, keycodec.LiveQuery(d.Namespace, d.Database, d.Table, d.ID).Bytes()); err != nil {
		return err
	}
	return tx.Del(ctx, keycodec.LiveQueryByNode(d.Node, d.ID).Bytes())
}

// List returns every live query registered against a table, consulted by
// DP's "lives" stage once per committed mutation.
func List(ctx context.Context, tx kv.Tx, ns, db, tb string) ([]Def, error) {
	entries, err := tx.ScanPrefix(ctx, keycodec.LiveQueryPrefix(ns, db, tb).Bytes(), 0, false)
	if err != nil {
		return nil, fmt.Errorf("changefeed: list live queries: %w", err)
	}
	out := make([]Def, 0, len(entries))
	for _, e := range entries {
		id, ok := idFromKey(e.Key)
		if !ok {
			continue
		}
		d, err := decodeDef(id, e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Archive moves every live query registered to node into the archived
// space, per SPEC_FULL's decision that orphaned live queries are
// preserved for inspection rather than silently dropped or migrated.
// Called by C10 when a node's heartbeat is found to have expired.
func Archive(ctx context.Context, tx kv.Tx, node string) error {
	entries, err := tx.ScanPrefix(ctx, keycodec.LiveQueryByNodePrefix(node).Bytes(), 0, false)
	if err != nil {
		return fmt.Errorf("changefeed: scan node live queries: %w", err)
	}
	for _, e := range entries {
		id, ok := idFromKey(e.Key)
		if !ok {
			continue
		}
		d, err := decodeDef(id, e.Value)
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, keycodec.LiveQueryArchived(node, id).Bytes(), e.Value); err != nil {
			return err
		}
		if err := tx.Del(ctx, keycodec.LiveQuery(d.Namespace, d.Database, d.Table, id).Bytes()); err != nil {
			return err
		}
		if err := tx.Del(ctx, e.Key); err != nil {
			return err
		}
	}
	return nil
}

// idFromKey recovers the trailing 16-byte live-query id written by
// keycodec.LiveQuery/LiveQueryByNode, appended as raw bytes with no
// further framing after.
func idFromKey(key []byte) ([16]byte, bool) {
	var id [16]byte
	if len(key) < 16 {
		return id, false
	}
	copy(id[:], key[len(key)-16:])
	return id, true
}
