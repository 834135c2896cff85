package changefeed

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/surrealcore/coredb/internal/merge"
	"github.com/surrealcore/coredb/internal/value"
)

// Relay fans Notifications out to whichever cluster node (C10) registered
// the live query, over core NATS pub/sub rather than JetStream: per the
// no-migration decision for live-query reconnection, a notification must
// never outlive the instant it's produced, not even long enough to gain
// an at-least-once redelivery guarantee from a persisted stream. A
// notification a subscriber misses is gone, exactly as it would be for a
// same-node in-memory Dispatcher channel that was full.
type Relay struct {
	nc *nats.Conn
}

// NewRelay wraps an already-connected NATS client.
func NewRelay(nc *nats.Conn) *Relay {
	return &Relay{nc: nc}
}

func subjectForNode(node string) string {
	return "coredb.livequery." + node
}

type wireDiffOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

type wireNotification struct {
	LiveID string       `json:"live_id"`
	Kind   NotificationKind `json:"kind"`
	Result string       `json:"result"`
	Diff   []wireDiffOp `json:"diff,omitempty"`
}

func encodeNotification(n Notification) ([]byte, error) {
	resultJSON, err := value.ToJSON(n.Result)
	if err != nil {
		return nil, fmt.Errorf("changefeed: relay encode result: %w", err)
	}
	w := wireNotification{
		LiveID: hex.EncodeToString(n.LiveID[:]),
		Kind:   n.Kind,
		Result: resultJSON,
	}
	for _, op := range n.Diff {
		valJSON, err := value.ToJSON(op.Value)
		if err != nil {
			return nil, fmt.Errorf("changefeed: relay encode diff value: %w", err)
		}
		w.Diff = append(w.Diff, wireDiffOp{Op: op.Op, Path: op.Path, Value: valJSON})
	}
	return json.Marshal(w)
}

func decodeNotification(data []byte) (Notification, error) {
	var w wireNotification
	if err := json.Unmarshal(data, &w); err != nil {
		return Notification{}, fmt.Errorf("changefeed: relay decode: %w", err)
	}
	idBytes, err := hex.DecodeString(w.LiveID)
	if err != nil || len(idBytes) != 16 {
		return Notification{}, fmt.Errorf("changefeed: relay decode: malformed live id %q", w.LiveID)
	}
	n := Notification{Kind: w.Kind, Result: value.FromJSON(w.Result)}
	copy(n.LiveID[:], idBytes)
	for _, op := range w.Diff {
		n.Diff = append(n.Diff, merge.DiffOp{Op: op.Op, Path: op.Path, Value: value.FromJSON(op.Value)})
	}
	return n, nil
}

// Publish fans n out to node, the cluster node id that registered the
// live query n.LiveID targets.
func (r *Relay) Publish(node string, n Notification) error {
	data, err := encodeNotification(n)
	if err != nil {
		return err
	}
	return r.nc.Publish(subjectForNode(node), data)
}

// Subscribe feeds every Notification published for node into d, the
// local Dispatcher that fans out to in-process subscriber channels,
// until ctx is canceled. The returned func unsubscribes early.
func (r *Relay) Subscribe(ctx context.Context, node string, d *Dispatcher) (func() error, error) {
	sub, err := r.nc.Subscribe(subjectForNode(node), func(msg *nats.Msg) {
		n, err := decodeNotification(msg.Data)
		if err != nil {
			return
		}
		d.Notify(n)
	})
	if err != nil {
		return nil, fmt.Errorf("changefeed: relay subscribe: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return sub.Unsubscribe, nil
}
