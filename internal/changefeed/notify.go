package changefeed

import (
	"log"
	"sync"

	"github.com/surrealcore/coredb/internal/merge"
	"github.com/surrealcore/coredb/internal/value"
)

// NotificationKind names the four notification variants spec.md 4.8
// defines for a live query.
type NotificationKind string

const (
	NotificationCreate NotificationKind = "CREATE"
	NotificationUpdate NotificationKind = "UPDATE"
	NotificationDelete NotificationKind = "DELETE"
	NotificationKilled NotificationKind = "KILLED"
)

// Notification is one event delivered to a live query's subscriber.
type Notification struct {
	LiveID [16]byte
	Kind   NotificationKind
	Result value.Value
	Diff   []merge.DiffOp
}

// Matcher evaluates a live query's compiled condition against a
// document; supplied by the caller (the QEP layer compiles WHERE clauses
// into Matchers, which is outside this package's scope).
type Matcher func(doc value.Value) bool

// EvaluateChange implements DP stage 14's notification rule: compare
// whether the condition matched the initial and current projections of a
// record and derive the corresponding notification kind, or nil if
// neither state matched (no notification due).
func EvaluateChange(def Def, match Matcher, initial, current value.Value) (*Notification, error) {
	initialMatch := !initial.IsNone() && match(initial)
	currentMatch := !current.IsNone() && match(current)

	switch {
	case currentMatch && !initialMatch:
		return &Notification{LiveID: def.ID, Kind: NotificationCreate, Result: project(current, def.Fields)}, nil
	case initialMatch && currentMatch:
		ops, err := merge.Diff(initial, current)
		if err != nil {
			return nil, err
		}
		return &Notification{LiveID: def.ID, Kind: NotificationUpdate, Result: project(current, def.Fields), Diff: ops}, nil
	case initialMatch && !currentMatch:
		return &Notification{LiveID: def.ID, Kind: NotificationDelete, Result: project(initial, def.Fields)}, nil
	default:
		return nil, nil
	}
}

func project(doc value.Value, fields []string) value.Value {
	if len(fields) == 0 {
		return doc
	}
	out := make(map[string]value.Value, len(fields))
	for _, f := range fields {
		out[f] = doc.Get(f)
	}
	return value.Object(out)
}

// Dispatcher fans notifications out to one buffered channel per live
// query, the session-indexed channel spec.md 4.8 describes as living
// outside the KV space. A full or missing channel is logged, never
// allowed to fail the commit that produced the notification.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[[16]byte]chan Notification
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{channels: make(map[[16]byte]chan Notification)}
}

// Subscribe registers a buffered channel for a live query id, replacing
// any previous subscription for the same id.
func (d *Dispatcher) Subscribe(id [16]byte, buffer int) <-chan Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan Notification, buffer)
	d.channels[id] = ch
	return ch
}

// Unsubscribe closes and removes a live query's channel, called on KILL
// or session teardown.
func (d *Dispatcher) Unsubscribe(id [16]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.channels[id]; ok {
		close(ch)
		delete(d.channels, id)
	}
}

// Notify delivers one notification after commit succeeds. A full or
// missing channel is logged and dropped rather than propagated, per
// spec.md 4.8: "Live-query notification send failures do not fail the
// commit."
func (d *Dispatcher) Notify(n Notification) {
	d.mu.RLock()
	ch, ok := d.channels[n.LiveID]
	d.mu.RUnlock()
	if !ok {
		log.Printf("changefeed: notify: no subscriber for live query %x", n.LiveID)
		return
	}
	select {
	case ch <- n:
	default:
		log.Printf("changefeed: notify: channel full for live query %x, dropping %s notification", n.LiveID, n.Kind)
	}
}
