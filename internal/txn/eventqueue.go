package txn

import (
	"context"
	"log"
	"sync"

	"github.com/cenkalti/backoff/v4"
)

// maxRetryDepth bounds how many times an event is retried before it is
// moved to the in-memory dead-letter list instead of being dropped silently. This
// implements the at-least-once-with-dead-letter decision recorded for
// async event delivery: retries reuse the same queue record until
// maxRetryDepth is exhausted.
const maxRetryDepth = 8

// Handler processes one delivered event. Returning an error causes the
// event to be retried (subject to maxRetryDepth) according to the
// backoff policy.
type Handler func(ctx context.Context, e PendingEvent) error

// DeadLetter is an event that exhausted its retry budget.
type DeadLetter struct {
	Event PendingEvent
	Err   error
}

// EventQueue delivers buffered PendingEvents to registered handlers
// asynchronously, retrying failed deliveries with exponential backoff
// (github.com/cenkalti/backoff/v4) and moving events that exhaust
// maxRetryDepth to a dead-letter list rather than discarding them. This
// generalizes the teacher's internal/eventbus.Bus dispatch loop, which
// logged per-handler errors via log.Printf("eventbus: handler %q error
// for %s: %v", ...) but had no retry or dead-letter concept.
type EventQueue struct {
	mu          sync.Mutex
	handlers    []Handler
	deadLetters []DeadLetter
}

// NewEventQueue returns an empty queue with no registered handlers.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Register adds a handler invoked for every enqueued event.
func (q *EventQueue) Register(h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, h)
}

// Enqueue delivers e to every registered handler in a background
// goroutine, retrying failures with backoff until maxRetryDepth is
// exhausted, at which point e is recorded as a DeadLetter and logged.
func (q *EventQueue) Enqueue(e PendingEvent) {
	q.mu.Lock()
	handlers := append([]Handler(nil), q.handlers...)
	q.mu.Unlock()

	for _, h := range handlers {
		go q.deliver(h, e)
	}
}

func (q *EventQueue) deliver(h Handler, e PendingEvent) {
	ctx := context.Background()
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetryDepth)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := h(ctx, e); err != nil {
			log.Printf("txn: event %q delivery attempt %d failed: %v", e.Name, attempt, err)
			return err
		}
		return nil
	}, policy)

	if err != nil {
		q.mu.Lock()
		q.deadLetters = append(q.deadLetters, DeadLetter{Event: e, Err: err})
		q.mu.Unlock()
		log.Printf("txn: event %q dead-lettered after %d attempts: %v", e.Name, attempt, err)
	}
}

// DeadLetters returns a snapshot of events that exhausted their retry
// budget, for operator inspection (the "…!eqd…" range in a durable
// deployment; this in-process queue keeps them in memory).
func (q *EventQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.deadLetters...)
}
