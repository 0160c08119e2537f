package inmembus

import (
	"context"
	"sync"
	"time"

	"github.com/no-ai-labs/spice-sub002/eventbus"
)

// DeadLetterQueue is an in-memory eventbus.DeadLetterQueue, retaining every
// pushed entry in order. It is intended for tests and local development.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []eventbus.DeadLetter
}

// NewDeadLetterQueue returns an empty DeadLetterQueue.
func NewDeadLetterQueue() *DeadLetterQueue {
	return &DeadLetterQueue{}
}

// Push implements eventbus.DeadLetterQueue.
func (q *DeadLetterQueue) Push(_ context.Context, envelope eventbus.EventEnvelope, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, eventbus.DeadLetter{Envelope: envelope, Cause: msg, At: time.Now()})
	return nil
}

// List implements eventbus.DeadLetterQueue.
func (q *DeadLetterQueue) List(_ context.Context) ([]eventbus.DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]eventbus.DeadLetter, len(q.entries))
	copy(out, q.entries)
	return out, nil
}
