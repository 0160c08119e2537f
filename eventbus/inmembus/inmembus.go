// Package inmembus provides an in-process implementation of eventbus.Bus.
//
// It fans out published envelopes to subscribers of the matching channel,
// synchronously in the publisher's goroutine. It is intended for tests and
// single-process deployments; eventbus/redisbus is the durable,
// cross-process alternative.
package inmembus

import (
	"context"
	"sync"

	"github.com/no-ai-labs/spice-sub002/errs"
	"github.com/no-ai-labs/spice-sub002/eventbus"
)

// Bus is an in-memory implementation of eventbus.Bus. It is safe for
// concurrent use.
type Bus struct {
	mu       sync.RWMutex
	subs     map[string]map[*subscription]eventbus.Handler
	registry *eventbus.SchemaRegistry
	dlq      eventbus.DeadLetterQueue
	closed   bool
}

type subscription struct {
	bus     *Bus
	channel string
	once    sync.Once
}

// Close implements eventbus.Subscription.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.channel], s)
		s.bus.mu.Unlock()
	})
	return nil
}

// New constructs a Bus. registry and dlq may be nil; when nil, publishes are
// not schema-validated and failed validations are simply dropped rather than
// retained.
func New(registry *eventbus.SchemaRegistry, dlq eventbus.DeadLetterQueue) *Bus {
	return &Bus{
		subs:     make(map[string]map[*subscription]eventbus.Handler),
		registry: registry,
		dlq:      dlq,
	}
}

// Publish implements eventbus.Bus. Subscribers are invoked one after another
// in no defined order (they are kept in a map); a handler error is pushed to
// the DeadLetterQueue when one is configured and does not stop delivery to
// the rest (at-least-once, not fail-fast, unlike the graph run's middleware
// chain).
func (b *Bus) Publish(ctx context.Context, envelope eventbus.EventEnvelope) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return errs.New(errs.KindBus, "eventbus: bus is closed")
	}

	if b.registry != nil {
		if err := b.registry.Validate(envelope.ChannelName, envelope.SchemaVersion, envelope.Payload); err != nil {
			if b.dlq != nil {
				_ = b.dlq.Push(ctx, envelope, err)
			}
			return err
		}
	}

	b.mu.RLock()
	handlers := make([]eventbus.Handler, 0, len(b.subs[envelope.ChannelName]))
	for _, h := range b.subs[envelope.ChannelName] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, envelope); err != nil && b.dlq != nil {
			_ = b.dlq.Push(ctx, envelope, err)
		}
	}
	return nil
}

// Subscribe implements eventbus.Bus.
func (b *Bus) Subscribe(channel string, handler eventbus.Handler) (eventbus.Subscription, error) {
	if handler == nil {
		return nil, errs.New(errs.KindBus, "eventbus: handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errs.New(errs.KindBus, "eventbus: bus is closed")
	}
	subs, ok := b.subs[channel]
	if !ok {
		subs = make(map[*subscription]eventbus.Handler)
		b.subs[channel] = subs
	}
	s := &subscription{bus: b, channel: channel}
	subs[s] = handler
	return s, nil
}

// Close implements eventbus.Bus.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string]map[*subscription]eventbus.Handler)
	return nil
}
