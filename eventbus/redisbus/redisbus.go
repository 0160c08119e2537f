// Package redisbus provides a Redis Streams-backed implementation of
// eventbus.Bus, for deployments where publishers and subscribers run in
// different processes. Each channel maps to a Redis stream key; subscribers
// read via a consumer group so delivery survives a subscriber restart.
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/no-ai-labs/spice-sub002/errs"
	"github.com/no-ai-labs/spice-sub002/eventbus"
)

const (
	streamKeyPrefix = "spice:eventbus:"
	defaultGroup    = "spice-eventbus"
	blockTimeout    = 2 * time.Second
)

// Bus is a Redis Streams implementation of eventbus.Bus.
type Bus struct {
	rdb      *redis.Client
	registry *eventbus.SchemaRegistry
	dlq      eventbus.DeadLetterQueue
	group    string

	mu     sync.Mutex
	cancel map[string]context.CancelFunc // subscription key -> cancel
	closed bool
}

// New constructs a Bus backed by rdb. registry and dlq may be nil. group
// names the consumer group used for every channel's stream; it defaults to
// "spice-eventbus" when empty.
func New(rdb *redis.Client, registry *eventbus.SchemaRegistry, dlq eventbus.DeadLetterQueue, group string) *Bus {
	if group == "" {
		group = defaultGroup
	}
	return &Bus{
		rdb:      rdb,
		registry: registry,
		dlq:      dlq,
		group:    group,
		cancel:   make(map[string]context.CancelFunc),
	}
}

func streamKey(channel string) string {
	return fmt.Sprintf("%s%s", streamKeyPrefix, channel)
}

// Publish implements eventbus.Bus by XADD-ing the envelope to the channel's
// stream.
func (b *Bus) Publish(ctx context.Context, envelope eventbus.EventEnvelope) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return errs.New(errs.KindBus, "redisbus: bus is closed")
	}

	if b.registry != nil {
		if err := b.registry.Validate(envelope.ChannelName, envelope.SchemaVersion, envelope.Payload); err != nil {
			if b.dlq != nil {
				_ = b.dlq.Push(ctx, envelope, err)
			}
			return err
		}
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	key := streamKey(envelope.ChannelName)
	if err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: map[string]any{"envelope": data},
	}).Err(); err != nil {
		return fmt.Errorf("publish to stream %q: %w", key, err)
	}
	return nil
}

// Subscribe implements eventbus.Bus. It creates the channel's consumer group
// if missing and starts a background goroutine that reads new entries and
// invokes handler, acking each entry once the handler returns (a handler
// error pushes the envelope to the DeadLetterQueue when one is configured,
// and the entry is still acked). The returned Subscription stops that
// goroutine.
//
// Every subscription on a channel reads through the Bus's single consumer
// group, so each stream entry is delivered to one of those subscriptions,
// not to all of them.
func (b *Bus) Subscribe(channel string, handler eventbus.Handler) (eventbus.Subscription, error) {
	if handler == nil {
		return nil, errs.New(errs.KindBus, "redisbus: handler is required")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errs.New(errs.KindBus, "redisbus: bus is closed")
	}
	b.mu.Unlock()

	key := streamKey(channel)
	ctx := context.Background()
	if err := b.rdb.XGroupCreateMkStream(ctx, key, b.group, "$").Err(); err != nil &&
		!errors.Is(err, redis.Nil) && !isBusyGroupErr(err) {
		return nil, fmt.Errorf("create consumer group for %q: %w", key, err)
	}

	consumerName := fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	runCtx, cancel := context.WithCancel(context.Background())

	go b.consume(runCtx, key, channel, consumerName, handler)

	subKey := fmt.Sprintf("%s/%s", channel, consumerName)
	b.mu.Lock()
	b.cancel[subKey] = cancel
	b.mu.Unlock()

	return &subscription{bus: b, key: subKey, cancel: cancel}, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func (b *Bus) consume(ctx context.Context, key, channel, consumer string, handler eventbus.Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: consumer,
			Streams:  []string{key, ">"},
			Count:    32,
			Block:    blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.deliver(ctx, key, channel, msg, handler)
			}
		}
	}
}

func (b *Bus) deliver(ctx context.Context, key, channel string, msg redis.XMessage, handler eventbus.Handler) {
	raw, _ := msg.Values["envelope"].(string)
	var envelope eventbus.EventEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		if b.dlq != nil {
			_ = b.dlq.Push(ctx, eventbus.EventEnvelope{ChannelName: channel}, err)
		}
		b.rdb.XAck(ctx, key, b.group, msg.ID)
		return
	}

	if err := handler(ctx, envelope); err != nil && b.dlq != nil {
		_ = b.dlq.Push(ctx, envelope, err)
	}
	b.rdb.XAck(ctx, key, b.group, msg.ID)
}

// Close implements eventbus.Bus, stopping every active subscription
// goroutine.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, cancel := range b.cancel {
		cancel()
	}
	b.cancel = make(map[string]context.CancelFunc)
	return nil
}

type subscription struct {
	bus    *Bus
	key    string
	cancel context.CancelFunc
	once   sync.Once
}

// Close implements eventbus.Subscription.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.bus.mu.Lock()
		delete(s.bus.cancel, s.key)
		s.bus.mu.Unlock()
	})
	return nil
}
