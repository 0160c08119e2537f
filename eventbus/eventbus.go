// Package eventbus defines the typed publish/subscribe contract used to
// observe graph run lifecycle events: node start/finish, run
// pause/resume, checkpoint writes. Channels are versioned so subscribers can
// evolve independently of publishers.
package eventbus

import (
	"context"
	"time"
)

// ChannelKey identifies a logical event channel and its schema version.
type ChannelKey struct {
	Name    string
	Version int
}

// EventEnvelope is the wire shape published on every channel. Payload is the
// schema-validated event body; Metadata carries transport-agnostic
// correlation fields (tenant id, correlation id) that subscribers may use
// for routing without parsing Payload.
type EventEnvelope struct {
	ID            string
	ChannelName   string
	EventType     string
	SchemaVersion int
	Payload       any
	Metadata      map[string]string
	Timestamp     time.Time
}

// Handler processes a single delivered envelope. Returning an error does not
// stop delivery to other subscribers (unlike the graph run's middleware
// pipeline); at-least-once delivery means a failing handler may see the same
// envelope again depending on the bus implementation.
type Handler func(ctx context.Context, envelope EventEnvelope) error

// Subscription represents an active registration on a Bus. Close is
// idempotent.
type Subscription interface {
	Close() error
}

// Backpressure controls what a Bus does when a subscriber's delivery buffer
// is full.
type Backpressure int

const (
	// DropOldest discards the oldest buffered envelope to make room for the
	// new one (default).
	DropOldest Backpressure = iota
	// Block waits for buffer space, applying backpressure to the publisher.
	Block
)

// Config describes a Bus's delivery buffer and backpressure policy. Neither
// inmembus nor redisbus takes a Config: inmembus calls handlers
// synchronously without a buffer, and redisbus reads from Redis streams.
type Config struct {
	BufferSize   int
	Backpressure Backpressure
}

// DefaultConfig returns a Config with a reasonable buffer and drop-oldest
// backpressure.
func DefaultConfig() Config {
	return Config{BufferSize: 256, Backpressure: DropOldest}
}

// Bus publishes envelopes to subscribers of a channel, at-least-once.
type Bus interface {
	// Publish validates envelope against the SchemaRegistry (when one is
	// configured) and delivers it to every subscriber of envelope.ChannelName.
	Publish(ctx context.Context, envelope EventEnvelope) error
	// Subscribe registers handler for channel and returns a Subscription that
	// can be closed to unregister.
	Subscribe(channel string, handler Handler) (Subscription, error)
	// Close releases bus resources; subsequent Publish/Subscribe calls fail.
	Close() error
}

// Validator checks a decoded payload against a channel's schema.
type Validator func(payload any) error

// SchemaRegistry maps (channel, version) to a Validator, so a Bus can reject
// malformed publishes before they reach subscribers.
type SchemaRegistry struct {
	validators map[ChannelKey]Validator
}

// NewSchemaRegistry returns an empty SchemaRegistry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{validators: make(map[ChannelKey]Validator)}
}

// Register associates a Validator with a channel and schema version.
// Registering the same key twice overwrites the previous validator
// (registration is idempotent by design, last write wins).
func (r *SchemaRegistry) Register(channel string, version int, v Validator) {
	r.validators[ChannelKey{Name: channel, Version: version}] = v
}

// Validate runs the registered Validator for (channel, version) against
// payload. If no validator is registered for that key, Validate returns nil
// (unregistered channels are not validated).
func (r *SchemaRegistry) Validate(channel string, version int, payload any) error {
	v, ok := r.validators[ChannelKey{Name: channel, Version: version}]
	if !ok || v == nil {
		return nil
	}
	return v(payload)
}

// DeadLetter is an envelope that failed validation or delivery, retained for
// inspection.
type DeadLetter struct {
	Envelope EventEnvelope
	Cause    string
	At       time.Time
}

// DeadLetterQueue retains envelopes that could not be delivered or
// validated, so operators can inspect and replay them.
type DeadLetterQueue interface {
	Push(ctx context.Context, envelope EventEnvelope, cause error) error
	List(ctx context.Context) ([]DeadLetter, error)
}
