// Package checkpoint defines the Checkpoint subsystem: the durable snapshot
// of a paused run and the Store contract consumed by the runner.
package checkpoint

import (
	"context"
	"time"

	"github.com/no-ai-labs/spice-sub002/hitl"
	"github.com/no-ai-labs/spice-sub002/message"
)

// Checkpoint is a serialized snapshot of a paused run, identified by ID and
// indexed by RunID.
type Checkpoint struct {
	ID                 string
	RunID              string
	GraphID            string
	CurrentNodeID      string
	Message            message.Message
	CreatedAt          time.Time
	ExpiresAt          *time.Time
	PendingInteraction *hitl.HumanInteraction
}

// IsExpired compares ExpiresAt to now.
func (c Checkpoint) IsExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return now.After(*c.ExpiresAt)
}

// Store persists checkpoints. Implementations must save atomically per id
// and must be safe for concurrent use across runs.
type Store interface {
	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, id string) (Checkpoint, error)
	ListByRun(ctx context.Context, runID string) ([]Checkpoint, error)
	Delete(ctx context.Context, id string) error
	DeleteByRun(ctx context.Context, runID string) error
	CleanupExpired(ctx context.Context) (int, error)
}

// Config controls checkpoint lifecycle behavior for a run.
type Config struct {
	// TTL is added to the pause time to compute the checkpoint's ExpiresAt.
	// Zero means no expiry.
	TTL time.Duration
	// AutoCleanup deletes the checkpoint after a successful resume.
	AutoCleanup bool
	// SaveOnError persists a FAILED-state checkpoint when a run fails.
	SaveOnError bool
	// SaveEveryNNodes, when > 0, additionally checkpoints every N completed
	// nodes (not just on pause/error), for long-running graphs.
	SaveEveryNNodes int
}

// Option configures a Config via functional options.
type Option func(*Config)

// WithTTL sets Config.TTL.
func WithTTL(ttl time.Duration) Option { return func(c *Config) { c.TTL = ttl } }

// WithAutoCleanup sets Config.AutoCleanup.
func WithAutoCleanup(v bool) Option { return func(c *Config) { c.AutoCleanup = v } }

// WithSaveOnError sets Config.SaveOnError.
func WithSaveOnError(v bool) Option { return func(c *Config) { c.SaveOnError = v } }

// WithSaveEveryNNodes sets Config.SaveEveryNNodes.
func WithSaveEveryNNodes(n int) Option { return func(c *Config) { c.SaveEveryNNodes = n } }

// NewConfig builds a Config from options.
func NewConfig(opts ...Option) Config {
	var c Config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
