// Package inmemstore provides an in-memory implementation of
// checkpoint.Store.
//
// It is intended for tests and local development. Production deployments
// should use a durable implementation (for example checkpoint/mongostore).
package inmemstore

import (
	"context"
	"sync"
	"time"

	"github.com/no-ai-labs/spice-sub002/checkpoint"
	"github.com/no-ai-labs/spice-sub002/errs"
)

// Store is an in-memory implementation of checkpoint.Store. It is safe for
// concurrent use.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]checkpoint.Checkpoint
	byRun       map[string]map[string]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		checkpoints: make(map[string]checkpoint.Checkpoint),
		byRun:       make(map[string]map[string]struct{}),
	}
}

// Save implements checkpoint.Store.
func (s *Store) Save(_ context.Context, cp checkpoint.Checkpoint) error {
	if cp.ID == "" {
		return errs.New(errs.KindCheckpoint, "checkpoint id is required")
	}
	if cp.RunID == "" {
		return errs.New(errs.KindCheckpoint, "run id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[cp.ID] = clone(cp)
	ids, ok := s.byRun[cp.RunID]
	if !ok {
		ids = make(map[string]struct{})
		s.byRun[cp.RunID] = ids
	}
	ids[cp.ID] = struct{}{}
	return nil
}

// Load implements checkpoint.Store.
func (s *Store) Load(_ context.Context, id string) (checkpoint.Checkpoint, error) {
	if id == "" {
		return checkpoint.Checkpoint{}, errs.New(errs.KindCheckpoint, "checkpoint id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[id]
	if !ok {
		return checkpoint.Checkpoint{}, errs.Errorf(errs.KindNotFound, "checkpoint %q not found", id)
	}
	return clone(cp), nil
}

// ListByRun implements checkpoint.Store.
func (s *Store) ListByRun(_ context.Context, runID string) ([]checkpoint.Checkpoint, error) {
	if runID == "" {
		return nil, errs.New(errs.KindCheckpoint, "run id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRun[runID]
	out := make([]checkpoint.Checkpoint, 0, len(ids))
	for id := range ids {
		out = append(out, clone(s.checkpoints[id]))
	}
	return out, nil
}

// Delete implements checkpoint.Store.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[id]
	if !ok {
		return nil
	}
	delete(s.checkpoints, id)
	if ids, ok := s.byRun[cp.RunID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byRun, cp.RunID)
		}
	}
	return nil
}

// DeleteByRun implements checkpoint.Store.
func (s *Store) DeleteByRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byRun[runID]
	for id := range ids {
		delete(s.checkpoints, id)
	}
	delete(s.byRun, runID)
	return nil
}

// CleanupExpired implements checkpoint.Store.
func (s *Store) CleanupExpired(_ context.Context) (int, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, cp := range s.checkpoints {
		if !cp.IsExpired(now) {
			continue
		}
		delete(s.checkpoints, id)
		if ids, ok := s.byRun[cp.RunID]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(s.byRun, cp.RunID)
			}
		}
		n++
	}
	return n, nil
}

func clone(in checkpoint.Checkpoint) checkpoint.Checkpoint {
	out := in
	if in.ExpiresAt != nil {
		at := *in.ExpiresAt
		out.ExpiresAt = &at
	}
	if in.PendingInteraction != nil {
		pi := *in.PendingInteraction
		out.PendingInteraction = &pi
	}
	return out
}
