// Package watermark keeps the per-entity high-water mark that bounds each
// incremental fetch.
package watermark

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/studiokicks/leaderboard/internal/model"
)

// Persistence is the durable side of the store
type Persistence interface {
	LoadAll(ctx context.Context) (map[model.EntityType]int64, error)
	// SaveAll replaces everything previously saved with marks
	SaveAll(ctx context.Context, marks map[model.EntityType]int64) error
}

// Store holds one optional epoch-seconds watermark per entity type.
// Values only move forward except through Reset.
type Store struct {
	mu      sync.Mutex
	marks   map[model.EntityType]int64
	version uint64 // bumped on every change
	saved   uint64 // version last written durably

	// serializes Flush so snapshots reach persistence in order
	flushMu sync.Mutex

	persist Persistence
	logger  *slog.Logger
}

// NewStore creates an empty store backed by persist
func NewStore(persist Persistence, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		marks:   make(map[model.EntityType]int64),
		persist: persist,
		logger:  logger,
	}
}

// Load replaces the in-memory state with what persistence holds. On failure
// the store is left empty, which makes the next run a full resync.
func (s *Store) Load(ctx context.Context) error {
	marks, err := s.persist.LoadAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.marks = make(map[model.EntityType]int64)
		s.logger.Warn("failed to load watermarks, starting from scratch", "error", err)
		return fmt.Errorf("load watermarks: %w", err)
	}

	s.marks = marks
	if s.marks == nil {
		s.marks = make(map[model.EntityType]int64)
	}
	s.version++
	s.saved = s.version

	s.logger.Info("loaded watermarks", "count", len(s.marks))
	return nil
}

// Get returns the watermark for entity, or false when none is recorded
func (s *Store) Get(entity model.EntityType) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.marks[entity]
	return ts, ok
}

// Set raises the watermark for entity to ts. Lower or equal values are
// ignored. It reports whether the watermark moved.
func (s *Store) Set(entity model.EntityType, ts int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.marks[entity]; ok && ts <= cur {
		return false
	}
	s.marks[entity] = ts
	s.version++
	return true
}

// Reset removes the watermark for entity so its next fetch is unbounded
func (s *Store) Reset(entity model.EntityType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.marks[entity]; !ok {
		return
	}
	delete(s.marks, entity)
	s.version++
}

// Snapshot returns a copy of every recorded watermark
func (s *Store) Snapshot() map[model.EntityType]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.marks)
}

// Dirty reports whether there are changes not yet written durably
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.version != s.saved
}

// Flush writes the current state durably. A failed write leaves the store
// dirty so the next Flush retries it.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if s.version == s.saved {
		s.mu.Unlock()
		return nil
	}
	snapshot := maps.Clone(s.marks)
	version := s.version
	s.mu.Unlock()

	if err := s.persist.SaveAll(ctx, snapshot); err != nil {
		return fmt.Errorf("flush watermarks: %w", err)
	}

	s.mu.Lock()
	if version > s.saved {
		s.saved = version
	}
	s.mu.Unlock()
	return nil
}

// For returns a handle limited to a single entity type
func (s *Store) For(entity model.EntityType) *Handle {
	return &Handle{store: s, entity: entity}
}

// Handle is the view of the store given to one synchronizer
type Handle struct {
	store  *Store
	entity model.EntityType
}

// Entity returns the entity type this handle is scoped to
func (h *Handle) Entity() model.EntityType {
	return h.entity
}

// Get returns the watermark, or nil when none is recorded
func (h *Handle) Get() *int64 {
	ts, ok := h.store.Get(h.entity)
	if !ok {
		return nil
	}
	return &ts
}

// Advance raises the watermark to ts and persists it immediately. The
// in-memory value is kept even when the write fails.
func (h *Handle) Advance(ctx context.Context, ts int64) (bool, error) {
	if !h.store.Set(h.entity, ts) {
		return false, nil
	}
	return true, h.store.Flush(ctx)
}
