// Package syncer pulls one entity type from the studio API into the local
// database and advances that entity's watermark.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/studiokicks/leaderboard/internal/mapper"
	"github.com/studiokicks/leaderboard/internal/metrics"
	"github.com/studiokicks/leaderboard/internal/model"
	"github.com/studiokicks/leaderboard/internal/watermark"
)

// Fetcher returns the remote records of an entity type newer than since
type Fetcher interface {
	Fetch(ctx context.Context, entity model.EntityType, since *int64) ([]model.Record, error)
}

// Store persists mapped rows
type Store interface {
	Upsert(ctx context.Context, row model.Row) error
}

// Synchronizer runs the fetch/insert cycle for a single entity type
type Synchronizer struct {
	entity    model.EntityType
	config    Config
	fetcher   Fetcher
	store     Store
	watermark *watermark.Handle
	metrics   *metrics.Recorder
	logger    *slog.Logger

	// Runs never overlap
	mu       sync.Mutex
	state    State
	recorder *StateRecorder
}

// NewSynchronizer creates a synchronizer for the entity type mark is scoped to
func NewSynchronizer(
	config Config,
	mark *watermark.Handle,
	fetcher Fetcher,
	store Store,
	rec *metrics.Recorder,
	logger *slog.Logger,
) (*Synchronizer, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if mark == nil {
		return nil, fmt.Errorf("watermark handle is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Synchronizer{
		entity:    mark.Entity(),
		config:    config,
		fetcher:   fetcher,
		store:     store,
		watermark: mark,
		metrics:   rec,
		logger:    logger.With("entity", mark.Entity().String()),
		state:     &IdleState{},
	}, nil
}

// SetStateRecorder sets a state recorder for testing
func (s *Synchronizer) SetStateRecorder(recorder *StateRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = recorder
}

// Entity returns the entity type this synchronizer owns
func (s *Synchronizer) Entity() model.EntityType {
	return s.entity
}

// Update performs one fetch/insert cycle. It sends a began event to sink,
// then exactly one ended or failed event, and returns the same result the
// terminal event carries.
func (s *Synchronizer) Update(ctx context.Context, runID string, sink EventSink) (result EntityResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result = EntityResult{
		Entity:          s.entity,
		WatermarkBefore: s.watermark.Get(),
	}
	s.state = &IdleState{}
	s.emit(sink, SyncEvent{RunID: runID, Entity: s.entity, Phase: PhaseBegan})

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("synchronizer panic recovered",
				"runID", runID,
				"panic", r)
			result.Err = fmt.Errorf("synchronizer panic: %v", r)
			s.transitionTo(&FailedState{Err: result.Err})
		}

		result.Duration = time.Since(start)
		result.WatermarkAfter = s.watermark.Get()

		event := SyncEvent{RunID: runID, Entity: s.entity, Phase: PhaseEnded}
		if result.Err != nil {
			result.Error = result.Err.Error()
			event.Phase = PhaseFailed
			event.Err = result.Err
			s.metrics.RecordEntityFailure(s.entity)
		}
		final := result
		event.Result = &final
		s.emit(sink, event)
	}()

	for {
		switch state := s.state.(type) {
		case *IdleState:
			s.transitionTo(state.ToFetching())
		case *FetchingState:
			s.runFetching(ctx, state, &result)
		case *InsertingState:
			s.runInserting(ctx, state, &result)
		case *DoneState, *FailedState:
			return result
		default:
			panic(fmt.Sprintf("unknown synchronizer state %T", state))
		}
	}
}

// transitionTo performs a state transition and logs it
func (s *Synchronizer) transitionTo(newState State) {
	oldStateName := s.state.Name()
	s.state = newState

	if s.recorder != nil {
		s.recorder.Record(newState)
	}

	s.logger.Debug("state transition",
		"from", oldStateName,
		"to", newState.Name())
}

func (s *Synchronizer) runFetching(ctx context.Context, state *FetchingState, result *EntityResult) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	records, err := s.fetcher.Fetch(fetchCtx, s.entity, result.WatermarkBefore)
	if err != nil {
		s.logger.Error("fetch failed", "error", err)
		result.Err = err
		s.transitionTo(state.ToFailed(err))
		return
	}

	result.Fetched = len(records)
	s.transitionTo(state.ToInserting(records))
}

func (s *Synchronizer) runInserting(ctx context.Context, state *InsertingState, result *EntityResult) {
	var (
		newest int64
		found  bool
	)

	for i, rec := range state.Records {
		row, err := mapper.Map(s.entity, rec)
		if err != nil {
			result.Dropped++
			s.logger.Warn("dropping record", "index", i, "error", err)
			continue
		}

		if err := s.store.Upsert(ctx, row); err != nil {
			result.Failed++
			s.logger.Error("failed to persist row", "index", i, "error", err)
			continue
		}

		result.Persisted++
		if !found || row.Freshness() > newest {
			newest = row.Freshness()
			found = true
		}
	}

	if found {
		advanced, err := s.watermark.Advance(ctx, newest)
		if err != nil {
			// Stays dirty in memory and is written by the next flush
			s.logger.Warn("failed to persist watermark", "watermark", newest, "error", err)
		}
		if advanced {
			s.logger.Info("watermark advanced", "watermark", newest)
		}
	}

	s.metrics.RecordBatch(s.entity, result.Fetched, result.Persisted, result.Dropped, result.Failed)
	if mark := s.watermark.Get(); mark != nil {
		s.metrics.SetWatermark(s.entity, *mark)
	}

	s.logger.Info("batch processed",
		"fetched", result.Fetched,
		"persisted", result.Persisted,
		"dropped", result.Dropped,
		"failed", result.Failed)
	s.transitionTo(state.ToDone())
}

func (s *Synchronizer) emit(sink EventSink, event SyncEvent) {
	if sink == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	if !sink.Send(event) {
		s.logger.Warn("sync event dropped", "runID", event.RunID, "phase", event.Phase.String())
	}
}
