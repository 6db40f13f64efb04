package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/studiokicks/leaderboard/internal/leaderboard"
	"github.com/studiokicks/leaderboard/internal/model"
	"github.com/studiokicks/leaderboard/internal/syncer"
)

var (
	ErrRunDropped    = errors.New("sync request dropped: queue is full")
	ErrRunInProgress = errors.New("sync run already in progress")
	ErrStopped       = errors.New("coordinator stopped")
)

// Synchronizer is one entity type's fetch/insert cycle
type Synchronizer interface {
	Entity() model.EntityType
	Update(ctx context.Context, runID string, sink syncer.EventSink) syncer.EntityResult
}

// Invalidator drops the shared upstream session
type Invalidator interface {
	Invalidate()
}

// Ranker computes the leaderboard returned with each run
type Ranker interface {
	RankedAttendanceForCurrentMonth(ctx context.Context) ([]leaderboard.Entry, error)
}

// RunResult is the outcome of one coordinated sync run
type RunResult struct {
	RunID       string                                   `json:"run_id"`
	StartedAt   time.Time                                `json:"started_at"`
	FinishedAt  time.Time                                `json:"finished_at"`
	Entities    map[model.EntityType]syncer.EntityResult `json:"entities"`
	Leaderboard []leaderboard.Entry                      `json:"leaderboard"`
	// Err is set when the leaderboard could not be computed
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// Failed lists the entity types whose synchronizer failed
func (r *RunResult) Failed() []model.EntityType {
	var failed []model.EntityType
	for _, entity := range model.EntityTypes {
		if res, ok := r.Entities[entity]; ok && !res.Succeeded() {
			failed = append(failed, entity)
		}
	}
	return failed
}

// Degraded reports whether any part of the run failed
func (r *RunResult) Degraded() bool {
	return r.Err != nil || len(r.Failed()) > 0
}

// Duration is the wall time of the run
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type request struct {
	ctx  context.Context
	resp chan response
}

type response struct {
	result *RunResult
	err    error
}
