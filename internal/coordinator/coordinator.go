// Package coordinator runs the entity synchronizers as one sync run at a
// time and turns their results into a leaderboard.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/studiokicks/leaderboard/internal/inbox"
	"github.com/studiokicks/leaderboard/internal/metrics"
	"github.com/studiokicks/leaderboard/internal/model"
	"github.com/studiokicks/leaderboard/internal/syncer"
	"github.com/studiokicks/leaderboard/internal/watermark"
)

// Coordinator owns the watermark store and serializes sync runs through a
// single worker draining a bounded request queue
type Coordinator struct {
	// Configuration
	config  Config
	logger  *slog.Logger
	metrics *metrics.Recorder

	// Collaborators
	syncers []Synchronizer
	session Invalidator
	board   Ranker
	marks   *watermark.Store

	// Requests queued or running
	requests chan request
	pending  atomic.Int32

	// Last completed run
	mu   sync.RWMutex
	last *RunResult

	// Control
	shutdown chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a coordinator. Start must be called before runs execute.
func New(
	config Config,
	syncers []Synchronizer,
	session Invalidator,
	board Ranker,
	marks *watermark.Store,
	rec *metrics.Recorder,
	logger *slog.Logger,
) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(syncers) == 0 {
		return nil, fmt.Errorf("at least one synchronizer is required")
	}
	if session == nil || board == nil || marks == nil {
		return nil, fmt.Errorf("session, leaderboard and watermark store are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		config:   config,
		logger:   logger,
		metrics:  rec,
		syncers:  syncers,
		session:  session,
		board:    board,
		marks:    marks,
		requests: make(chan request, config.QueueCapacity),
		shutdown: make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// NewSynchronizers builds one synchronizer per entity type, each holding a
// watermark handle scoped to its own entity
func NewSynchronizers(
	config syncer.Config,
	marks *watermark.Store,
	fetcher syncer.Fetcher,
	store syncer.Store,
	rec *metrics.Recorder,
	logger *slog.Logger,
) ([]Synchronizer, error) {
	syncers := make([]Synchronizer, 0, len(model.EntityTypes))
	for _, entity := range model.EntityTypes {
		s, err := syncer.NewSynchronizer(config, marks.For(entity), fetcher, store, rec, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s synchronizer: %w", entity, err)
		}
		syncers = append(syncers, s)
	}
	return syncers, nil
}

// Start launches the worker goroutine
func (c *Coordinator) Start() {
	c.logger.Info("starting coordinator",
		"synchronizers", len(c.syncers),
		"policy", string(c.config.Policy),
		"queue_capacity", c.config.QueueCapacity)

	c.wg.Add(1)
	go c.worker()
}

// Stop lets the active run finish, fails queued requests with ErrStopped
// and flushes the watermark store
func (c *Coordinator) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		close(c.shutdown)
		c.wg.Wait()
		// Requests that raced shutdown
		c.drain()
		close(c.stopped)
	})
	<-c.stopped

	if err := c.marks.Flush(ctx); err != nil {
		c.logger.Error("failed to flush watermarks on shutdown", "error", err)
		return fmt.Errorf("flush watermarks: %w", err)
	}
	c.logger.Info("coordinator shutdown complete")
	return nil
}

// RunSync requests a sync run and waits for its result. Under PolicyQueue a
// request beyond the queue capacity fails with ErrRunDropped; under
// PolicyReject any request made while another is pending fails with
// ErrRunInProgress. If ctx ends first the caller stops waiting but the
// run itself still completes.
func (c *Coordinator) RunSync(ctx context.Context) (*RunResult, error) {
	select {
	case <-c.shutdown:
		return nil, ErrStopped
	default:
	}

	if c.config.Policy == PolicyReject {
		if !c.pending.CompareAndSwap(0, 1) {
			c.metrics.RecordDroppedRequest("in_progress")
			c.logger.Warn("sync request rejected, run in progress")
			return nil, ErrRunInProgress
		}
	} else {
		c.pending.Add(1)
	}

	req := request{ctx: ctx, resp: make(chan response, 1)}
	select {
	case c.requests <- req:
	default:
		c.pending.Add(-1)
		c.metrics.RecordDroppedRequest("queue_full")
		c.logger.Warn("sync request dropped, queue full", "capacity", c.config.QueueCapacity)
		return nil, ErrRunDropped
	}

	select {
	case resp := <-req.resp:
		return resp.result, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopped:
		select {
		case resp := <-req.resp:
			return resp.result, resp.err
		default:
			return nil, ErrStopped
		}
	}
}

// Pending returns the number of requests queued or running
func (c *Coordinator) Pending() int {
	return int(c.pending.Load())
}

// LastResult returns the most recent completed run, or nil
func (c *Coordinator) LastResult() *RunResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Watermarks returns the current watermark of every entity type that has one
func (c *Coordinator) Watermarks() map[model.EntityType]int64 {
	return c.marks.Snapshot()
}

func (c *Coordinator) worker() {
	defer c.wg.Done()

	for {
		// Shutdown wins over queued requests
		select {
		case <-c.shutdown:
			c.drain()
			return
		default:
		}

		select {
		case <-c.shutdown:
			c.drain()
			return
		case req := <-c.requests:
			c.handle(req)
		}
	}
}

func (c *Coordinator) handle(req request) {
	defer c.pending.Add(-1)

	// Nobody is waiting for this one
	if err := req.ctx.Err(); err != nil {
		c.logger.Info("skipping abandoned sync request", "error", err)
		req.resp <- response{err: err}
		return
	}

	result := c.run(context.WithoutCancel(req.ctx))
	req.resp <- response{result: result}
}

// drain fails every queued request without running it
func (c *Coordinator) drain() {
	for {
		select {
		case req := <-c.requests:
			c.pending.Add(-1)
			req.resp <- response{err: ErrStopped}
		default:
			return
		}
	}
}

// run executes one sync run. Every synchronizer sends exactly one began and
// one terminal event, so an inbox of twice the synchronizer count never
// blocks a sender.
func (c *Coordinator) run(ctx context.Context) (result *RunResult) {
	runID := uuid.NewString()
	logger := c.logger.With("runID", runID)
	result = &RunResult{
		RunID:     runID,
		StartedAt: time.Now(),
		Entities:  make(map[model.EntityType]syncer.EntityResult, len(c.syncers)),
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync run panic recovered", "panic", r)
			result.Err = fmt.Errorf("sync run panic: %v", r)
		}
		if result.Err != nil {
			result.Error = result.Err.Error()
		}
		result.FinishedAt = time.Now()

		c.metrics.RecordRun(result.Duration(), result.Degraded())
		c.mu.Lock()
		c.last = result
		c.mu.Unlock()

		logger.Info("sync run complete",
			"duration", result.Duration(),
			"failed", len(result.Failed()),
			"leaderboard_entries", len(result.Leaderboard))
	}()

	logger.Info("starting sync run")
	events := inbox.New[syncer.SyncEvent](2*len(c.syncers), c.config.EventSendTimeout, logger)
	for _, s := range c.syncers {
		go s.Update(ctx, runID, events)
	}

	inFlight := 0
	for settled := 0; settled < len(c.syncers); {
		ev, err := events.Receive(ctx)
		if err != nil {
			result.Err = fmt.Errorf("waiting for synchronizers: %w", err)
			return result
		}

		switch ev.Phase {
		case syncer.PhaseBegan:
			inFlight++
			logger.Debug("synchronizer began", "entity", ev.Entity.String(), "in_flight", inFlight)
		case syncer.PhaseEnded, syncer.PhaseFailed:
			inFlight--
			settled++
			if ev.Result != nil {
				result.Entities[ev.Entity] = *ev.Result
			}
			if ev.Phase == syncer.PhaseFailed {
				logger.Warn("synchronizer failed, invalidating session",
					"entity", ev.Entity.String(),
					"error", ev.Err)
				c.session.Invalidate()
			}
		}
	}

	stats := events.GetStats()
	logger.Debug("synchronizers settled",
		"events", stats.TotalReceived,
		"max_depth", stats.MaxDepthSeen)

	// Retry any watermark write that failed during the run
	if c.marks.Dirty() {
		if err := c.marks.Flush(ctx); err != nil {
			logger.Warn("failed to flush watermarks", "error", err)
		}
	}

	entries, err := c.board.RankedAttendanceForCurrentMonth(ctx)
	if err != nil {
		logger.Error("failed to compute leaderboard", "error", err)
		result.Err = fmt.Errorf("compute leaderboard: %w", err)
		return result
	}
	result.Leaderboard = entries
	return result
}
