package syncer

import (
	"time"

	"github.com/studiokicks/leaderboard/internal/model"
)

// Phase is the lifecycle point a SyncEvent reports
type Phase int

const (
	PhaseBegan Phase = iota
	PhaseEnded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseBegan:
		return "began"
	case PhaseEnded:
		return "ended"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events follow for the run
func (p Phase) Terminal() bool {
	return p == PhaseEnded || p == PhaseFailed
}

// SyncEvent is emitted by a synchronizer during a run. Every run yields one
// began event followed by exactly one ended or failed event.
type SyncEvent struct {
	RunID  string
	Entity model.EntityType
	Phase  Phase
	At     time.Time
	// Result is set on terminal events
	Result *EntityResult
	// Err is set on failed events
	Err error
}

// EntityResult summarizes one synchronizer run
type EntityResult struct {
	Entity    model.EntityType `json:"entity"`
	Fetched   int              `json:"fetched"`
	Persisted int              `json:"persisted"`
	// Dropped counts records the mapper rejected
	Dropped int `json:"dropped"`
	// Failed counts rows the database refused
	Failed          int           `json:"failed"`
	WatermarkBefore *int64        `json:"watermark_before,omitempty"`
	WatermarkAfter  *int64        `json:"watermark_after,omitempty"`
	Duration        time.Duration `json:"duration"`
	Err             error         `json:"-"`
	Error           string        `json:"error,omitempty"`
}

// Succeeded reports whether the fetch succeeded
func (r EntityResult) Succeeded() bool {
	return r.Err == nil
}

// EventSink receives sync events; *inbox.Inbox[SyncEvent] satisfies it
type EventSink interface {
	Send(SyncEvent) bool
}
