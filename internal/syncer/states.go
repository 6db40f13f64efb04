package syncer

import (
	"sync"

	"github.com/studiokicks/leaderboard/internal/model"
)

// State is the interface that all synchronizer states must implement
type State interface {
	Name() string
}

// IdleState - waiting for the next run
type IdleState struct{}

func (s *IdleState) Name() string { return "idle" }
func (s *IdleState) ToFetching() *FetchingState {
	return &FetchingState{}
}

// FetchingState - querying the studio API
type FetchingState struct{}

func (s *FetchingState) Name() string { return "fetching" }
func (s *FetchingState) ToInserting(records []model.Record) *InsertingState {
	return &InsertingState{Records: records}
}
func (s *FetchingState) ToFailed(err error) *FailedState {
	return &FailedState{Err: err}
}

// InsertingState - mapping and upserting the fetched batch
type InsertingState struct {
	Records []model.Record
}

func (s *InsertingState) Name() string { return "inserting" }
func (s *InsertingState) ToDone() *DoneState {
	return &DoneState{}
}

// Terminal States

// DoneState - batch processed, watermark advanced where possible
type DoneState struct{}

func (s *DoneState) Name() string { return "done" }

// FailedState - fetch failed or the synchronizer panicked
type FailedState struct {
	Err error
}

func (s *FailedState) Name() string { return "failed" }

// StateRecorder tracks state transitions for testing
type StateRecorder struct {
	mu   sync.Mutex
	path []string
}

func NewStateRecorder() *StateRecorder {
	return &StateRecorder{path: make([]string, 0)}
}

func (r *StateRecorder) Record(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.path = append(r.path, state.Name())
}

func (r *StateRecorder) Path() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.path...)
}
