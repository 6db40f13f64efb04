package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/studiokicks/leaderboard/internal/model"
)

// FetchCall records one call to FakeFetcher.Fetch
type FetchCall struct {
	Entity model.EntityType
	Since  *int64
}

// FakeFetcher serves canned records per entity type
type FakeFetcher struct {
	mu      sync.Mutex
	records map[model.EntityType][]model.Record
	errs    map[model.EntityType]error
	panics  map[model.EntityType]any
	delay   time.Duration
	calls   []FetchCall

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		records: make(map[model.EntityType][]model.Record),
		errs:    make(map[model.EntityType]error),
		panics:  make(map[model.EntityType]any),
	}
}

func (f *FakeFetcher) SetRecords(entity model.EntityType, records ...model.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[entity] = records
}

func (f *FakeFetcher) SetError(entity model.EntityType, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, entity)
		return
	}
	f.errs[entity] = err
}

// SetPanic makes Fetch panic with v for entity
func (f *FakeFetcher) SetPanic(entity model.EntityType, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[entity] = v
}

// SetDelay makes every Fetch block for d or until its context ends
func (f *FakeFetcher) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *FakeFetcher) Fetch(ctx context.Context, entity model.EntityType, since *int64) ([]model.Record, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	f.mu.Lock()
	var sinceCopy *int64
	if since != nil {
		v := *since
		sinceCopy = &v
	}
	f.calls = append(f.calls, FetchCall{Entity: entity, Since: sinceCopy})
	records := f.records[entity]
	err := f.errs[entity]
	p, shouldPanic := f.panics[entity]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if shouldPanic {
		panic(p)
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (f *FakeFetcher) Calls() []FetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]FetchCall, len(f.calls))
	copy(result, f.calls)
	return result
}

// CallsFor returns the calls made for a single entity type
func (f *FakeFetcher) CallsFor(entity model.EntityType) []FetchCall {
	var result []FetchCall
	for _, c := range f.Calls() {
		if c.Entity == entity {
			result = append(result, c)
		}
	}
	return result
}

// MaxInFlight is the highest number of concurrent Fetch calls observed
func (f *FakeFetcher) MaxInFlight() int {
	return int(f.maxInFlight.Load())
}

// FakeSession counts authentication and invalidation calls
type FakeSession struct {
	authErr     atomic.Pointer[error]
	ensured     atomic.Int32
	invalidated atomic.Int32
}

func NewFakeSession() *FakeSession {
	return &FakeSession{}
}

func (s *FakeSession) EnsureAuthenticated(ctx context.Context) error {
	s.ensured.Add(1)
	if err := s.authErr.Load(); err != nil {
		return *err
	}
	return nil
}

func (s *FakeSession) Invalidate() {
	s.invalidated.Add(1)
}

// SetAuthError makes EnsureAuthenticated fail; nil clears it
func (s *FakeSession) SetAuthError(err error) {
	if err == nil {
		s.authErr.Store(nil)
		return
	}
	s.authErr.Store(&err)
}

func (s *FakeSession) Ensured() int {
	return int(s.ensured.Load())
}

func (s *FakeSession) Invalidated() int {
	return int(s.invalidated.Load())
}
