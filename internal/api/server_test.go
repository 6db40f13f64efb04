package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiokicks/leaderboard/internal/coordinator"
	"github.com/studiokicks/leaderboard/internal/leaderboard"
	"github.com/studiokicks/leaderboard/internal/model"
	"github.com/studiokicks/leaderboard/internal/syncer"
	"github.com/studiokicks/leaderboard/internal/testutil"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeSyncer struct {
	result  *coordinator.RunResult
	err     error
	last    *coordinator.RunResult
	marks   map[model.EntityType]int64
	pending int
}

func (f *fakeSyncer) RunSync(ctx context.Context) (*coordinator.RunResult, error) {
	return f.result, f.err
}

func (f *fakeSyncer) LastResult() *coordinator.RunResult     { return f.last }
func (f *fakeSyncer) Watermarks() map[model.EntityType]int64 { return f.marks }
func (f *fakeSyncer) Pending() int                           { return f.pending }

type fakeBoard struct {
	monthStart int64
	since      int64
	entries    []leaderboard.Entry
	err        error
}

func (f *fakeBoard) RankedAttendance(ctx context.Context, since int64) ([]leaderboard.Entry, error) {
	f.since = since
	return f.entries, f.err
}

func (f *fakeBoard) MonthStart() int64 { return f.monthStart }

type fakeUpstream struct {
	status map[string]any
	err    error
}

func (f *fakeUpstream) Status(ctx context.Context) (map[string]any, error) {
	return f.status, f.err
}

func newTestServer(s *fakeSyncer, b *fakeBoard, u UpstreamStatus) (*httptest.Server, *testutil.TestLogger) {
	logger := testutil.NewTestLogger()
	router := NewServer(s, b, u, logger.Logger(), WithMiddlewares(LoggingMiddleware(logger.Logger())))
	return httptest.NewServer(router), logger
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// Routes
// =============================================================================

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(&fakeSyncer{}, &fakeBoard{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[map[string]string](t, resp)["status"])
}

func TestGetLeaderboard(t *testing.T) {
	entries := []leaderboard.Entry{{ClientID: "c1", Name: "Ada", Count: 3}}

	tests := []struct {
		name          string
		query         string
		expectedCode  int
		expectedSince int64
	}{
		{name: "defaults to month start", query: "", expectedCode: http.StatusOK, expectedSince: 1519862400},
		{name: "explicit since", query: "?since=0", expectedCode: http.StatusOK, expectedSince: 0},
		{name: "malformed since", query: "?since=yesterday", expectedCode: http.StatusBadRequest},
		{name: "negative since", query: "?since=-5", expectedCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := &fakeBoard{monthStart: 1519862400, entries: entries}
			srv, _ := newTestServer(&fakeSyncer{}, board, nil)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/leaderboard" + tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, resp.StatusCode)

			if tt.expectedCode != http.StatusOK {
				assert.NotEmpty(t, decode[ErrorResponse](t, resp).Error)
				return
			}
			body := decode[LeaderboardResponse](t, resp)
			assert.Equal(t, tt.expectedSince, body.Since)
			assert.Equal(t, entries, body.Entries)
			assert.Equal(t, tt.expectedSince, board.since)
		})
	}
}

func TestGetLeaderboard_QueryError(t *testing.T) {
	srv, logger := newTestServer(&fakeSyncer{}, &fakeBoard{err: errors.New("database is locked")}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/leaderboard")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.True(t, logger.HasError())
}

func TestPostSync(t *testing.T) {
	now := time.Date(2018, 3, 15, 0, 0, 0, 0, time.UTC)
	result := &coordinator.RunResult{
		RunID:      "run-1",
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
		Entities: map[model.EntityType]syncer.EntityResult{
			model.Client: {Entity: model.Client, Fetched: 2, Persisted: 2},
		},
		Leaderboard: []leaderboard.Entry{{ClientID: "c1", Name: "Ada", Count: 1}},
	}

	tests := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{name: "success", expectedCode: http.StatusOK},
		{name: "queue full", err: coordinator.ErrRunDropped, expectedCode: http.StatusTooManyRequests},
		{name: "in progress", err: coordinator.ErrRunInProgress, expectedCode: http.StatusTooManyRequests},
		{name: "stopped", err: coordinator.ErrStopped, expectedCode: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), expectedCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSyncer{result: result, err: tt.err}
			if tt.err != nil {
				s.result = nil
			}
			srv, _ := newTestServer(s, &fakeBoard{}, nil)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/sync", "application/json", strings.NewReader(""))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, resp.StatusCode)

			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), decode[ErrorResponse](t, resp).Error)
				return
			}

			body := decode[map[string]any](t, resp)
			assert.Equal(t, "run-1", body["run_id"])
			entities := body["entities"].(map[string]any)
			assert.Contains(t, entities, "client")
		})
	}
}

func TestPostSync_RetryAfterOnBackpressure(t *testing.T) {
	srv, _ := newTestServer(&fakeSyncer{err: coordinator.ErrRunDropped}, &fakeBoard{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sync", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestGetSync_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(&fakeSyncer{}, &fakeBoard{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sync")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGetStatus(t *testing.T) {
	s := &fakeSyncer{
		last:    &coordinator.RunResult{RunID: "run-9"},
		marks:   map[model.EntityType]int64{model.Attendance: 1519898400},
		pending: 1,
	}
	srv, _ := newTestServer(s, &fakeBoard{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[StatusResponse](t, resp)
	require.NotNil(t, body.LastRun)
	assert.Equal(t, "run-9", body.LastRun.RunID)
	assert.Equal(t, map[string]int64{"attendance": 1519898400}, body.Watermarks)
	assert.Equal(t, 1, body.Pending)
}

func TestGetStatus_NoRunYet(t *testing.T) {
	srv, _ := newTestServer(&fakeSyncer{}, &fakeBoard{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)

	body := decode[map[string]any](t, resp)
	assert.Nil(t, body["last_run"])
}

func TestGetUpstreamStatus(t *testing.T) {
	tests := []struct {
		name         string
		upstream     UpstreamStatus
		expectedCode int
	}{
		{name: "healthy", upstream: &fakeUpstream{status: map[string]any{"Status": "OK"}}, expectedCode: http.StatusOK},
		{name: "unreachable", upstream: &fakeUpstream{err: errors.New("dial tcp: refused")}, expectedCode: http.StatusBadGateway},
		{name: "not configured", upstream: nil, expectedCode: http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(&fakeSyncer{}, &fakeBoard{}, tt.upstream)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/status/upstream")
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.expectedCode, resp.StatusCode)
		})
	}
}

func TestLoggingMiddleware_RecordsRequestID(t *testing.T) {
	srv, logger := newTestServer(&fakeSyncer{}, &fakeBoard{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	entries := logger.GetEntriesByMessage("http request")
	require.Len(t, entries, 1)
	assert.Equal(t, "/healthz", entries[0].Fields["path"])
	assert.NotEmpty(t, entries[0].Fields["request_id"])
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Enabled: false}.Validate())
	assert.Error(t, Config{Enabled: true}.Validate())
}
