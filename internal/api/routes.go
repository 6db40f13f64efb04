package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/studiokicks/leaderboard/internal/coordinator"
	"github.com/studiokicks/leaderboard/internal/leaderboard"
)

// LeaderboardResponse is the body of GET /leaderboard
type LeaderboardResponse struct {
	Since   int64               `json:"since"`
	Entries []leaderboard.Entry `json:"entries"`
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	LastRun    *coordinator.RunResult `json:"last_run"`
	Watermarks map[string]int64       `json:"watermarks"`
	Pending    int                    `json:"pending"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes holds the handler dependencies
type Routes struct {
	syncer   Syncer
	board    Board
	upstream UpstreamStatus
	logger   *slog.Logger
}

// getLeaderboard ranks clients since ?since=<epoch seconds>, defaulting to
// the start of the current month
func (rt *Routes) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	since := rt.board.MonthStart()
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			rt.writeErrorResponse(w, "since must be a non-negative epoch in seconds", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	entries, err := rt.board.RankedAttendance(r.Context(), since)
	if err != nil {
		rt.logger.Error("failed to compute leaderboard", "error", err)
		rt.writeErrorResponse(w, "failed to compute leaderboard", http.StatusInternalServerError)
		return
	}

	rt.writeJSONResponse(w, http.StatusOK, LeaderboardResponse{Since: since, Entries: entries})
}

// postSync runs a sync and returns its result
func (rt *Routes) postSync(w http.ResponseWriter, r *http.Request) {
	result, err := rt.syncer.RunSync(r.Context())
	switch {
	case err == nil:
		rt.writeJSONResponse(w, http.StatusOK, result)
	case errors.Is(err, coordinator.ErrRunDropped), errors.Is(err, coordinator.ErrRunInProgress):
		w.Header().Set("Retry-After", "60")
		rt.writeErrorResponse(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, coordinator.ErrStopped):
		rt.writeErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	default:
		rt.logger.Error("sync request failed", "error", err)
		rt.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
	}
}

func (rt *Routes) getStatus(w http.ResponseWriter, _ *http.Request) {
	marks := rt.syncer.Watermarks()
	resp := StatusResponse{
		LastRun:    rt.syncer.LastResult(),
		Watermarks: make(map[string]int64, len(marks)),
		Pending:    rt.syncer.Pending(),
	}
	for entity, ts := range marks {
		resp.Watermarks[entity.String()] = ts
	}
	rt.writeJSONResponse(w, http.StatusOK, resp)
}

func (rt *Routes) getUpstreamStatus(w http.ResponseWriter, r *http.Request) {
	if rt.upstream == nil {
		rt.writeErrorResponse(w, "upstream status not available", http.StatusNotImplemented)
		return
	}

	status, err := rt.upstream.Status(r.Context())
	if err != nil {
		rt.logger.Warn("upstream status check failed", "error", err)
		rt.writeErrorResponse(w, err.Error(), http.StatusBadGateway)
		return
	}
	rt.writeJSONResponse(w, http.StatusOK, status)
}

// writeJSONResponse writes a JSON response with the given data
func (rt *Routes) writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		rt.logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (rt *Routes) writeErrorResponse(w http.ResponseWriter, message string, status int) {
	rt.writeJSONResponse(w, status, ErrorResponse{Error: message})
}
