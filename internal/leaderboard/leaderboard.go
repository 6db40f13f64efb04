// Package leaderboard ranks clients by how many classes they attended.
package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// rankedQuery counts attendance rows whose client and event both resolve.
// Ties on count are ordered by client ID.
const rankedQuery = `
	SELECT c.ID, c.FullName, COUNT(*) AS attended
	FROM attendance a
	JOIN clients c ON c.ID = a.Attendee
	JOIN events e ON e.ID = a.Event
	WHERE a.TimeAttended > ?
	GROUP BY c.ID, c.FullName
	ORDER BY attended DESC, c.ID ASC
`

// Querier runs read queries; *sql.DB and *db.DB both satisfy it
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Entry is one ranked client
type Entry struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
}

// Config defines leaderboard configuration
type Config struct {
	// IANA location whose calendar defines the current month
	Timezone string `toml:"timezone"`
}

// DefaultConfig returns the default leaderboard configuration
func DefaultConfig() Config {
	return Config{Timezone: "UTC"}
}

// Validate checks that the timezone can be loaded
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Leaderboard computes rankings from persisted rows
type Leaderboard struct {
	q   Querier
	loc *time.Location
	now func() time.Time
}

// New creates a leaderboard reading through q
func New(q Querier, config Config) (*Leaderboard, error) {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}
	return &Leaderboard{q: q, loc: loc, now: time.Now}, nil
}

// SetClock replaces the time source used for the current month
func (l *Leaderboard) SetClock(now func() time.Time) {
	l.now = now
}

// RankedAttendance ranks clients by attendance strictly after since
func (l *Leaderboard) RankedAttendance(ctx context.Context, since int64) ([]Entry, error) {
	rows, err := l.q.QueryContext(ctx, rankedQuery, since)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ClientID, &e.Name, &e.Count); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RankedAttendanceForCurrentMonth ranks attendance since the month began
func (l *Leaderboard) RankedAttendanceForCurrentMonth(ctx context.Context) ([]Entry, error) {
	return l.RankedAttendance(ctx, l.MonthStart())
}

// MonthStart is the first instant of the current month in the configured
// location, as epoch seconds
func (l *Leaderboard) MonthStart() int64 {
	now := l.now().In(l.loc)
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, l.loc).Unix()
}
