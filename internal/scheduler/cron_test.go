package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"too few fields", "* * * *"},
		{"too many fields", "* * * * * *"},
		{"minute out of range", "60 * * * *"},
		{"hour out of range", "* 24 * * *"},
		{"day zero", "* * 0 * *"},
		{"weekday seven", "* * * * 7"},
		{"reversed range", "* 5-1 * * *"},
		{"zero step", "*/0 * * * *"},
		{"step on single value", "5/2 * * * *"},
		{"empty list item", "1,,2 * * * *"},
		{"not a number", "a * * * *"},
		{"impossible date", "0 0 31 2 *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestSchedule_Next(t *testing.T) {
	base := time.Date(2018, time.March, 15, 10, 7, 30, 0, time.UTC) // Thursday

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			name: "every minute",
			expr: "* * * * *",
			want: time.Date(2018, time.March, 15, 10, 8, 0, 0, time.UTC),
		},
		{
			name: "every fifteen minutes",
			expr: "*/15 * * * *",
			want: time.Date(2018, time.March, 15, 10, 15, 0, 0, time.UTC),
		},
		{
			name: "list and range",
			expr: "0,30 6-8 * * *",
			want: time.Date(2018, time.March, 16, 6, 0, 0, 0, time.UTC),
		},
		{
			name: "first of month",
			expr: "0 0 1 * *",
			want: time.Date(2018, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "weekday only",
			expr: "0 9 * * 1",
			want: time.Date(2018, time.March, 19, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "day of month or weekday",
			expr: "0 12 20 * 5",
			want: time.Date(2018, time.March, 16, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "leap day",
			expr: "0 0 29 2 *",
			want: time.Date(2020, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSchedule(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Next(base))
		})
	}
}

func TestSchedule_NextIsStrictlyAfter(t *testing.T) {
	s, err := ParseSchedule("0 * * * *")
	require.NoError(t, err)

	at := time.Date(2018, time.March, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Hour), s.Next(at))
}

func TestScheduler_CronDelay(t *testing.T) {
	config := testConfig()
	config.Interval = 0
	config.Cron = "30 * * * *"

	s, err := NewScheduler(config, &fakeRunner{}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2018, time.March, 15, 10, 10, 0, 0, time.UTC) }

	assert.Equal(t, 20*time.Minute, s.nextDelay())
}
