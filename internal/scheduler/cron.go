package scheduler

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// cronField is the set of allowed values of one cron field, one bit per value
type cronField uint64

func (f cronField) has(v int) bool { return f&(1<<uint(v)) != 0 }
func (f cronField) count() int     { return bits.OnesCount64(uint64(f)) }

// Schedule is a parsed five-field cron expression
// (minute hour day-of-month month day-of-week)
type Schedule struct {
	minute cronField
	hour   cronField
	dom    cronField
	month  cronField
	dow    cronField

	expr string
}

var cronBounds = [5]struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// ParseSchedule parses a standard five-field cron expression. Fields accept
// *, single values, ranges (a-b), lists (a,b) and steps (*/n, a-b/n).
func ParseSchedule(expr string) (*Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(parts))
	}

	var fields [5]cronField
	for i, part := range parts {
		b := cronBounds[i]
		f, err := parseCronField(part, b.min, b.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field %q: %w", b.name, part, err)
		}
		fields[i] = f
	}

	s := &Schedule{
		minute: fields[0],
		hour:   fields[1],
		dom:    fields[2],
		month:  fields[3],
		dow:    fields[4],
		expr:   expr,
	}
	if !s.anyValidDay() {
		return nil, fmt.Errorf("invalid cron expression %q: no month has any of the given days", expr)
	}
	return s, nil
}

func (s *Schedule) String() string { return s.expr }

func parseCronField(field string, min, max int) (cronField, error) {
	var f cronField
	for _, item := range strings.Split(field, ",") {
		if item == "" {
			return 0, fmt.Errorf("empty list item")
		}

		rng, step := item, 1
		if i := strings.IndexByte(item, '/'); i >= 0 {
			n, err := strconv.Atoi(item[i+1:])
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("step must be a positive integer")
			}
			rng, step = item[:i], n
		}

		lo, hi := min, max
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if lo, err = cronValue(a, min, max); err != nil {
				return 0, err
			}
			if hi, err = cronValue(b, min, max); err != nil {
				return 0, err
			}
			if lo > hi {
				return 0, fmt.Errorf("range start %d is after end %d", lo, hi)
			}
		default:
			if step != 1 {
				return 0, fmt.Errorf("step requires * or a range")
			}
			v, err := cronValue(rng, min, max)
			if err != nil {
				return 0, err
			}
			lo, hi = v, v
		}

		for v := lo; v <= hi; v += step {
			f |= 1 << uint(v)
		}
	}
	return f, nil
}

func cronValue(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value %d out of bounds [%d, %d]", v, min, max)
	}
	return v, nil
}

// Next returns the first matching minute strictly after t, in t's location.
// It returns the zero time if nothing matches within five years.
func (s *Schedule) Next(t time.Time) time.Time {
	current := t.Truncate(time.Minute).Add(time.Minute)
	limit := current.AddDate(5, 0, 0)

	for current.Before(limit) {
		if !s.month.has(int(current.Month())) {
			current = time.Date(current.Year(), current.Month()+1, 1, 0, 0, 0, 0, current.Location())
			continue
		}
		if !s.matchesDay(current) {
			current = time.Date(current.Year(), current.Month(), current.Day()+1, 0, 0, 0, 0, current.Location())
			continue
		}
		if !s.hour.has(current.Hour()) {
			current = time.Date(current.Year(), current.Month(), current.Day(), current.Hour()+1, 0, 0, 0, current.Location())
			continue
		}
		if !s.minute.has(current.Minute()) {
			current = current.Add(time.Minute)
			continue
		}
		return current
	}
	return time.Time{}
}

// matchesDay applies the cron rule that a restricted day-of-month and a
// restricted day-of-week match when either one does
func (s *Schedule) matchesDay(t time.Time) bool {
	domRestricted := s.dom.count() < 31
	dowRestricted := s.dow.count() < 7

	domMatch := s.dom.has(t.Day())
	dowMatch := s.dow.has(int(t.Weekday()))

	switch {
	case domRestricted && dowRestricted:
		return domMatch || dowMatch
	case domRestricted:
		return domMatch
	case dowRestricted:
		return dowMatch
	}
	return true
}

func (s *Schedule) anyValidDay() bool {
	// Day-of-week can always fire
	if s.dow.count() < 7 {
		return true
	}
	longest := [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	for m := 1; m <= 12; m++ {
		if !s.month.has(m) {
			continue
		}
		for d := 1; d <= longest[m]; d++ {
			if s.dom.has(d) {
				return true
			}
		}
	}
	return false
}
