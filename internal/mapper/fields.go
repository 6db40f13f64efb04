package mapper

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/studiokicks/leaderboard/internal/model"
)

// DateLayout is the upstream timestamp format once fractional seconds are cut off
const DateLayout = "2006-01-02T15:04:05"

// ParseDate converts an upstream timestamp such as 2018-03-01T10:00:00.000
// to epoch seconds. Everything from the first '.' on is ignored and the
// remainder is read as UTC.
func ParseDate(s string) (int64, error) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// FormatDate is the inverse of ParseDate, without fractional seconds
func FormatDate(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(DateLayout)
}

// ParsePhone strips dashes and spaces and reads the rest as an integer.
// Anything unreadable becomes 0.
func ParsePhone(s string) int64 {
	s = strings.NewReplacer("-", "", " ", "").Replace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// fields reads typed values out of a record and keeps the first required-field error
type fields struct {
	entity model.EntityType
	rec    model.Record
	err    error
}

func newFields(entity model.EntityType, rec model.Record) *fields {
	return &fields{entity: entity, rec: rec}
}

func (f *fields) fail(field string, kind error) {
	if f.err == nil {
		f.err = &MappingError{Entity: f.entity, Field: field, Kind: kind}
	}
}

func (f *fields) str(key string) (string, bool) {
	s, ok := f.rec[key].(string)
	return s, ok
}

func (f *fields) requiredString(key string) string {
	s, ok := f.str(key)
	if !ok {
		f.fail(key, ErrMissingField)
	}
	return s
}

func (f *fields) requiredDate(key string) int64 {
	s, ok := f.str(key)
	if !ok {
		f.fail(key, ErrMissingField)
		return 0
	}
	ts, err := ParseDate(s)
	if err != nil {
		f.fail(key, ErrBadDate)
		return 0
	}
	return ts
}

// requiredBool accepts a JSON bool or a number, where non-zero is true
func (f *fields) requiredBool(key string) bool {
	switch v := f.rec[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		f.fail(key, ErrMissingField)
		return false
	}
}

func (f *fields) optionalString(key string) *string {
	if s, ok := f.str(key); ok {
		return &s
	}
	return nil
}

func (f *fields) optionalDate(key string) *int64 {
	s, ok := f.str(key)
	if !ok {
		return nil
	}
	ts, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &ts
}

func (f *fields) optionalReal(key string) *float64 {
	if v, ok := f.rec[key].(float64); ok {
		return &v
	}
	return nil
}

// optionalInt only accepts numbers with an integral value
func (f *fields) optionalInt(key string) *int64 {
	v, ok := f.rec[key].(float64)
	if !ok || v != math.Trunc(v) {
		return nil
	}
	n := int64(v)
	return &n
}

func (f *fields) phone(key string) int64 {
	switch v := f.rec[key].(type) {
	case string:
		return ParsePhone(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (f *fields) gender(key string) *model.Gender {
	s, ok := f.str(key)
	if !ok {
		return nil
	}
	if g, ok := model.ParseGender(s); ok {
		return &g
	}
	return nil
}

func (f *fields) membershipStatus(key string) *model.MembershipStatus {
	s, ok := f.str(key)
	if !ok {
		return nil
	}
	if m, ok := model.ParseMembershipStatus(s); ok {
		return &m
	}
	return nil
}
