package mapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiokicks/leaderboard/internal/model"
)

// =============================================================================
// Dates and phones
// =============================================================================

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"2018-03-01T10:00:00.000", 1519898400, false},
		{"2018-03-01T10:00:00", 1519898400, false},
		{"2018-03-01T10:00:00.5Z", 1519898400, false},
		{"1970-01-01T00:00:00.000", 0, false},
		{"2018-03-01 10:00:00", 0, true},
		{"yesterday", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDate_RoundTrip(t *testing.T) {
	assert.Equal(t, "2018-03-01T10:00:00", FormatDate(1519898400))

	ts, err := ParseDate(FormatDate(1700000000))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts)
}

func TestParsePhone(t *testing.T) {
	assert.Equal(t, int64(5551234567), ParsePhone("555-123-4567"))
	assert.Equal(t, int64(5551234567), ParsePhone("555 123 4567"))
	assert.Equal(t, int64(0), ParsePhone("(555) 123-4567"))
	assert.Equal(t, int64(0), ParsePhone(""))
}

// =============================================================================
// Attendance
// =============================================================================

func attendanceRecord() model.Record {
	return model.Record{
		"Attendee":     "c1",
		"Event":        "e1",
		"ModifiedDate": "2018-03-01T10:00:00.000",
		"Renewed":      float64(1),
		"Status":       "Attended",
		"TimeAttended": "2018-03-01T09:00:00.000",
	}
}

func TestMapAttendance(t *testing.T) {
	row, err := MapAttendance(attendanceRecord())
	require.NoError(t, err)

	assert.Equal(t, "c1", row.Attendee)
	require.NotNil(t, row.Event)
	assert.Equal(t, "e1", *row.Event)
	assert.Equal(t, int64(1519898400), row.ModifiedDate)
	assert.True(t, row.Renewed)
	assert.Equal(t, "Attended", row.Status)
	require.NotNil(t, row.TimeAttended)
	assert.Equal(t, int64(1519894800), *row.TimeAttended)
	assert.Equal(t, int64(1519898400), row.Freshness())
}

func TestMapAttendance_OptionalFieldsDefaultToNil(t *testing.T) {
	rec := attendanceRecord()
	delete(rec, "Event")
	rec["TimeAttended"] = "not a date"
	rec["Renewed"] = false

	row, err := MapAttendance(rec)
	require.NoError(t, err)
	assert.Nil(t, row.Event)
	assert.Nil(t, row.TimeAttended)
	assert.False(t, row.Renewed)
}

func TestMapAttendance_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(model.Record)
		field string
		kind  error
	}{
		{"missing attendee", func(r model.Record) { delete(r, "Attendee") }, "Attendee", ErrMissingField},
		{"null attendee", func(r model.Record) { r["Attendee"] = nil }, "Attendee", ErrMissingField},
		{"numeric status", func(r model.Record) { r["Status"] = float64(3) }, "Status", ErrMissingField},
		{"renewed as string", func(r model.Record) { r["Renewed"] = "yes" }, "Renewed", ErrMissingField},
		{"missing modified", func(r model.Record) { delete(r, "ModifiedDate") }, "ModifiedDate", ErrMissingField},
		{"bad modified", func(r model.Record) { r["ModifiedDate"] = "01/03/2018" }, "ModifiedDate", ErrBadDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := attendanceRecord()
			tt.edit(rec)

			row, err := MapAttendance(rec)
			assert.Nil(t, row)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)

			var mErr *MappingError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, model.Attendance, mErr.Entity)
			assert.Equal(t, tt.field, mErr.Field)
		})
	}
}

// =============================================================================
// Client
// =============================================================================

func TestMapClient(t *testing.T) {
	rec := model.Record{
		"ID":             "c1",
		"FullNameSimple": "Ada Lovelace",
		"PerfectScanID":  "PS-1",
		"CreatedDate":    "2018-03-01T10:00:00.000",
		"Gender":         "female",
		"Email":          "ada@example.com",
		"Birthdate":      "1990-12-10T00:00:00",
		"PrimaryNumber":  "555-123 4567",
		"Photo":          nil,
	}

	row, err := MapClient(rec)
	require.NoError(t, err)

	assert.Equal(t, "c1", row.ID)
	assert.Equal(t, "Ada Lovelace", row.FullName)
	assert.Equal(t, "PS-1", row.PerfectScanID)
	assert.Equal(t, int64(1519898400), row.CreatedDate)
	assert.Equal(t, int64(1519898400), row.Freshness())
	require.NotNil(t, row.Gender)
	assert.Equal(t, model.GenderFemale, *row.Gender)
	require.NotNil(t, row.Birthdate)
	assert.Nil(t, row.Photo)
	assert.Nil(t, row.StartDate)
	assert.Equal(t, int64(5551234567), row.PrimaryNumber)
}

func TestMapClient_UnknownGenderIsAbsent(t *testing.T) {
	row, err := MapClient(model.Record{
		"ID":             "c1",
		"FullNameSimple": "A",
		"PerfectScanID":  "PS",
		"CreatedDate":    "2018-03-01T10:00:00",
		"Gender":         "other",
		"PrimaryNumber":  "n/a",
	})
	require.NoError(t, err)
	assert.Nil(t, row.Gender)
	assert.Equal(t, int64(0), row.PrimaryNumber)
}

func TestMapClient_RequiresFullNameSimple(t *testing.T) {
	_, err := MapClient(model.Record{
		"ID":            "c1",
		"FullName":      "Ada",
		"PerfectScanID": "PS",
		"CreatedDate":   "2018-03-01T10:00:00",
	})
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "FullNameSimple")
}

// =============================================================================
// Event, Teacher, Transaction
// =============================================================================

func TestMapEvent(t *testing.T) {
	row, err := MapEvent(model.Record{
		"Id":           "e1",
		"CreatedDate":  "2018-02-01T00:00:00.000",
		"ModifiedDate": "2018-03-01T10:00:00.000",
		"StartTime":    "2018-03-01T09:00:00",
		"EndTime":      "2018-03-01T10:00:00",
		"Subject":      "Kickboxing",
		"Price":        12.5,
		"Teacher":      "t1",
	})
	require.NoError(t, err)

	assert.Equal(t, "e1", row.ID)
	assert.Equal(t, int64(1519898400), row.Freshness())
	assert.Equal(t, row.StartTime+3600, row.EndTime)
	require.NotNil(t, row.Price)
	assert.Equal(t, 12.5, *row.Price)
	assert.Nil(t, row.Details)
}

func TestMapEvent_UsesIdNotID(t *testing.T) {
	_, err := MapEvent(model.Record{
		"ID":           "e1",
		"CreatedDate":  "2018-02-01T00:00:00",
		"ModifiedDate": "2018-03-01T10:00:00",
		"StartTime":    "2018-03-01T09:00:00",
		"EndTime":      "2018-03-01T10:00:00",
		"Subject":      "Kickboxing",
	})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestMapTeacher(t *testing.T) {
	row, err := MapTeacher(model.Record{
		"ID":           "t1",
		"FullName":     "Bruce",
		"CreatedDate":  "2018-02-01T00:00:00",
		"ModifiedDate": "2018-03-01T10:00:00",
		"MobilePhone":  "555-0100",
		"JobTitle":     "Head Coach",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bruce", row.FullName)
	assert.Equal(t, int64(5550100), row.MobilePhone)
	require.NotNil(t, row.JobTitle)
	assert.Equal(t, "Head Coach", *row.JobTitle)
	assert.Nil(t, row.Position)
}

func TestMapTransaction(t *testing.T) {
	row, err := MapTransaction(model.Record{
		"ID":                "x1",
		"CreatedDate":       "2018-02-01T00:00:00",
		"ModifiedDate":      "2018-03-01T10:00:00",
		"Ongoing":           true,
		"DurationDays":      float64(30),
		"SessionsLeft":      2.5,
		"TotalAmount":       float64(199),
		"Expiry":            "2018-04-01T00:00:00",
		"MembershipStatus":  "EXPIRED",
		"MembershipName":    "Monthly",
		"SessionsPurchased": "ten",
	})
	require.NoError(t, err)

	assert.True(t, row.Ongoing)
	require.NotNil(t, row.DurationDays)
	assert.Equal(t, int64(30), *row.DurationDays)
	assert.Nil(t, row.SessionsLeft, "non-integral numbers are not ints")
	assert.Nil(t, row.SessionsPurchased)
	require.NotNil(t, row.TotalAmount)
	assert.Equal(t, 199.0, *row.TotalAmount)
	require.NotNil(t, row.MembershipStatus)
	assert.Equal(t, model.MembershipExpired, *row.MembershipStatus)
	require.NotNil(t, row.Expiry)
}

func TestMapTransaction_OngoingRequired(t *testing.T) {
	_, err := MapTransaction(model.Record{
		"ID":           "x1",
		"CreatedDate":  "2018-02-01T00:00:00",
		"ModifiedDate": "2018-03-01T10:00:00",
	})
	assert.ErrorIs(t, err, ErrMissingField)
}

// =============================================================================
// Dispatch
// =============================================================================

func TestMap_Dispatch(t *testing.T) {
	row, err := Map(model.Attendance, attendanceRecord())
	require.NoError(t, err)
	assert.Equal(t, model.Attendance, row.Entity())

	row, err = Map(model.Client, attendanceRecord())
	assert.Nil(t, row, "failed mappings return a nil interface")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = Map(model.EntityType(99), attendanceRecord())
	assert.Error(t, err)
}
