package testutil

import "github.com/studiokicks/leaderboard/internal/model"

// Raw upstream records as the studio API returns them. Dates use the API's
// millisecond layout.

func AttendanceRecord(attendee, event, modified, attended string) model.Record {
	return model.Record{
		"Attendee":     attendee,
		"Event":        event,
		"ModifiedDate": modified,
		"Renewed":      false,
		"Status":       "Attended",
		"TimeAttended": attended,
	}
}

func ClientRecord(id, name, created string) model.Record {
	return model.Record{
		"ID":             id,
		"FullNameSimple": name,
		"PerfectScanID":  "PS-" + id,
		"CreatedDate":    created,
		"Gender":         "Female",
	}
}

func EventRecord(id, modified string) model.Record {
	return model.Record{
		"Id":           id,
		"CreatedDate":  modified,
		"ModifiedDate": modified,
		"StartTime":    modified,
		"EndTime":      modified,
		"Subject":      "Class " + id,
	}
}

func TeacherRecord(id, modified string) model.Record {
	return model.Record{
		"ID":           id,
		"FullName":     "Teacher " + id,
		"CreatedDate":  modified,
		"ModifiedDate": modified,
		"MobilePhone":  "408-555 0100",
	}
}

func TransactionRecord(id, modified string) model.Record {
	return model.Record{
		"ID":           id,
		"CreatedDate":  modified,
		"ModifiedDate": modified,
		"Ongoing":      true,
		"TotalAmount":  float64(120),
	}
}
