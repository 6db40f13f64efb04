// Package mapper turns raw upstream records into typed rows.
//
// Required fields that are absent or of the wrong type reject the whole
// record with ErrMissingField; required dates that do not parse reject it
// with ErrBadDate. Optional fields fall back to nil.
package mapper

import (
	"fmt"

	"github.com/studiokicks/leaderboard/internal/model"
)

// Map dispatches to the mapper for entity
func Map(entity model.EntityType, rec model.Record) (model.Row, error) {
	var (
		row model.Row
		err error
	)
	// assign only on success so a typed nil never ends up in row
	switch entity {
	case model.Attendance:
		var r *model.AttendanceRow
		if r, err = MapAttendance(rec); err == nil {
			row = r
		}
	case model.Client:
		var r *model.ClientRow
		if r, err = MapClient(rec); err == nil {
			row = r
		}
	case model.Teacher:
		var r *model.TeacherRow
		if r, err = MapTeacher(rec); err == nil {
			row = r
		}
	case model.Event:
		var r *model.EventRow
		if r, err = MapEvent(rec); err == nil {
			row = r
		}
	case model.Transaction:
		var r *model.TransactionRow
		if r, err = MapTransaction(rec); err == nil {
			row = r
		}
	default:
		err = fmt.Errorf("no mapper for entity type %d", entity)
	}
	return row, err
}

func MapAttendance(rec model.Record) (*model.AttendanceRow, error) {
	f := newFields(model.Attendance, rec)
	row := &model.AttendanceRow{
		Attendee:     f.requiredString("Attendee"),
		Event:        f.optionalString("Event"),
		ModifiedDate: f.requiredDate("ModifiedDate"),
		Renewed:      f.requiredBool("Renewed"),
		Status:       f.requiredString("Status"),
		TimeAttended: f.optionalDate("TimeAttended"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return row, nil
}

func MapClient(rec model.Record) (*model.ClientRow, error) {
	f := newFields(model.Client, rec)
	row := &model.ClientRow{
		ID:             f.requiredString("ID"),
		FullName:       f.requiredString("FullNameSimple"),
		Gender:         f.gender("Gender"),
		Email:          f.optionalString("Email"),
		Birthdate:      f.optionalDate("Birthdate"),
		Membership:     f.optionalString("Membership"),
		PerfectScanID:  f.requiredString("PerfectScanID"),
		CreatedDate:    f.requiredDate("CreatedDate"),
		StartDate:      f.optionalDate("StartDate"),
		EnrollmentDate: f.optionalDate("EnrollmentDate"),
		LastAttended:   f.optionalDate("LastAttended"),
		Photo:          f.optionalString("Photo"),
		PrimaryNumber:  f.phone("PrimaryNumber"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return row, nil
}

func MapEvent(rec model.Record) (*model.EventRow, error) {
	f := newFields(model.Event, rec)
	row := &model.EventRow{
		ID:           f.requiredString("Id"),
		CreatedDate:  f.requiredDate("CreatedDate"),
		ModifiedDate: f.requiredDate("ModifiedDate"),
		StartTime:    f.requiredDate("StartTime"),
		EndTime:      f.requiredDate("EndTime"),
		Subject:      f.requiredString("Subject"),
		Details:      f.optionalString("Details"),
		Price:        f.optionalReal("Price"),
		Teacher:      f.optionalString("Teacher"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return row, nil
}

func MapTeacher(rec model.Record) (*model.TeacherRow, error) {
	f := newFields(model.Teacher, rec)
	row := &model.TeacherRow{
		ID:           f.requiredString("ID"),
		FullName:     f.requiredString("FullName"),
		CreatedDate:  f.requiredDate("CreatedDate"),
		ModifiedDate: f.requiredDate("ModifiedDate"),
		Email:        f.optionalString("Email"),
		JobTitle:     f.optionalString("JobTitle"),
		Position:     f.optionalString("Position"),
		MobilePhone:  f.phone("MobilePhone"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return row, nil
}

func MapTransaction(rec model.Record) (*model.TransactionRow, error) {
	f := newFields(model.Transaction, rec)
	row := &model.TransactionRow{
		ID:                f.requiredString("ID"),
		CreatedDate:       f.requiredDate("CreatedDate"),
		ModifiedDate:      f.requiredDate("ModifiedDate"),
		Ongoing:           f.requiredBool("Ongoing"),
		DurationDays:      f.optionalInt("DurationDays"),
		SessionsLeft:      f.optionalInt("SessionsLeft"),
		SessionsPurchased: f.optionalInt("SessionsPurchased"),
		EachPayment:       f.optionalReal("EachPayment"),
		ForfeitedAmount:   f.optionalReal("ForfeitedAmount"),
		NumberofPayments:  f.optionalReal("NumberofPayments"),
		MembershipTotal:   f.optionalReal("MembershipTotal"),
		TotalAmount:       f.optionalReal("TotalAmount"),
		Expiry:            f.optionalDate("Expiry"),
		FinalPayment:      f.optionalDate("FinalPayment"),
		FirstPayment:      f.optionalDate("FirstPayment"),
		MembershipName:    f.optionalString("MembershipName"),
		MembershipStatus:  f.membershipStatus("MembershipStatus"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return row, nil
}
