package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/studiokicks/leaderboard/internal/model"
)

// =============================================================================
// Entity upserts
// =============================================================================

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var (
	clientColumns = []string{
		"ID", "FullName", "Gender", "Email", "Birthdate", "Membership", "PerfectScanID",
		"CreatedDate", "StartDate", "EnrollmentDate", "LastAttended", "Photo", "PrimaryNumber",
	}
	attendanceColumns = []string{
		"Attendee", "Event", "ModifiedDate", "Renewed", "Status", "TimeAttended",
	}
	eventColumns = []string{
		"ID", "CreatedDate", "ModifiedDate", "Details", "EndTime", "Price", "StartTime", "Subject", "Teacher",
	}
	teacherColumns = []string{
		"ID", "CreatedDate", "Email", "FullName", "JobTitle", "MobilePhone", "ModifiedDate", "Position",
	}
	transactionColumns = []string{
		"ID", "CreatedDate", "DurationDays", "EachPayment", "Expiry", "FinalPayment", "FirstPayment",
		"ForfeitedAmount", "MembershipName", "MembershipStatus", "MembershipTotal", "ModifiedDate",
		"NumberofPayments", "Ongoing", "SessionsLeft", "SessionsPurchased", "TotalAmount",
	}

	upsertClient      = upsertStatement("clients", []string{"ID"}, clientColumns)
	upsertAttendance  = upsertStatement("attendance", []string{"Attendee", "Event"}, attendanceColumns)
	upsertEvent       = upsertStatement("events", []string{"ID"}, eventColumns)
	upsertTeacher     = upsertStatement("teachers", []string{"ID"}, teacherColumns)
	upsertTransaction = upsertStatement("transactions", []string{"ID"}, transactionColumns)
)

// upsertStatement builds INSERT ... ON CONFLICT (key) DO UPDATE SET for every non-key column
func upsertStatement(table string, key, columns []string) string {
	isKey := make(map[string]bool, len(key))
	for _, k := range key {
		isKey[k] = true
	}

	placeholders := make([]string, len(columns))
	var updates []string
	for i, c := range columns {
		placeholders[i] = "?"
		if !isKey[c] {
			updates = append(updates, c+" = excluded."+c)
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(key, ", "),
		strings.Join(updates, ", "),
	)
}

// Upsert inserts row or replaces the stored row with the same key.
// Upserting the same row twice leaves one stored row.
func (db *DB) Upsert(ctx context.Context, row model.Row) error {
	return upsert(ctx, db.DB, row)
}

// Upsert inserts or replaces row within a transaction
func (tx *Tx) Upsert(ctx context.Context, row model.Row) error {
	return upsert(ctx, tx.Tx, row)
}

func upsert(ctx context.Context, ex execer, row model.Row) error {
	var (
		query string
		args  []any
	)

	switch r := row.(type) {
	case *model.ClientRow:
		query = upsertClient
		args = []any{
			r.ID, r.FullName, r.Gender, r.Email, r.Birthdate, r.Membership, r.PerfectScanID,
			r.CreatedDate, r.StartDate, r.EnrollmentDate, r.LastAttended, r.Photo, r.PrimaryNumber,
		}
	case *model.AttendanceRow:
		event := ""
		if r.Event != nil {
			event = *r.Event
		}
		query = upsertAttendance
		args = []any{r.Attendee, event, r.ModifiedDate, r.Renewed, r.Status, r.TimeAttended}
	case *model.EventRow:
		query = upsertEvent
		args = []any{
			r.ID, r.CreatedDate, r.ModifiedDate, r.Details, r.EndTime, r.Price, r.StartTime, r.Subject, r.Teacher,
		}
	case *model.TeacherRow:
		query = upsertTeacher
		args = []any{
			r.ID, r.CreatedDate, r.Email, r.FullName, r.JobTitle, r.MobilePhone, r.ModifiedDate, r.Position,
		}
	case *model.TransactionRow:
		query = upsertTransaction
		args = []any{
			r.ID, r.CreatedDate, r.DurationDays, r.EachPayment, r.Expiry, r.FinalPayment, r.FirstPayment,
			r.ForfeitedAmount, r.MembershipName, r.MembershipStatus, r.MembershipTotal, r.ModifiedDate,
			r.NumberofPayments, r.Ongoing, r.SessionsLeft, r.SessionsPurchased, r.TotalAmount,
		}
	default:
		return fmt.Errorf("db: cannot upsert %T", row)
	}

	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", row.Entity(), err)
	}
	return nil
}

// =============================================================================
// Reads
// =============================================================================

// GetClient retrieves a client by ID
func (db *DB) GetClient(ctx context.Context, id string) (*model.ClientRow, error) {
	c := &model.ClientRow{}
	var gender sql.NullInt64

	err := db.QueryRowContext(ctx, `
		SELECT ID, FullName, Gender, Email, Birthdate, Membership, PerfectScanID,
			CreatedDate, StartDate, EnrollmentDate, LastAttended, Photo, PrimaryNumber
		FROM clients
		WHERE ID = ?
	`, id).Scan(
		&c.ID, &c.FullName, &gender, &c.Email, &c.Birthdate, &c.Membership, &c.PerfectScanID,
		&c.CreatedDate, &c.StartDate, &c.EnrollmentDate, &c.LastAttended, &c.Photo, &c.PrimaryNumber,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if gender.Valid {
		g := model.Gender(gender.Int64)
		c.Gender = &g
	}
	return c, nil
}

// MaxFreshness returns the largest freshness value stored for entity, or
// false when its table is empty
func (db *DB) MaxFreshness(ctx context.Context, entity model.EntityType) (int64, bool, error) {
	var max sql.NullInt64
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", entity.FreshnessColumn(), entity.Table())
	if err := db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return 0, false, err
	}
	return max.Int64, max.Valid, nil
}
