package db

import (
	"context"
	"embed"
	"log/slog"

	"github.com/studiokicks/leaderboard/tools/migrator"
)

//go:embed migrations/*.sql
var migrations embed.FS

// CreateSchema applies all pending embedded migrations. It is safe to call
// on every startup.
func (db *DB) CreateSchema(ctx context.Context, logger *slog.Logger) error {
	return migrator.Run(ctx, db.DB, migrations, "migrations", logger)
}

// SchemaVersion returns the highest applied migration version
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	return migrator.CurrentVersion(ctx, db.DB)
}

// Gender is a row of the genders lookup table
type Gender struct {
	ID   int64
	Name string
}

// Genders returns the seeded genders lookup table
func (db *DB) Genders(ctx context.Context) ([]Gender, error) {
	rows, err := db.QueryContext(ctx, "SELECT ID, Name FROM genders ORDER BY ID")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Gender
	for rows.Next() {
		var g Gender
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// MembershipStatus is a row of the membership_status lookup table
type MembershipStatus struct {
	ID     int64
	Status string
}

// MembershipStatuses returns the seeded membership_status lookup table
func (db *DB) MembershipStatuses(ctx context.Context) ([]MembershipStatus, error) {
	rows, err := db.QueryContext(ctx, "SELECT ID, Status FROM membership_status ORDER BY ID")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MembershipStatus
	for rows.Next() {
		var m MembershipStatus
		if err := rows.Scan(&m.ID, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
