package db

import (
	"context"
	"database/sql"
	"strings"
)

// GetSetting returns the value stored under key or ErrNotFound
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting stores value under key, replacing any previous value
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, db.DB, key, value)
}

// SetSetting stores value under key within a transaction
func (tx *Tx) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, tx.Tx, key, value)
}

func setSetting(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}

// DeleteSetting removes key; deleting a missing key is not an error
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	return deleteSetting(ctx, db.DB, key)
}

// DeleteSetting removes key within a transaction
func (tx *Tx) DeleteSetting(ctx context.Context, key string) error {
	return deleteSetting(ctx, tx.Tx, key)
}

func deleteSetting(ctx context.Context, ex execer, key string) error {
	_, err := ex.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

// SettingsWithPrefix returns every setting whose key starts with prefix, keyed
// by the remainder of the key
func (db *DB) SettingsWithPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT key, value FROM settings WHERE substr(key, 1, ?) = ?", len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(key, prefix)] = value
	}
	return out, rows.Err()
}
