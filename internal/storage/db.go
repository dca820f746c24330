// Package storage persists the device cache: every participant ever seen,
// so the roster can show known-but-offline devices across restarts.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/dverbeek/panocast/internal/proto"
)

// DB wraps the participant's SQLite database.
type DB struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens or creates the database in the given directory.
func Open(configDir string) (*DB, error) {
	dbPath := filepath.Join(configDir, "data.db")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent reads while the tracker writes
	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS devices (
			id           TEXT PRIMARY KEY,
			display_name TEXT DEFAULT '',
			role         TEXT DEFAULT 'viewer',
			last_seen_ms INTEGER DEFAULT 0
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create devices table: %w", err)
	}

	return &DB{db: db, path: dbPath}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// UpsertDevice records a participant's identity and last-seen time.
func (d *DB) UpsertDevice(rec proto.DeviceRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO devices (id, display_name, role, last_seen_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE devices.display_name END,
			role         = excluded.role,
			last_seen_ms = excluded.last_seen_ms
	`, rec.ID, rec.DisplayName, string(rec.Role), rec.LastSeenMillis)
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", rec.ID, err)
	}
	return nil
}

// ListDevices returns every cached device, most recently seen first. Battery
// and connection status are live-only and come back zero-valued.
func (d *DB) ListDevices() ([]proto.DeviceRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, display_name, role, last_seen_ms
		FROM devices ORDER BY last_seen_ms DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var recs []proto.DeviceRecord
	for rows.Next() {
		var rec proto.DeviceRecord
		var role string
		if err := rows.Scan(&rec.ID, &rec.DisplayName, &role, &rec.LastSeenMillis); err != nil {
			return nil, err
		}
		rec.Role = proto.Role(role)
		rec.Status = proto.StatusDisconnected
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteDevice forgets a cached device.
func (d *DB) DeleteDevice(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`DELETE FROM devices WHERE id = ?`, id)
	return err
}
