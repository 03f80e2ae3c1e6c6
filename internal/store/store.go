// Package store provides SQLite persistence for diskmonitor.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

// Store wraps a SQLite database for diskmonitor data persistence.
type Store struct {
	db *sql.DB
}

// New opens or creates a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertDrive inserts or updates a drive identity record. first_seen is kept
// from the original row on update.
func (s *Store) UpsertDrive(id model.DriveIdentity, firstSeen, lastSeen int64) error {
	pathsJSON, err := json.Marshal(id.Paths)
	if err != nil {
		return fmt.Errorf("marshaling drive paths: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO drives (key, serial, model, firmware, iface, paths_json, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			serial = excluded.serial,
			model = excluded.model,
			firmware = excluded.firmware,
			iface = excluded.iface,
			paths_json = excluded.paths_json,
			last_seen = excluded.last_seen`,
		id.Key, id.Serial, id.Model, id.Firmware, string(id.Interface),
		string(pathsJSON), firstSeen, lastSeen,
	)
	if err != nil {
		return fmt.Errorf("upserting drive %s: %w", id.Key, err)
	}
	return nil
}

// InsertHistoryEntry records one per-cycle health row. Re-inserting the same
// (cycle, drive) pair replaces the identical row, so retried cycles stay
// idempotent at the persistence layer too.
func (s *Store) InsertHistoryEntry(driveKey string, e model.HistoryEntry) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO health_history
		(ts, drive_key, score, status, reallocated, pending, uncorrectable,
		 read_errors, power_on_hours, temperature, io_load)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, driveKey, e.Score, int(e.Status),
		e.Reallocated, e.Pending, e.Uncorrectable,
		e.ReadErrors, e.PowerOnHours, e.Temperature, e.IOLoad,
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

// InsertSnapshot records a full serialized snapshot keyed by its cycle
// timestamp and drive key.
func (s *Store) InsertSnapshot(snap *model.SmartSnapshot) error {
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO smart_snapshots (ts, drive_key, snapshot_json)
		VALUES (?, ?, ?)`,
		snap.Timestamp, snap.Identity.Key, string(snapJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// InsertAlert logs an alert.
func (s *Store) InsertAlert(ts int64, alertType, driveKey, subject, message, severity string) error {
	_, err := s.db.Exec(`
		INSERT INTO alert_log (ts, alert_type, drive_key, subject, message, severity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ts, alertType, driveKey, subject, message, severity,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// QueryHistory returns a drive's health rows at or after since, oldest first.
func (s *Store) QueryHistory(driveKey string, since int64) ([]model.HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT ts, score, status, reallocated, pending, uncorrectable,
		       read_errors, power_on_hours, temperature, io_load
		FROM health_history
		WHERE drive_key = ? AND ts >= ?
		ORDER BY ts ASC`, driveKey, since)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// RecentHistory returns a drive's newest limit health rows, oldest first.
// This is the warm-start window loader.
func (s *Store) RecentHistory(driveKey string, limit int) ([]model.HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT ts, score, status, reallocated, pending, uncorrectable,
		       read_errors, power_on_hours, temperature, io_load
		FROM (
			SELECT * FROM health_history
			WHERE drive_key = ?
			ORDER BY ts DESC LIMIT ?
		) ORDER BY ts ASC`, driveKey, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent history: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var status int
		if err := rows.Scan(&e.Timestamp, &e.Score, &status, &e.Reallocated,
			&e.Pending, &e.Uncorrectable, &e.ReadErrors, &e.PowerOnHours,
			&e.Temperature, &e.IOLoad); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		e.Status = model.Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LoadDrives returns every known drive with its newest stored snapshot, for
// warm-starting the registry at boot. Drives that never produced a snapshot
// come back with a nil Snapshot.
func (s *Store) LoadDrives() ([]model.DriveState, error) {
	rows, err := s.db.Query(`
		SELECT d.key, d.serial, d.model, d.firmware, d.iface, d.paths_json,
		       d.first_seen, d.last_seen, sn.snapshot_json
		FROM drives d
		LEFT JOIN smart_snapshots sn ON sn.drive_key = d.key
			AND sn.ts = (SELECT MAX(ts) FROM smart_snapshots WHERE drive_key = d.key)
		ORDER BY d.key ASC`)
	if err != nil {
		return nil, fmt.Errorf("loading drives: %w", err)
	}
	defer rows.Close()

	var states []model.DriveState
	for rows.Next() {
		var (
			st        model.DriveState
			iface     string
			pathsJSON string
			snapJSON  sql.NullString
		)
		if err := rows.Scan(&st.Identity.Key, &st.Identity.Serial, &st.Identity.Model,
			&st.Identity.Firmware, &iface, &pathsJSON,
			&st.FirstSeen, &st.LastSeen, &snapJSON); err != nil {
			return nil, fmt.Errorf("scanning drive row: %w", err)
		}
		st.Identity.Interface = model.Interface(iface)
		if err := json.Unmarshal([]byte(pathsJSON), &st.Identity.Paths); err != nil {
			return nil, fmt.Errorf("decoding paths for drive %s: %w", st.Identity.Key, err)
		}
		if snapJSON.Valid {
			var snap model.SmartSnapshot
			if err := json.Unmarshal([]byte(snapJSON.String), &snap); err != nil {
				return nil, fmt.Errorf("decoding snapshot for drive %s: %w", st.Identity.Key, err)
			}
			st.Snapshot = &snap
		}
		states = append(states, st)
	}
	return states, rows.Err()
}
