package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dataset_loads (
    id             TEXT PRIMARY KEY,
    source         TEXT NOT NULL,
    file_name      TEXT NOT NULL,
    row_count      INTEGER NOT NULL,
    users          INTEGER NOT NULL,
    projects       INTEGER NOT NULL,
    registrations  INTEGER NOT NULL,
    preprints      INTEGER NOT NULL,
    orphans        INTEGER NOT NULL,
    has_summary    INTEGER NOT NULL,
    bytes          INTEGER NOT NULL,
    duration_ms    INTEGER NOT NULL,
    loaded_at      TEXT NOT NULL,
    ip_address     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_dataset_loads_loaded_at ON dataset_loads (loaded_at);
`

// sqliteTimeFormat sorts lexically in time order.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore records loads in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
// ":memory:" gives a private database, useful in tests.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(ctx context.Context, rec LoadRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dataset_loads (id, source, file_name, row_count, users, projects,
			registrations, preprints, orphans, has_summary, bytes, duration_ms, loaded_at, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.FileName, rec.Rows, rec.Users, rec.Projects,
		rec.Registrations, rec.Preprints, rec.Orphans, rec.HasSummary, rec.Bytes,
		rec.Duration.Milliseconds(), rec.LoadedAt.UTC().Format(sqliteTimeFormat), rec.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("insert load record: %w", err)
	}
	return nil
}

// Recent implements Store.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]LoadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, file_name, row_count, users, projects, registrations,
			preprints, orphans, has_summary, bytes, duration_ms, loaded_at, ip_address
		FROM dataset_loads
		ORDER BY loaded_at DESC, rowid DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query load records: %w", err)
	}
	defer rows.Close()

	var records []LoadRecord
	for rows.Next() {
		var rec LoadRecord
		var durationMS int64
		var loadedAt string
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.FileName, &rec.Rows, &rec.Users,
			&rec.Projects, &rec.Registrations, &rec.Preprints, &rec.Orphans,
			&rec.HasSummary, &rec.Bytes, &durationMS, &loadedAt, &rec.IPAddress); err != nil {
			return nil, fmt.Errorf("scan load record: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if rec.LoadedAt, err = time.Parse(sqliteTimeFormat, loadedAt); err != nil {
			return nil, fmt.Errorf("parse loaded_at %q: %w", loadedAt, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Reset implements Store.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dataset_loads`); err != nil {
		return fmt.Errorf("reset load records: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
