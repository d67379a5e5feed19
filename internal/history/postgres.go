package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS dataset_loads (
    id             UUID PRIMARY KEY,
    source         TEXT NOT NULL,
    file_name      TEXT NOT NULL,
    row_count      INTEGER NOT NULL,
    users          INTEGER NOT NULL,
    projects       INTEGER NOT NULL,
    registrations  INTEGER NOT NULL,
    preprints      INTEGER NOT NULL,
    orphans        INTEGER NOT NULL,
    has_summary    BOOLEAN NOT NULL,
    bytes          BIGINT NOT NULL,
    duration_ms    BIGINT NOT NULL,
    loaded_at      TIMESTAMPTZ NOT NULL,
    ip_address     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_dataset_loads_loaded_at ON dataset_loads (loaded_at DESC);
`

// PostgresStore records loads in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, verifies the connection and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Record implements Store.
func (p *PostgresStore) Record(ctx context.Context, rec LoadRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO dataset_loads (id, source, file_name, row_count, users, projects,
			registrations, preprints, orphans, has_summary, bytes, duration_ms, loaded_at, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.Source, rec.FileName, rec.Rows, rec.Users, rec.Projects,
		rec.Registrations, rec.Preprints, rec.Orphans, rec.HasSummary, rec.Bytes,
		rec.Duration.Milliseconds(), rec.LoadedAt, rec.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("insert load record: %w", err)
	}
	return nil
}

// Recent implements Store.
func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]LoadRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, source, file_name, row_count, users, projects, registrations,
			preprints, orphans, has_summary, bytes, duration_ms, loaded_at, ip_address
		FROM dataset_loads
		ORDER BY loaded_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query load records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LoadRecord, error) {
		var rec LoadRecord
		var durationMS int64
		err := row.Scan(&rec.ID, &rec.Source, &rec.FileName, &rec.Rows, &rec.Users,
			&rec.Projects, &rec.Registrations, &rec.Preprints, &rec.Orphans,
			&rec.HasSummary, &rec.Bytes, &durationMS, &rec.LoadedAt, &rec.IPAddress)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan load records: %w", err)
	}
	return records, nil
}

// Reset implements Store.
func (p *PostgresStore) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `TRUNCATE dataset_loads`); err != nil {
		return fmt.Errorf("reset load records: %w", err)
	}
	return nil
}

// Close implements Store.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
