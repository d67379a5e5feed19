// Package history keeps an audit trail of dataset loads.
//
// Only load metadata is stored (who loaded which file, when, and how many rows
// of each kind it held); the dataset itself always lives in memory. The
// backend is chosen by DSN:
//
//	""                      in-memory ring buffer
//	postgres://... | postgresql://...  PostgreSQL via pgx
//	sqlite:path | file:path | *.db     SQLite via modernc.org/sqlite
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultLimit bounds how many records Recent returns when no limit is given.
const DefaultLimit = 50

// ErrUnsupportedDSN is returned by Open for DSNs no backend understands.
var ErrUnsupportedDSN = errors.New("unsupported history dsn")

// LoadRecord describes one successful dataset load.
type LoadRecord struct {
	ID            string        `json:"id"`
	Source        string        `json:"source"`
	FileName      string        `json:"fileName"`
	Rows          int           `json:"rows"`
	Users         int           `json:"users"`
	Projects      int           `json:"projects"`
	Registrations int           `json:"registrations"`
	Preprints     int           `json:"preprints"`
	Orphans       int           `json:"orphans"`
	HasSummary    bool          `json:"hasSummary"`
	Bytes         int64         `json:"bytes"`
	Duration      time.Duration `json:"durationNs"`
	LoadedAt      time.Time     `json:"loadedAt"`
	IPAddress     string        `json:"ipAddress,omitempty"`
}

// Store persists load records.
type Store interface {
	// Record appends a load record.
	Record(ctx context.Context, rec LoadRecord) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]LoadRecord, error)

	// Reset deletes every record.
	Reset(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Open returns the Store for dsn. capacity bounds the in-memory backend.
func Open(ctx context.Context, dsn string, capacity int) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)

	switch {
	case dsn == "":
		return NewMemoryStore(capacity), nil
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	case strings.HasPrefix(lower, "sqlite:"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn[len("sqlite:"):], "//"))
	case strings.HasPrefix(lower, "file:"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return OpenSQLite(ctx, dsn)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, redact(dsn))
}

// redact hides anything that looks like credentials in a DSN.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
