package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/osfidash/internal/history"
)

var (
	// ErrNoDataset is returned by read operations before the first successful load.
	ErrNoDataset = errors.New("no dataset loaded")

	// ErrUnknownEntity is returned for kinds that are not browsable collections.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrFileTooLarge is returned when an upload exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when an upload carries no file or no data file is configured.
	ErrNoFile = errors.New("no file provided")
)

// DefaultMaxFileSize is the upload limit when none is configured (100MB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// LoadTimeout bounds a single load.
var LoadTimeout = 2 * time.Minute

// Options configures a Service.
type Options struct {
	DataFile      string // loaded by Reload; may be empty
	Discriminator string
	Encoding      string
	MaxFileSize   int64

	Limiter  *UploadLimiter
	Sessions *SessionStore
	History  history.Store
}

// Service owns the current dataset and everything that serves views of it.
//
// The dataset sits behind an atomic pointer: a load builds a complete new
// Dataset and swaps it in, so a reader holds either the old or the new value
// and never a partly built one.
type Service struct {
	opts     Options
	current  atomic.Pointer[Dataset]
	limiter  *UploadLimiter
	sessions *SessionStore
	history  history.Store

	// loadMu orders swaps with their history records.
	loadMu sync.Mutex

	// inflight maps load IDs to *inflightLoad while a parse runs.
	inflight sync.Map
}

type inflightLoad struct {
	name    string
	started time.Time
	counter *CountingReader
}

// NewService creates a Service. Nil collaborators get in-memory defaults.
func NewService(opts Options) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Limiter == nil {
		opts.Limiter = NewUploadLimiter(DefaultMaxConcurrentUploads, DefaultMaxWaitTime)
	}
	if opts.Sessions == nil {
		opts.Sessions = NewSessionStore(DefaultSessionTTL, DefaultPageSize)
	}
	if opts.History == nil {
		opts.History = history.NewMemoryStore(history.DefaultLimit)
	}

	return &Service{
		opts:     opts,
		limiter:  opts.Limiter,
		sessions: opts.Sessions,
		history:  opts.History,
	}
}

// Sessions returns the session store.
func (s *Service) Sessions() *SessionStore { return s.sessions }

// UploadStatus reports upload slot usage and the progress of running loads.
func (s *Service) UploadStatus() UploadLimiterStatus {
	status := s.limiter.Status()
	s.inflight.Range(func(key, value any) bool {
		l := value.(*inflightLoad)
		status.Loads = append(status.Loads, LoadProgress{
			ID:        key.(string),
			FileName:  l.name,
			BytesRead: l.counter.BytesRead(),
			Percent:   l.counter.Progress(),
			StartedAt: l.started,
		})
		return true
	})
	slices.SortFunc(status.Loads, func(a, b LoadProgress) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return status
}

// WaitForUploads blocks until in-flight uploads finish or ctx ends.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// MaxFileSize returns the upload size limit in bytes.
func (s *Service) MaxFileSize() int64 { return s.opts.MaxFileSize }

// Dataset returns the current dataset.
func (s *Service) Dataset() (*Dataset, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrNoDataset
	}
	return ds, nil
}

// LoadFile loads the export at path and makes it current.
func (s *Service) LoadFile(ctx context.Context, path string) (*Dataset, error) {
	if path == "" {
		return nil, ErrNoFile
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return s.load(ctx, f, path, filepath.Base(path), size)
}

// Reload re-reads the configured data file.
func (s *Service) Reload(ctx context.Context) (*Dataset, error) {
	return s.LoadFile(ctx, s.opts.DataFile)
}

// LoadUpload loads an uploaded export and makes it current.
// At most MaxFileSize bytes are read; concurrent uploads are bounded by the limiter.
func (s *Service) LoadUpload(ctx context.Context, name string, r io.Reader, size int64) (*Dataset, error) {
	if r == nil {
		return nil, ErrNoFile
	}
	if size > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, s.opts.MaxFileSize)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	limited := &limitedReader{r: io.LimitReader(r, s.opts.MaxFileSize+1), max: s.opts.MaxFileSize}
	return s.load(ctx, limited, "upload:"+name, name, size)
}

// limitedReader fails instead of silently truncating at max bytes.
type limitedReader struct {
	r   io.Reader
	n   int64
	max int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		return n, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, l.max)
	}
	return n, err
}

// ctxReader stops a parse once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func (s *Service) load(ctx context.Context, r io.Reader, source, name string, size int64) (*Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
	defer cancel()

	start := time.Now()
	id := uuid.New().String()
	counter := NewCountingReader(ctxReader{ctx: ctx, r: r}, size)
	s.inflight.Store(id, &inflightLoad{name: name, started: start, counter: counter})
	defer s.inflight.Delete(id)

	ds, err := LoadCSV(counter, LoadOptions{
		Discriminator: s.opts.Discriminator,
		Encoding:      s.opts.Encoding,
		Source:        source,
	})
	if err != nil {
		slog.Warn("dataset load failed", "source", source, "error", err)
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	s.loadMu.Lock()
	s.current.Store(ds)
	rec := history.LoadRecord{
		ID:            id,
		Source:        source,
		FileName:      name,
		Rows:          ds.RowCount(),
		Users:         ds.Users.Len(),
		Projects:      ds.Projects.Len(),
		Registrations: ds.Registrations.Len(),
		Preprints:     ds.Preprints.Len(),
		Orphans:       len(ds.Orphans),
		HasSummary:    ds.HasSummary(),
		Bytes:         counter.BytesRead(),
		Duration:      time.Since(start),
		LoadedAt:      ds.LoadedAt,
		IPAddress:     GetIPAddressFromContext(ctx),
	}
	if err := s.history.Record(ctx, rec); err != nil {
		slog.Warn("failed to record load history", "error", err)
	}
	s.loadMu.Unlock()

	slog.Info("dataset loaded",
		"source", source,
		"rows", rec.Rows,
		"users", rec.Users,
		"projects", rec.Projects,
		"registrations", rec.Registrations,
		"preprints", rec.Preprints,
		"orphans", rec.Orphans,
		"has_summary", rec.HasSummary,
		"bytes", rec.Bytes,
		"duration_ms", rec.Duration.Milliseconds(),
		"ip", rec.IPAddress,
		"user_agent", GetUserAgentFromContext(ctx),
	)
	return ds, nil
}

// Summary returns the headline metrics and branding of the current dataset.
func (s *Service) Summary() (Metrics, Branding, error) {
	ds, err := s.Dataset()
	if err != nil {
		return Metrics{}, Branding{}, err
	}
	return ds.Summary(), ds.Branding(), nil
}

// View computes one entity tab for st against the current dataset.
func (s *Service) View(kind Kind, st EntityState) (EntityView, error) {
	ds, err := s.Dataset()
	if err != nil {
		return EntityView{}, err
	}
	return BuildView(ds, kind, st)
}

// ExportResult is a ready-to-serve CSV download.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
	Rows        int
}

// Export serializes the filtered (or current-page) rows of one entity tab.
func (s *Service) Export(kind Kind, st EntityState, scope ExportScope) (ExportResult, error) {
	ds, err := s.Dataset()
	if err != nil {
		return ExportResult{}, err
	}
	data, n, err := ExportView(ds, kind, st, scope)
	if err != nil {
		return ExportResult{}, err
	}
	return ExportResult{
		FileName:    ExportFileName(kind),
		ContentType: ExportContentType,
		Data:        data,
		Rows:        n,
	}, nil
}

// History returns up to n recent load records, newest first.
func (s *Service) History(ctx context.Context, n int) ([]history.LoadRecord, error) {
	return s.history.Recent(ctx, n)
}

// ResetHistory deletes every load record.
func (s *Service) ResetHistory(ctx context.Context) error {
	return s.history.Reset(ctx)
}

// Close releases the history backend.
func (s *Service) Close() error {
	return s.history.Close()
}
