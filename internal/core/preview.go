package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"
)

// PreviewSummary contains the per-kind counts for an upload preview.
type PreviewSummary struct {
	TotalRows     int  `json:"totalRows"`
	Users         int  `json:"users"`
	Projects      int  `json:"projects"`
	Registrations int  `json:"registrations"`
	Preprints     int  `json:"preprints"`
	Orphans       int  `json:"orphans"`
	HasSummary    bool `json:"hasSummary"`
	HasBranding   bool `json:"hasBranding"`
}

// OrphanPreview is one row that will not appear in any tab.
type OrphanPreview struct {
	RowType string `json:"rowType"`
	Name    string `json:"name"`
}

// ColumnReport lists, for one entity tab, which allowlisted columns the file lacks.
type ColumnReport struct {
	Kind    Kind     `json:"kind"`
	Present int      `json:"present"`
	Missing []string `json:"missing"`
}

// PreviewResponse is the result of a dry-run load. Nothing is swapped in.
type PreviewResponse struct {
	FileName         string          `json:"fileName"`
	Summary          PreviewSummary  `json:"summary"`
	Metrics          []MetricValue   `json:"metrics"`
	Branding         Branding        `json:"branding"`
	Columns          []ColumnReport  `json:"columns"`
	OrphanSamples    []OrphanPreview `json:"orphanSamples"`
	UnknownKinds     []string        `json:"unknownKinds"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

const maxOrphanSamples = 10

// AnalyzeDataset builds a preview of ds.
func AnalyzeDataset(ds *Dataset, name string) *PreviewResponse {
	resp := &PreviewResponse{
		FileName: name,
		Summary: PreviewSummary{
			TotalRows:     ds.RowCount(),
			Users:         ds.Users.Len(),
			Projects:      ds.Projects.Len(),
			Registrations: ds.Registrations.Len(),
			Preprints:     ds.Preprints.Len(),
			Orphans:       len(ds.Orphans),
			HasSummary:    ds.HasSummary(),
			HasBranding:   ds.BrandingRow != nil,
		},
		Metrics:  ds.Summary().Ordered(),
		Branding: ds.Branding(),
	}

	for _, kind := range EntityKinds {
		c, _ := ds.Collection(kind)
		schema := schemaFor(kind, c)
		present := AvailableColumns(schema, c.Columns)
		have := make(map[string]bool, len(present))
		for _, col := range present {
			have[col] = true
		}
		report := ColumnReport{Kind: kind, Present: len(present), Missing: []string{}}
		for _, col := range schema.Columns {
			if !have[col] {
				report.Missing = append(report.Missing, col)
			}
		}
		resp.Columns = append(resp.Columns, report)
	}

	unknown := make(map[string]bool)
	for _, row := range ds.Orphans {
		rowType := row[ds.Discriminator]
		if _, known := ParseKind(rowType); !known {
			unknown[rowType] = true
		}
		if len(resp.OrphanSamples) < maxOrphanSamples {
			resp.OrphanSamples = append(resp.OrphanSamples, OrphanPreview{
				RowType: rowType,
				Name:    row[ColNameOrTitle],
			})
		}
	}
	resp.UnknownKinds = make([]string, 0, len(unknown))
	for k := range unknown {
		resp.UnknownKinds = append(resp.UnknownKinds, k)
	}
	sort.Strings(resp.UnknownKinds)

	return resp
}

// PreviewUpload parses an uploaded export and reports what loading it would
// produce. The current dataset is left untouched.
func (s *Service) PreviewUpload(ctx context.Context, name string, r io.Reader, size int64) (*PreviewResponse, error) {
	startTime := time.Now()

	if r == nil {
		return nil, ErrNoFile
	}
	if size > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, s.opts.MaxFileSize)
	}

	// Previews are dry runs and never queue behind real loads.
	if !s.limiter.TryAcquire() {
		return nil, ErrTooManyUploads
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
	defer cancel()

	limited := &limitedReader{r: io.LimitReader(r, s.opts.MaxFileSize+1), max: s.opts.MaxFileSize}
	ds, err := LoadCSV(ctxReader{ctx: ctx, r: limited}, LoadOptions{
		Discriminator: s.opts.Discriminator,
		Encoding:      s.opts.Encoding,
		Source:        "preview:" + name,
	})
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", name, err)
	}

	resp := AnalyzeDataset(ds, name)
	resp.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	return resp, nil
}
