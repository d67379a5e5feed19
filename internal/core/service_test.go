package core

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const altCSV = "row_type,name_or_title,license\nproject,Delta,MIT\npreprint,P,CC0\n"

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	svc := NewService(opts)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestService_NoDataset(t *testing.T) {
	svc := newTestService(t, Options{})

	_, _, err := svc.Summary()
	assert.ErrorIs(t, err, ErrNoDataset)

	_, err = svc.View(KindProject, EntityState{})
	assert.ErrorIs(t, err, ErrNoDataset)

	_, err = svc.Export(KindProject, EntityState{}, ExportFiltered)
	assert.ErrorIs(t, err, ErrNoDataset)

	_, err = svc.Reload(context.Background())
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestService_LoadFileAndQuery(t *testing.T) {
	svc := newTestService(t, Options{DataFile: sampleCSV})

	ds, err := svc.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Projects.Len())

	m, b, err := svc.Summary()
	require.NoError(t, err)
	assert.EqualValues(t, 150, m.ProjectsTotal)
	assert.Equal(t, "Center for Open Science", b.InstitutionName)

	res, err := svc.Export(KindProject, EntityState{
		Filters: map[string][]string{"license": {"MIT"}},
		Columns: []string{ColNameOrTitle},
	}, ExportFiltered)
	require.NoError(t, err)
	assert.Equal(t, "project_filtered.csv", res.FileName)
	assert.Equal(t, ExportContentType, res.ContentType)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "name_or_title\nAlpha\nBeta\n", string(res.Data))
}

func TestService_ReloadSwapsAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	sample, err := os.ReadFile(sampleCSV)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, sample, 0o600))

	svc := newTestService(t, Options{DataFile: path})
	_, err = svc.Reload(context.Background())
	require.NoError(t, err)

	before, err := svc.View(KindProject, EntityState{})
	require.NoError(t, err)
	held, err := svc.Dataset()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(altCSV), 0o600))
	_, err = svc.Reload(context.Background())
	require.NoError(t, err)

	after, err := svc.View(KindProject, EntityState{})
	require.NoError(t, err)

	// Earlier results keep describing the dataset they were built from.
	assert.Equal(t, 3, before.Page.TotalRows)
	assert.Equal(t, 3, held.Projects.Len())
	assert.Equal(t, 1, after.Page.TotalRows)
	assert.Equal(t, "Delta", after.Page.Rows[0][ColNameOrTitle])
}

func TestService_FailedLoadKeepsCurrent(t *testing.T) {
	svc := newTestService(t, Options{DataFile: sampleCSV})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	_, err = svc.LoadUpload(context.Background(), "bad.csv", strings.NewReader("kind,name\nx,y\n"), 0)
	require.ErrorIs(t, err, ErrMissingDiscriminatorColumn)

	ds, err := svc.Dataset()
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, ds.Source)
}

func TestService_LoadUpload(t *testing.T) {
	svc := newTestService(t, Options{})

	ctx := ContextWithIPAddress(context.Background(), "203.0.113.7")
	ds, err := svc.LoadUpload(ctx, "alt.csv", strings.NewReader(altCSV), int64(len(altCSV)))
	require.NoError(t, err)
	assert.Equal(t, "upload:alt.csv", ds.Source)
	assert.Equal(t, 1, ds.Preprints.Len())

	recs, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "alt.csv", recs[0].FileName)
	assert.Equal(t, "203.0.113.7", recs[0].IPAddress)
	assert.Equal(t, 2, recs[0].Rows)
	assert.EqualValues(t, len(altCSV), recs[0].Bytes)
	assert.NotEmpty(t, recs[0].ID)
}

func TestService_LoadUploadTooLarge(t *testing.T) {
	svc := newTestService(t, Options{MaxFileSize: 16})

	// Declared size over the limit is rejected up front.
	_, err := svc.LoadUpload(context.Background(), "big.csv", strings.NewReader(altCSV), 1<<20)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// Undeclared size is caught while reading.
	_, err = svc.LoadUpload(context.Background(), "big.csv", strings.NewReader(altCSV), 0)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Dataset()
	assert.ErrorIs(t, err, ErrNoDataset)
	assert.Equal(t, 0, svc.UploadStatus().Active)
}

func TestService_LoadUploadCancelled(t *testing.T) {
	svc := newTestService(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.LoadUpload(ctx, "alt.csv", bytes.NewReader([]byte(altCSV)), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_PreviewUpload(t *testing.T) {
	svc := newTestService(t, Options{})

	sample, err := os.ReadFile(sampleCSV)
	require.NoError(t, err)

	resp, err := svc.PreviewUpload(context.Background(), "sample.csv", bytes.NewReader(sample), int64(len(sample)))
	require.NoError(t, err)

	assert.Equal(t, 11, resp.Summary.TotalRows)
	assert.Equal(t, 3, resp.Summary.Projects)
	assert.Equal(t, 2, resp.Summary.Orphans)
	assert.True(t, resp.Summary.HasSummary)
	assert.True(t, resp.Summary.HasBranding)
	assert.Equal(t, []string{"widget"}, resp.UnknownKinds)
	assert.Len(t, resp.Metrics, 12)
	assert.Len(t, resp.Columns, len(EntityKinds))

	for _, report := range resp.Columns {
		if report.Kind == KindProject {
			assert.Contains(t, report.Missing, "created_date")
			assert.NotContains(t, report.Missing, "license")
		}
	}

	// A preview never replaces the current dataset.
	_, err = svc.Dataset()
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestService_PreviewDoesNotQueue(t *testing.T) {
	limiter := NewUploadLimiter(1, 5*time.Second)
	svc := newTestService(t, Options{Limiter: limiter})

	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	start := time.Now()
	_, err := svc.PreviewUpload(context.Background(), "alt.csv", strings.NewReader(altCSV), int64(len(altCSV)))
	assert.ErrorIs(t, err, ErrTooManyUploads)
	assert.Less(t, time.Since(start), time.Second, "preview should fail fast instead of waiting for a slot")
}

func TestService_UploadStatusReportsInFlightLoads(t *testing.T) {
	svc := newTestService(t, Options{})
	pr, pw := io.Pipe()

	type result struct {
		ds  *Dataset
		err error
	}
	done := make(chan result, 1)
	go func() {
		ds, err := svc.LoadUpload(context.Background(), "slow.csv", pr, int64(len(altCSV)))
		done <- result{ds, err}
	}()

	_, err := pw.Write([]byte(altCSV[:10]))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		loads := svc.UploadStatus().Loads
		return len(loads) == 1 && loads[0].BytesRead == 10
	}, time.Second, 5*time.Millisecond)

	load := svc.UploadStatus().Loads[0]
	assert.Equal(t, "slow.csv", load.FileName)
	assert.Equal(t, 10*100/len(altCSV), load.Percent)
	assert.NotEmpty(t, load.ID)

	_, err = pw.Write([]byte(altCSV[10:]))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.ds.Projects.Len())
	assert.Empty(t, svc.UploadStatus().Loads)

	recs, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, load.ID, recs[0].ID, "history record reuses the load ID")
}
