package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/osfidash/internal/config"
	"github.com/JonMunkholm/osfidash/internal/core"
)

const webCSV = `row_type,name_or_title,osf_link,license,resource_type,storage_region,total_users,report_month,branding_institution_name
summary,,,,,,42,2026-09,Test University
user,Ada,https://osf.io/u1abc/,,,,,,
project,Alpha,https://osf.io/kr68a/,MIT,Project,United States,,,
project,Beta,https://osf.io/bx22c/,MIT,Project,Germany,,,
project,Gamma,https://osf.io/cc33d/,CC0,Analysis,United States,,,
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) string { return "" })
	require.NoError(t, err)
	cfg.Rate.Enabled = false
	return *cfg
}

type testServer struct {
	*Server
	svc     *core.Service
	cookies []*http.Cookie
}

func newTestServer(t *testing.T, cfg config.Config, loaded bool) *testServer {
	t.Helper()

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(webCSV), 0o600))

	svc := core.NewService(core.Options{DataFile: path, MaxFileSize: 1 << 20})
	t.Cleanup(func() { _ = svc.Close() })
	if loaded {
		_, err := svc.Reload(context.Background())
		require.NoError(t, err)
	}

	s := NewServer(svc, cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &testServer{Server: s, svc: svc}
}

// do sends a request, carrying cookies between calls like a browser.
func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range ts.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	if set := rec.Result().Cookies(); len(set) > 0 {
		ts.cookies = set
	}
	return rec
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func multipartUpload(t *testing.T, target, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// ---- Page Tests ----

func TestSummaryPage(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	rec := ts.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Test University")
	assert.Contains(t, body, "Report month: 2026-09")
	assert.Contains(t, body, "Total Users")
	assert.Contains(t, body, `data-metric="users_total"`)
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestSummaryPage_NoDataset(t *testing.T) {
	ts := newTestServer(t, testConfig(t), false)

	rec := ts.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No dataset loaded")
	assert.Contains(t, rec.Body.String(), `action="/upload"`)
}

func TestEntityPage_SessionState(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	rec := ts.get(t, "/entities/project?"+url.Values{"filter[license]": {"MIT"}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "3 Projects")
	assert.Contains(t, rec.Body.String(), "2 matching")
	require.NotEmpty(t, ts.cookies, "session cookie set")
	assert.Equal(t, SessionCookie, ts.cookies[0].Name)

	// The filter sticks to the session.
	rec = ts.get(t, "/entities/projects")
	body := rec.Body.String()
	assert.Contains(t, body, "Alpha")
	assert.Contains(t, body, "Beta")
	assert.NotContains(t, body, "Gamma")

	// Another browser starts clean.
	other := &testServer{Server: ts.Server, svc: ts.svc}
	assert.Contains(t, other.get(t, "/entities/project").Body.String(), "Gamma")

	rec = ts.get(t, "/entities/project?reset=1")
	assert.Contains(t, rec.Body.String(), "Gamma")
}

func TestEntityPage_UnknownKind(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	rec := ts.get(t, "/entities/widget")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ENT001")
}

func TestEntityPage_HTMXFragment(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	req := httptest.NewRequest(http.MethodGet, "/entities/user", nil)
	req.Header.Set("HX-Request", "true")
	rec := ts.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<!DOCTYPE html>")
	assert.Contains(t, rec.Body.String(), "1 Users")
}

func TestHistoryPage(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	rec := ts.get(t, "/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "export.csv")
}

// ---- API Tests ----

func TestAPI_Summary(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	rec := ts.get(t, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Metrics, 12)
	assert.Equal(t, float64(42), resp.Values[core.MetricUsersTotal])
	assert.Equal(t, "Test University", resp.Branding.InstitutionName)
	assert.True(t, resp.HasSummary)
}

func TestAPI_NoDataset(t *testing.T) {
	ts := newTestServer(t, testConfig(t), false)

	rec := ts.get(t, "/api/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "DS002", resp.Code)
	assert.NotEmpty(t, resp.Action)
}

func TestAPI_Entity(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	rec := ts.get(t, "/api/entities/project?page_size=10&columns=license,name_or_title&filter[license]=MIT")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EntityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Filtered)
	assert.Equal(t, 10, resp.PageSize)
	assert.Equal(t, 1, resp.TotalPages)
	assert.Equal(t, []string{"name_or_title", "license"}, resp.Columns)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "Alpha", resp.Rows[0]["name_or_title"])
}

func TestAPI_PageClamps(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	rec := ts.get(t, "/api/entities/project?page_size=10&page=99")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EntityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Page)
}

func TestAPI_ExportUsesSession(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	ts.get(t, "/entities/project?filter[license]=MIT&customize=1&columns=name_or_title&columns=license")

	rec := ts.get(t, "/api/export/project")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="project_filtered.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "name_or_title,license\nAlpha,MIT\nBeta,MIT\n", rec.Body.String())

	rec = ts.get(t, "/api/export/project?page_size=10&page=1&scope=page")
	assert.Equal(t, "name_or_title,license\nAlpha,MIT\nBeta,MIT\n", rec.Body.String())
}

func TestAPI_UploadAndHistory(t *testing.T) {
	ts := newTestServer(t, testConfig(t), false)

	upload := "row_type,name_or_title\nproject,Solo\npreprint,P1\n"
	rec := ts.do(t, multipartUpload(t, "/api/upload", "march.csv", upload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var info DatasetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Loaded)
	assert.Equal(t, 1, info.Projects)
	assert.Equal(t, 1, info.Preprints)
	assert.False(t, info.HasSummary)

	rec = ts.get(t, "/api/history?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "march.csv")

	rec = ts.get(t, "/api/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UploadErrors(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	t.Run("missing discriminator", func(t *testing.T) {
		rec := ts.do(t, multipartUpload(t, "/api/upload", "bad.csv", "name,value\na,1\n"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "DS001")
	})

	t.Run("no file part", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("plain"))
		req.Header.Set("Content-Type", "text/plain")
		rec := ts.do(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "FILE004")
	})

	t.Run("too large", func(t *testing.T) {
		big := "row_type,name_or_title\n" + strings.Repeat("project,"+strings.Repeat("x", 1000)+"\n", 2200)
		rec := ts.do(t, multipartUpload(t, "/api/upload", "big.csv", big))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	// Failed uploads keep the previous dataset.
	rec := ts.get(t, "/api/status")
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 3, status.Dataset.Projects)
}

func TestAPI_Preview(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	rec := ts.do(t, multipartUpload(t, "/api/preview", "next.csv", "row_type,name_or_title\nproject,Solo\nwidget,W\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview core.PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, 1, preview.Summary.Projects)
	assert.Equal(t, []string{"widget"}, preview.UnknownKinds)

	// Nothing was swapped in.
	ds, err := ts.svc.Dataset()
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Projects.Len())
}

func TestAPI_ReloadRequiresKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	ts := newTestServer(t, cfg, false)

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var info DatasetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, 3, info.Projects)
}

func TestAPI_AdminReset(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)
	ts.get(t, "/entities/project")
	require.Equal(t, 1, ts.svc.Sessions().Len())

	history, err := ts.svc.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/admin/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ResetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"history", "sessions"}, resp.Reset)

	history, err = ts.svc.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, 0, ts.svc.Sessions().Len())

	// The dataset survives a reset.
	rec = ts.get(t, "/api/summary")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.Enabled = false
	ts := newTestServer(t, cfg, true)

	rec := ts.do(t, multipartUpload(t, "/api/upload", "x.csv", "row_type\nproject\n"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadForm(t *testing.T) {
	ts := newTestServer(t, testConfig(t), false)

	rec := ts.do(t, multipartUpload(t, "/upload", "form.csv", "row_type,name_or_title\nuser,U\n"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Loaded form.csv: 1 rows.")
}

func TestHealthAndStatus(t *testing.T) {
	ts := newTestServer(t, testConfig(t), true)

	rec := ts.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = ts.get(t, "/api/status")
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Dataset.Loaded)
	assert.Equal(t, 5, status.Dataset.Rows)
	assert.Equal(t, 2, status.Uploads.MaxConcurrent)
}

// ---- Middleware Tests ----

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"), "limits are per client")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("a"), "window reset")

	now = now.Add(3 * time.Minute)
	rl.sweep()
	assert.Empty(t, rl.visitors)
}

func TestRateLimiter_Middleware(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 1
	ts := newTestServer(t, cfg, true)

	assert.Equal(t, http.StatusOK, ts.get(t, "/api/status").Code)

	rec := ts.get(t, "/api/status")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")
}

func TestSecurityHeaders_CSPToggle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.EnableCSP = false
	ts := newTestServer(t, cfg, true)

	rec := ts.get(t, "/healthz")
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

// ---- Query Tests ----

func TestApplyQuery(t *testing.T) {
	st := core.NewSessionState(25)

	assert.False(t, applyQuery(st, core.KindProject, url.Values{"unrelated": {"1"}}))

	changed := applyQuery(st, core.KindProject, url.Values{
		"filter[license]": {"MIT"},
		"page_size":       {"50"},
		"columns":         {"name_or_title,license"},
		"page":            {"3"},
	})
	require.True(t, changed)
	es := st.Entity(core.KindProject)
	assert.Equal(t, map[string][]string{"license": {"MIT"}}, es.Filters)
	assert.Equal(t, 50, es.PageSize)
	assert.Equal(t, 3, es.Page)
	assert.Equal(t, []string{"name_or_title", "license"}, es.Columns)

	applyQuery(st, core.KindProject, url.Values{"filter[license]": {"All"}, "customize": {"1"}})
	es = st.Entity(core.KindProject)
	assert.Empty(t, es.Filters)
	assert.Nil(t, es.Columns)

	// Other tabs are untouched.
	assert.Equal(t, 1, st.Entity(core.KindUser).Page)
}

func TestFilterColumn(t *testing.T) {
	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"filter[license]", "license", true},
		{"filter[]", "", false},
		{"filter[license", "", false},
		{"license", "", false},
	}
	for _, tt := range tests {
		got, ok := filterColumn(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("filterColumn(%q) = %q, %v, want %q, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}
