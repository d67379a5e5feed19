package templates

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/osfidash/internal/core"
	"github.com/JonMunkholm/osfidash/internal/history"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func assertContains(t *testing.T, html string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q\n%s", want, html)
		}
	}
}

// ---- Layout Tests ----

func TestBranding_Defaults(t *testing.T) {
	html := render(t, Branding(core.Branding{}))
	assertContains(t, html, core.DefaultLogoURL, ">"+core.DefaultInstitutionName+"<", ProductName)
	if strings.Contains(html, "Report month") {
		t.Errorf("empty report month rendered: %s", html)
	}
}

func TestBranding_EscapesName(t *testing.T) {
	html := render(t, Branding(core.Branding{
		InstitutionName: `<script>alert(1)</script>`,
		ReportMonth:     "2024-05",
	}))
	if strings.Contains(html, "<script>") {
		t.Errorf("institution name not escaped: %s", html)
	}
	assertContains(t, html, "Report month: 2024-05")
}

func TestLayout_EmptyStateWithoutDataset(t *testing.T) {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "BODY")
		return err
	})

	html := render(t, Layout(LayoutParams{Active: "summary", UploadEnabled: true}, body))
	assertContains(t, html, "No dataset loaded", `action="/upload"`)
	if strings.Contains(html, "BODY") {
		t.Error("body rendered without a dataset")
	}

	html = render(t, Layout(LayoutParams{Active: "project", HasDataset: true}, body))
	assertContains(t, html, "BODY", `href="/entities/project" class="active"`)
}

// ---- Entity Tests ----

func sampleView() core.EntityView {
	rows := []core.Row{
		{"name_or_title": "Alpha & Co", "osf_link": "https://osf.io/bx22c/", "doi": "https://doi.org/10.1/ABC"},
		{"name_or_title": "Beta", "osf_link": "https://example.org/some-page", "doi": ""},
	}
	return core.EntityView{
		Kind:      core.KindProject,
		Title:     "Projects",
		Columns:   []string{"name_or_title", "osf_link", "doi"},
		Available: []string{"name_or_title", "osf_link", "doi", "license"},
		Filters: []core.FilterField{
			{Column: "license", Label: "License", Options: []string{"CC0", "MIT"}, Selected: "MIT"},
		},
		Total: 1234,
		Page:  core.Paginate(rows, 1, 1),
	}
}

func TestEntityPage(t *testing.T) {
	html := render(t, EntityPage(EntityPageParams{View: sampleView(), PageSize: 1}))

	assertContains(t, html,
		"<h2>1,234 Projects</h2>",
		"Alpha &amp; Co",
		`name="filter[license]"`,
		`<option value="MIT" selected>`,
		`<option value="All">`,
		`value="license">`,
		"Page 1 of 2",
		`href="/entities/project?page=2"`,
		`href="/api/export/project?scope=page"`,
	)
}

func TestEntityTable_Links(t *testing.T) {
	rows := []core.Row{
		{"osf_link": "https://osf.io/bx22c/", "doi": "doi:10.1/ABC"},
		{"osf_link": "https://example.org/some-page", "doi": ""},
		{"osf_link": "", "doi": ""},
	}
	html := render(t, EntityTable([]string{"osf_link", "doi"}, rows))

	assertContains(t, html,
		`href="https://osf.io/bx22c/" target="_blank" rel="noopener">bx22c</a>`,
		`href="https://doi.org/10.1/ABC" target="_blank" rel="noopener">10.1/ABC</a>`,
		`href="https://example.org/some-page" target="_blank" rel="noopener">link</a>`,
	)
	if n := strings.Count(html, "<a "); n != 3 {
		t.Errorf("rendered %d links, want 3", n)
	}
}

func TestEntityTable_UnsafeURL(t *testing.T) {
	html := render(t, EntityTable([]string{"osf_link"}, []core.Row{{"osf_link": "javascript:alert(1)"}}))
	if strings.Contains(html, `href="javascript`) {
		t.Errorf("unsafe href rendered: %s", html)
	}
}

func TestEntityTable_NoRows(t *testing.T) {
	html := render(t, EntityTable([]string{"a", "b"}, nil))
	assertContains(t, html, `colspan="2"`, "No rows match")
}

func TestPagination_Disabled(t *testing.T) {
	page := core.Paginate(nil, 1, 25)
	html := render(t, Pagination("/entities/user", page, 25))

	assertContains(t, html, "Page 1 of 1", `<option value="25" selected>`)
	if strings.Contains(html, "?page=") {
		t.Errorf("single page rendered navigation links: %s", html)
	}
}

// ---- Upload and History Tests ----

func TestPreviewPanel(t *testing.T) {
	html := render(t, PreviewPanel(&core.PreviewResponse{
		FileName:     "march.csv",
		Summary:      core.PreviewSummary{TotalRows: 11, Projects: 3},
		UnknownKinds: []string{"widget"},
		Columns:      []core.ColumnReport{{Kind: core.KindProject, Missing: []string{"created_date"}}},
	}))
	assertContains(t, html, "Preview of march.csv", "Rows: 11", "widget", "created_date", "No summary row")
}

func TestHistoryTable(t *testing.T) {
	if html := render(t, HistoryTable(nil)); !strings.Contains(html, "No loads recorded") {
		t.Errorf("empty history = %s", html)
	}

	html := render(t, HistoryTable([]history.LoadRecord{{
		FileName:   "osfi.csv",
		Source:     "upload",
		Rows:       1500,
		HasSummary: true,
		Duration:   1500 * time.Microsecond,
		LoadedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}))
	assertContains(t, html, "osfi.csv", "1,500", "2024-05-01T12:00:00Z", "<td>yes</td>", "2ms")
}

func TestLoadResult(t *testing.T) {
	html := render(t, LoadResult("march & april.csv", 1500))
	assertContains(t, html, "Loaded march &amp; april.csv: 1,500 rows.", `<a href="/">View summary</a>`)
}

func TestErrorAlert(t *testing.T) {
	html := render(t, ErrorAlert("No dataset is loaded", "Upload a file", "DS002"))
	assertContains(t, html, `role="alert"`, "No dataset is loaded", "Upload a file", "Code: DS002")
}

func TestErrorAlert_OptionalParts(t *testing.T) {
	html := render(t, ErrorAlert("Something went wrong", "", ""))
	if strings.Contains(html, "<p>") || strings.Contains(html, "Code:") {
		t.Errorf("empty action or code rendered: %s", html)
	}
}

func TestLayout_SanitizesLogo(t *testing.T) {
	html := render(t, Branding(core.Branding{LogoURL: "javascript:alert(1)"}))
	if strings.Contains(html, "javascript:") {
		t.Errorf("unsafe logo rendered: %s", html)
	}
}
