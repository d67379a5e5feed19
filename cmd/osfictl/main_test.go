package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/JonMunkholm/osfidash/internal/core"
	"github.com/JonMunkholm/osfidash/internal/history"
)

const cliCSV = `row_type,name_or_title,osf_link,license,resource_type,storage_region,total_users,report_month,branding_institution_name
summary,,,,,,42,2026-09,Test University
user,Ada,https://osf.io/u1abc/,,,,,,
project,Alpha,https://osf.io/kr68a/,MIT,Project,United States,,,
project,Beta,https://osf.io/bx22c/,MIT,Project,Germany,,,
project,Gamma,https://osf.io/cc33d/,CC0,Analysis,United States,,,
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.csv")
	if err := os.WriteFile(path, []byte(cliCSV), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// execute runs the root command with fresh flag state and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	color.NoColor = true
	discriminator, encoding, schemaFile, logLevel, noColor = "", "", "", "warn", false
	historyDSN = ""
	historyOpts.limit = history.DefaultLimit
	historyOpts.reset = false
	exportOpts.entity = ""
	exportOpts.filters = nil
	exportOpts.columns = nil
	exportOpts.page = 1
	exportOpts.pageSize = core.DefaultPageSize
	exportOpts.scope = "filtered"
	exportOpts.output = ""
	columnsEntity = ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// ---- Summary Tests ----

func TestSummary(t *testing.T) {
	out, err := execute(t, "summary", writeFixture(t))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	for _, want := range []string{
		"Test University (report month 2026-09)",
		"Total Users",
		"authoritative",
		"composite",
		"derived",
		"unassigned",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "no summary row") {
		t.Errorf("summary warned about a missing summary row:\n%s", out)
	}
}

func TestSummary_Counts(t *testing.T) {
	out, err := execute(t, "summary", writeFixture(t))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	tests := []struct {
		label string
		want  string
	}{
		{"total", "5"},
		{"user", "1"},
		{"project", "3"},
		{"registration", "0"},
		{"Total Users", "42"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			line := findLine(out, "  "+tt.label+" ")
			if line == "" {
				t.Fatalf("no line for %q:\n%s", tt.label, out)
			}
			if !strings.Contains(line, " "+tt.want) {
				t.Errorf("line %q does not contain %s", line, tt.want)
			}
		})
	}
}

func TestSummary_MissingFile(t *testing.T) {
	_, err := execute(t, "summary", filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSummary_RequiresFile(t *testing.T) {
	if _, err := execute(t, "summary"); err == nil {
		t.Error("expected error without a file argument")
	}
}

// ---- Export Tests ----

func TestExport_FilterAndColumns(t *testing.T) {
	out, err := execute(t, "export", writeFixture(t),
		"--entity", "project",
		"--filter", "license=MIT",
		"--columns", "name_or_title,license",
	)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	want := "name_or_title,license\nAlpha,MIT\nBeta,MIT\n"
	if out != want {
		t.Errorf("export = %q, want %q", out, want)
	}
}

func TestExport_RepeatedFiltersNarrow(t *testing.T) {
	out, err := execute(t, "export", writeFixture(t),
		"--entity", "projects",
		"--filter", "license=MIT",
		"--filter", "storage_region=Germany",
		"--columns", "name_or_title",
	)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out != "name_or_title\nBeta\n" {
		t.Errorf("export = %q", out)
	}
}

func TestExport_PageScope(t *testing.T) {
	out, err := execute(t, "export", writeFixture(t),
		"--entity", "project",
		"--columns", "name_or_title",
		"--scope", "page",
		"--page-size", "10",
		"--page", "9",
	)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	// Out-of-range pages clamp to the last page.
	if out != "name_or_title\nAlpha\nBeta\nGamma\n" {
		t.Errorf("export = %q", out)
	}
}

func TestExport_OutputFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.csv")
	out, err := execute(t, "export", writeFixture(t), "--entity", "user", "--columns", "name_or_title", "-o", dest)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty when writing a file", out)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "name_or_title\nAda\n" {
		t.Errorf("file = %q", data)
	}
}

func TestExport_Errors(t *testing.T) {
	path := writeFixture(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing entity", []string{"export", path}},
		{"unknown entity", []string{"export", path, "--entity", "widget"}},
		{"bad filter", []string{"export", path, "--entity", "project", "--filter", "license"}},
		{"bad scope", []string{"export", path, "--entity", "project", "--scope", "all"}},
		{"bad page size", []string{"export", path, "--entity", "project", "--page-size", "7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}
}

func TestExport_UnknownEntityIsSentinel(t *testing.T) {
	_, err := execute(t, "export", writeFixture(t), "--entity", "widget")
	if !errors.Is(err, core.ErrUnknownEntity) {
		t.Errorf("err = %v, want ErrUnknownEntity", err)
	}
}

// ---- Columns Tests ----

func TestColumns(t *testing.T) {
	out, err := execute(t, "columns", writeFixture(t), "--entity", "project")
	if err != nil {
		t.Fatalf("columns: %v", err)
	}

	if !strings.HasPrefix(out, "3 Projects") {
		t.Errorf("columns header = %q, want prefix %q", firstLine(out), "3 Projects")
	}
	for _, want := range []string{"name_or_title", "Name / Title", "license"} {
		if !strings.Contains(out, want) {
			t.Errorf("columns output missing %q:\n%s", want, out)
		}
	}

	line := findLine(out, "  license ")
	if !strings.Contains(line, "yes") {
		t.Errorf("license line %q should be marked default", line)
	}
}

// ---- History Tests ----

func TestHistory(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "history.db")

	store, err := history.Open(context.Background(), dsn, 0)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	err = store.Record(context.Background(), history.LoadRecord{
		ID:         "3f0c1a52-6f7e-4d8e-9a43-0c1b2d3e4f50",
		Source:     "upload",
		FileName:   "september.csv",
		Rows:       1234,
		HasSummary: true,
		Duration:   42 * time.Millisecond,
		LoadedAt:   time.Date(2026, 9, 30, 8, 15, 0, 0, time.UTC),
		IPAddress:  "10.0.0.7",
	})
	store.Close()
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	out, err := execute(t, "history", "--history-dsn", dsn)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"2026-09-30 08:15:00", "september.csv", "1,234", "yes", "42ms", "10.0.0.7"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "history", "--history-dsn", dsn, "--reset")
	if err != nil {
		t.Fatalf("history --reset: %v", err)
	}
	if !strings.Contains(out, "cleared") {
		t.Errorf("reset output = %q", out)
	}

	out, err = execute(t, "history", "--history-dsn", dsn)
	if err != nil {
		t.Fatalf("history after reset: %v", err)
	}
	if !strings.Contains(out, "no loads recorded") {
		t.Errorf("history after reset = %q", out)
	}
}

func TestHistory_RequiresDSN(t *testing.T) {
	t.Setenv("HISTORY_DSN", "")
	t.Setenv("DATABASE_URL", "")
	if _, err := execute(t, "history"); err == nil {
		t.Error("expected error without a history database")
	}
}

// ---- Helper Tests ----

func TestEntityFlag(t *testing.T) {
	tests := []struct {
		raw     string
		want    core.Kind
		wantErr bool
	}{
		{"project", core.KindProject, false},
		{"Projects", core.KindProject, false},
		{" user ", core.KindUser, false},
		{"summary", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := entityFlag(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("entityFlag(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("entityFlag(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTable_Alignment(t *testing.T) {
	tb := newTable(column{header: "Name"}, column{header: "N", right: true})
	tb.add("a", "1")
	tb.add("longer", "100")

	var buf bytes.Buffer
	if err := tb.render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}

	want := "  Name      N\n" +
		"  ------  ---\n" +
		"  a         1\n" +
		"  longer  100\n"
	if buf.String() != want {
		t.Errorf("render =\n%s\nwant\n%s", buf.String(), want)
	}
}

func findLine(out, prefix string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
