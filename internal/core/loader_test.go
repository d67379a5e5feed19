package core

import (
	"errors"
	"maps"
	"os"
	"strings"
	"testing"
	"time"
)

const sampleCSV = "testdata/osfi_sample.csv"

// loadSample loads the shared fixture or fails the test.
func loadSample(t *testing.T) *Dataset {
	t.Helper()
	f, err := os.Open(sampleCSV)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	ds, err := LoadCSV(f, LoadOptions{Source: sampleCSV})
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	return ds
}

func TestLoadCSV_Partition(t *testing.T) {
	ds := loadSample(t)

	counts := []struct {
		name string
		got  int
		want int
	}{
		{"users", ds.Users.Len(), 2},
		{"projects", ds.Projects.Len(), 3},
		{"registrations", ds.Registrations.Len(), 1},
		{"preprints", ds.Preprints.Len(), 1},
		{"orphans", len(ds.Orphans), 2},
		{"total rows", ds.RowCount(), 11},
	}
	for _, c := range counts {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	if !ds.HasSummary() {
		t.Fatal("expected summary row")
	}
	if got := ds.SummaryRow[ColNameOrTitle]; got != "Center for Open Science" {
		t.Errorf("first summary row should win, got %q", got)
	}
	if ds.BrandingRow == nil {
		t.Error("expected branding row")
	}
}

func TestLoadCSV_PreservesFileOrder(t *testing.T) {
	ds := loadSample(t)

	var names []string
	for _, r := range ds.Projects.Rows {
		names = append(names, r[ColNameOrTitle])
	}
	if got := strings.Join(names, ","); got != "Alpha,Beta,Gamma" {
		t.Errorf("project order = %s, want Alpha,Beta,Gamma", got)
	}
}

func TestLoadCSV_NormalizesDiscriminator(t *testing.T) {
	ds := loadSample(t)

	for _, r := range ds.Projects.Rows {
		if got := r[ColRowType]; got != "project" {
			t.Errorf("row_type = %q, want project", got)
		}
	}
}

func TestLoadCSV_DerivedFields(t *testing.T) {
	ds := loadSample(t)

	beta := ds.Projects.Rows[1]
	if got := beta[ColOSFGUID]; got != "bx22c" {
		t.Errorf("osf_guid = %q, want bx22c", got)
	}

	reg := ds.Registrations.Rows[0]
	if got := reg[ColDOIDisplay]; got != "10.17605/OSF.IO/RG111" {
		t.Errorf("doi_display = %q", got)
	}
	if got := reg[ColDOIURL]; got != "https://doi.org/10.17605/OSF.IO/RG111" {
		t.Errorf("doi_url = %q", got)
	}

	pre := ds.Preprints.Rows[0]
	if got := pre[ColOSFGUID]; got != "pp111" {
		t.Errorf("preprint osf_guid = %q, want pp111", got)
	}
	if got := pre[ColDOIDisplay]; got != "10.31235/osf.io/pp111" {
		t.Errorf("preprint doi_display = %q", got)
	}

	// Users are not content rows.
	if ds.Users.Rows[0].Has(ColOSFGUID) {
		t.Error("user rows should not carry derived fields")
	}

	// Re-deriving gives the same values.
	before := maps.Clone(reg)
	attachDerived(reg)
	for _, col := range DerivedColumns {
		if reg[col] != before[col] {
			t.Errorf("re-deriving %s changed %q to %q", col, before[col], reg[col])
		}
	}
}

func TestLoadCSV_Branding(t *testing.T) {
	ds := loadSample(t)
	b := ds.Branding()

	if b.InstitutionName != "Center for Open Science" {
		t.Errorf("InstitutionName = %q", b.InstitutionName)
	}
	if b.LogoURL != "https://cos.io/logo.png" {
		t.Errorf("LogoURL = %q", b.LogoURL)
	}
	if b.ReportMonth != "2026-09" {
		t.Errorf("ReportMonth = %q, want value from summary row", b.ReportMonth)
	}
}

func TestBranding_Defaults(t *testing.T) {
	ds, err := LoadRows([]Row{{"row_type": "project", "name_or_title": "x"}}, LoadOptions{})
	if err != nil {
		t.Fatalf("LoadRows: %v", err)
	}
	b := ds.Branding()
	if b.InstitutionName != DefaultInstitutionName || b.LogoURL != DefaultLogoURL {
		t.Errorf("Branding() = %+v, want defaults", b)
	}
}

func TestBranding_KeyOrderAcrossRows(t *testing.T) {
	csv := "row_type,name_or_title,branding_institution_name\n" +
		"summary,,Summary University\n" +
		"branding,Generic Title,\n"
	ds, err := LoadCSV(strings.NewReader(csv), LoadOptions{})
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}

	if got := ds.Branding().InstitutionName; got != "Summary University" {
		t.Errorf("InstitutionName = %q, want branding_institution_name from the summary row", got)
	}
}

func TestLoad_DerivedColumnsNotDuplicated(t *testing.T) {
	csv := "row_type,osf_guid,osf_link\nproject,stale,https://osf.io/kr68a/\n"
	ds, err := LoadCSV(strings.NewReader(csv), LoadOptions{})
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}

	seen := make(map[string]int)
	for _, col := range ds.Projects.Columns {
		seen[col]++
		if seen[col] > 1 {
			t.Errorf("column %q listed twice in %v", col, ds.Projects.Columns)
		}
	}
	for _, col := range DerivedColumns {
		if seen[col] != 1 {
			t.Errorf("derived column %q count = %d, want 1", col, seen[col])
		}
	}
	if got := ds.Projects.Rows[0][ColOSFGUID]; got != "kr68a" {
		t.Errorf("osf_guid = %q, want value derived from osf_link", got)
	}
}

func TestLoad_MissingDiscriminator(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("kind,name\nproject,Alpha\n"), LoadOptions{})
	if !errors.Is(err, ErrMissingDiscriminatorColumn) {
		t.Fatalf("error = %v, want ErrMissingDiscriminatorColumn", err)
	}
	if !strings.Contains(err.Error(), "row_type") {
		t.Errorf("error %q should name the column", err)
	}
}

func TestLoad_DiscriminatorAlias(t *testing.T) {
	tests := []struct {
		name   string
		csv    string
		option string
	}{
		{name: "case-insensitive header", csv: " Row_Type ,name\nproject,a\n"},
		{name: "declared alias", csv: "kind,name\nproject,a\n", option: "KIND"},
		{name: "canonical name with alias configured", csv: "row_type,name\nproject,a\n", option: "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := LoadCSV(strings.NewReader(tt.csv), LoadOptions{Discriminator: tt.option})
			if err != nil {
				t.Fatalf("LoadCSV: %v", err)
			}
			if ds.Projects.Len() != 1 {
				t.Errorf("projects = %d, want 1", ds.Projects.Len())
			}
		})
	}
}

func TestLoad_NoSummaryIsNotFatal(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader("row_type,name_or_title\npreprint,a\npreprint,b\n"), LoadOptions{})
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if ds.HasSummary() {
		t.Error("HasSummary() = true, want false")
	}
}

func TestReadCSV_RaggedAndBlankRows(t *testing.T) {
	input := "row_type,name_or_title,license\nproject,Short\n\n,,\nproject,Long,MIT,extra\n"
	header, records, err := ReadCSV(strings.NewReader(input), LoadOptions{})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(header) != 3 {
		t.Fatalf("header = %v", header)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2 (blank rows skipped)", len(records))
	}
	if len(records[0]) != 3 || records[0][2] != "" {
		t.Errorf("short row not padded: %q", records[0])
	}

	ds, err := Load(header, records, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := ds.Projects.Rows[1]["license"]; got != "MIT" {
		t.Errorf("license = %q, want MIT", got)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader(""), LoadOptions{})
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("error = %v, want ErrEmptyFile", err)
	}
}

func TestLoad_StampsLoadedAt(t *testing.T) {
	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	ds, err := LoadRows(nil, LoadOptions{Discriminator: "row_type", Now: func() time.Time { return at }})
	if err == nil {
		t.Fatalf("LoadRows(nil) should fail without a discriminator column, got dataset %v", ds)
	}

	ds, err = Load([]string{"row_type"}, nil, LoadOptions{Now: func() time.Time { return at }})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ds.LoadedAt.Equal(at) {
		t.Errorf("LoadedAt = %v, want %v", ds.LoadedAt, at)
	}
}
