package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

var (
	// ErrMissingDiscriminatorColumn means the file has no row_type (or configured alias) column.
	// Nothing downstream is meaningful without it, so this is the one fatal load error.
	ErrMissingDiscriminatorColumn = errors.New("missing discriminator column")

	// ErrEmptyFile is returned when the input has no header row.
	ErrEmptyFile = errors.New("empty file")
)

// LoadOptions configures a dataset load.
type LoadOptions struct {
	// Discriminator names the row-kind column. Matched case-insensitively.
	// Defaults to "row_type"; the canonical name is always accepted as well.
	Discriminator string

	// Encoding of the input bytes. Defaults to utf-8.
	Encoding string

	// Source is recorded on the dataset (file path or upload name).
	Source string

	// Now stamps LoadedAt. Defaults to time.Now.
	Now func() time.Time
}

func (o LoadOptions) discriminator() string {
	if d := strings.TrimSpace(o.Discriminator); d != "" {
		return d
	}
	return ColRowType
}

func (o LoadOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// ReadCSV parses r into a header and records. Every cell is kept as a string.
// Ragged rows are padded with "" to the header width; surplus cells are dropped.
func ReadCSV(r io.Reader, opts LoadOptions) ([]string, [][]string, error) {
	stream, err := WrapForStreaming(r, opts.Encoding)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(stream)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = NormalizeHeader(header[i])
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", len(records)+2, err)
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, padRecord(rec, len(header)))
	}

	return header, records, nil
}

func isBlankRecord(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRecord(rec []string, width int) []string {
	if len(rec) == width {
		return rec
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}

// LoadCSV reads and partitions a CSV export in one step.
func LoadCSV(r io.Reader, opts LoadOptions) (*Dataset, error) {
	header, records, err := ReadCSV(r, opts)
	if err != nil {
		return nil, err
	}
	return Load(header, records, opts)
}

// LoadRows partitions rows that are already keyed by column.
// The header is the sorted union of all row keys.
func LoadRows(rows []Row, opts LoadOptions) (*Dataset, error) {
	seen := make(map[string]bool)
	var header []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	sort.Strings(header)

	records := make([][]string, len(rows))
	for i, row := range rows {
		rec := make([]string, len(header))
		for j, col := range header {
			rec[j] = row[col]
		}
		records[i] = rec
	}
	return Load(header, records, opts)
}

// findColumn returns the header name matching one of names, ignoring case and
// surrounding whitespace.
func findColumn(header []string, names ...string) (string, bool) {
	for _, name := range names {
		want := strings.ToLower(strings.TrimSpace(name))
		for _, h := range header {
			if strings.ToLower(strings.TrimSpace(h)) == want {
				return h, true
			}
		}
	}
	return "", false
}

// Load partitions records into a Dataset.
//
// Each row is classified by its normalized discriminator value. The first summary
// and branding rows are kept; later duplicates and unrecognized kinds land in
// Orphans. Content rows (projects, registrations, preprints) get osf_guid,
// doi_display and doi_url attached here, once.
func Load(header []string, records [][]string, opts LoadOptions) (*Dataset, error) {
	want := opts.discriminator()
	disc, ok := findColumn(header, want, ColRowType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingDiscriminatorColumn, want)
	}

	// Duplicate header names keep the first occurrence.
	colIndex := make(map[string]int, len(header))
	var columns []string
	for i, h := range header {
		if h == "" {
			continue
		}
		if _, dup := colIndex[h]; dup {
			continue
		}
		colIndex[h] = i
		columns = append(columns, h)
	}

	contentColumns := append([]string{}, columns...)
	for _, col := range DerivedColumns {
		if _, inHeader := colIndex[col]; !inHeader {
			contentColumns = append(contentColumns, col)
		}
	}
	ds := &Dataset{
		Source:        opts.Source,
		Header:        columns,
		Discriminator: disc,
		LoadedAt:      opts.now(),
		Users:         &Collection{Kind: KindUser, Columns: columns},
		Projects:      &Collection{Kind: KindProject, Columns: contentColumns},
		Registrations: &Collection{Kind: KindRegistration, Columns: contentColumns},
		Preprints:     &Collection{Kind: KindPreprint, Columns: contentColumns},
	}

	for _, rec := range records {
		row := make(Row, len(columns)+len(DerivedColumns))
		for _, col := range columns {
			if i := colIndex[col]; i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}

		kind, known := ParseKind(row[disc])
		row[disc] = string(kind)

		switch {
		case !known:
			ds.Orphans = append(ds.Orphans, row)
		case kind == KindSummary:
			if ds.SummaryRow == nil {
				ds.SummaryRow = row
			} else {
				ds.Orphans = append(ds.Orphans, row)
			}
		case kind == KindBranding:
			if ds.BrandingRow == nil {
				ds.BrandingRow = row
			} else {
				ds.Orphans = append(ds.Orphans, row)
			}
		default:
			c, _ := ds.Collection(kind)
			if kind != KindUser {
				attachDerived(row)
			}
			c.Rows = append(c.Rows, row)
		}
	}

	return ds, nil
}

// attachDerived computes the identifier fields for a content row.
// Derivation only reads source columns, so running it twice is a no-op.
func attachDerived(row Row) {
	row[ColOSFGUID] = ExtractGUID(row[ColOSFLink])
	row[ColDOIDisplay] = NormalizeDOI(row[ColDOI])
	row[ColDOIURL] = DOIURL(row[ColDOI])
}
