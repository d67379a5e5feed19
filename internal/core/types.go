package core

import (
	"strings"
	"time"
)

// Row is one CSV record keyed by column name.
// All cells are strings; an absent value is the empty string.
// Rows handed out by a Dataset are shared and must be treated as read-only.
type Row map[string]string

// Get returns the cell for col, or "" if the column does not exist.
func (r Row) Get(col string) string {
	return r[col]
}

// Has reports whether the row carries col at all (even if empty).
func (r Row) Has(col string) bool {
	_, ok := r[col]
	return ok
}

// Kind is the normalized value of the discriminator column.
type Kind string

const (
	KindSummary      Kind = "summary"
	KindBranding     Kind = "branding"
	KindUser         Kind = "user"
	KindProject      Kind = "project"
	KindRegistration Kind = "registration"
	KindPreprint     Kind = "preprint"
)

// EntityKinds lists the row kinds exposed as browsable collections, in tab order.
var EntityKinds = []Kind{KindUser, KindProject, KindRegistration, KindPreprint}

// ContentKinds are the entity kinds that carry OSF links, DOIs and storage.
var ContentKinds = []Kind{KindProject, KindRegistration, KindPreprint}

// NormalizeKind trims and lowercases a raw discriminator cell.
func NormalizeKind(raw string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(raw)))
}

// ParseKind normalizes raw and reports whether it is a recognized kind.
func ParseKind(raw string) (Kind, bool) {
	k := NormalizeKind(raw)
	switch k {
	case KindSummary, KindBranding, KindUser, KindProject, KindRegistration, KindPreprint:
		return k, true
	}
	return k, false
}

// IsEntity reports whether k is one of EntityKinds.
func (k Kind) IsEntity() bool {
	for _, e := range EntityKinds {
		if e == k {
			return true
		}
	}
	return false
}

// Column names the engine knows about.
const (
	ColRowType         = "row_type"
	ColNameOrTitle     = "name_or_title"
	ColOSFLink         = "osf_link"
	ColDOI             = "doi"
	ColStorageGB       = "storage_gb"
	ColStorageBytes    = "storage_byte_count"
	ColPublicFileCount = "public_file_count"

	// Derived at load time, never read from the file.
	ColOSFGUID    = "osf_guid"
	ColDOIDisplay = "doi_display"
	ColDOIURL     = "doi_url"
)

// DerivedColumns are attached to every content row by the loader.
var DerivedColumns = []string{ColOSFGUID, ColDOIDisplay, ColDOIURL}

// Collection is the ordered set of rows sharing one Kind, in file order.
type Collection struct {
	Kind    Kind
	Rows    []Row
	Columns []string // header columns present for this collection, plus derived ones
}

// Len returns the number of rows.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Rows)
}

// HasColumn reports whether col is present in the collection schema.
func (c *Collection) HasColumn(col string) bool {
	if c == nil {
		return false
	}
	for _, name := range c.Columns {
		if name == col {
			return true
		}
	}
	return false
}

// Branding carries the institution metadata shown in the page header.
type Branding struct {
	InstitutionName string `json:"institutionName"`
	LogoURL         string `json:"logoUrl"`
	ReportMonth     string `json:"reportMonth"`
}

// DefaultLogoURL is used when the dataset carries no logo.
const DefaultLogoURL = "https://osf.io/static/img/cos-white.svg"

// DefaultInstitutionName is used when the dataset carries no institution name.
const DefaultInstitutionName = "Institution"

// Dataset is the immutable result of one load. A reload produces a new Dataset;
// an existing one is never modified in place.
type Dataset struct {
	Source        string
	Header        []string
	Discriminator string // header name of the discriminator column as it appears in the file
	LoadedAt      time.Time

	SummaryRow  Row // nil when the file has no summary row
	BrandingRow Row // nil when the file has no branding row

	Users         *Collection
	Projects      *Collection
	Registrations *Collection
	Preprints     *Collection

	// Orphans holds rows with unrecognized kinds and surplus summary/branding rows.
	// They take part in nothing but keep the partition complete.
	Orphans []Row
}

// HasSummary reports whether an authoritative summary row was found.
func (d *Dataset) HasSummary() bool {
	return d.SummaryRow != nil
}

// Collection returns the entity collection for k.
func (d *Dataset) Collection(k Kind) (*Collection, bool) {
	switch k {
	case KindUser:
		return d.Users, true
	case KindProject:
		return d.Projects, true
	case KindRegistration:
		return d.Registrations, true
	case KindPreprint:
		return d.Preprints, true
	}
	return nil, false
}

// RowCount returns the number of data rows read from the file.
func (d *Dataset) RowCount() int {
	n := len(d.Orphans)
	if d.SummaryRow != nil {
		n++
	}
	if d.BrandingRow != nil {
		n++
	}
	for _, k := range EntityKinds {
		c, _ := d.Collection(k)
		n += c.Len()
	}
	return n
}

// Branding resolves institution metadata. Keys are tried in order; for each
// key a dedicated branding row wins over the summary row, so an explicit
// branding_institution_* field anywhere beats a generic fallback column.
func (d *Dataset) Branding() Branding {
	pick := func(keys ...string) string {
		for _, k := range keys {
			for _, src := range []Row{d.BrandingRow, d.SummaryRow} {
				if v := strings.TrimSpace(src[k]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	b := Branding{
		InstitutionName: pick("branding_institution_name", ColNameOrTitle),
		LogoURL:         pick("branding_institution_logo_url"),
		ReportMonth:     pick("report_month", "report_yearmonth"),
	}
	if b.InstitutionName == "" {
		b.InstitutionName = DefaultInstitutionName
	}
	if b.LogoURL == "" {
		b.LogoURL = DefaultLogoURL
	}
	return b
}
