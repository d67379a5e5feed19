// Package templates holds the dashboard's HTML components.
//
// Components are written in .templ files; run `templ generate` after editing
// them. The *_templ.go files are generated and committed.
package templates

import (
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/osfidash/internal/core"
)

// ProductName is shown under the institution name and in page titles.
const ProductName = "Institutions Dashboard"

// Query parameter names shared by the entity page forms and the handlers
// that read them.
const (
	ParamPage      = "page"
	ParamPageSize  = "page_size"
	ParamColumns   = "columns"
	ParamCustomize = "customize"
	ParamReset     = "reset"
	ParamScope     = "scope"
)

// FilterParam is the query parameter carrying the filter for column.
func FilterParam(column string) string {
	return "filter[" + column + "]"
}

// EntityPath is the page URL of an entity tab.
func EntityPath(kind core.Kind) string {
	return "/entities/" + string(kind)
}

func exportPath(kind core.Kind) string {
	return "/api/export/" + string(kind)
}

type navTab struct {
	key   string
	label string
	path  string
}

func navTabs() []navTab {
	tabs := []navTab{{key: "summary", label: "Summary", path: "/"}}
	for _, schema := range core.All() {
		tabs = append(tabs, navTab{
			key:   string(schema.Kind),
			label: schema.Title,
			path:  EntityPath(schema.Kind),
		})
	}
	return append(tabs, navTab{key: "history", label: "Loads", path: "/history"})
}

func pageTitle(title string) string {
	if title == "" {
		return ProductName
	}
	return title + " - " + ProductName
}

func institutionName(b core.Branding) string {
	if b.InstitutionName == "" {
		return core.DefaultInstitutionName
	}
	return b.InstitutionName
}

// logoURL falls back to the COS mark and drops unsafe schemes.
func logoURL(b core.Branding) string {
	if b.LogoURL == "" {
		return core.DefaultLogoURL
	}
	return string(templ.URL(b.LogoURL))
}

// osfLinkLabel shows the GUID of an OSF link, or "link" when there is none.
func osfLinkLabel(value string) string {
	if guid := core.ExtractGUID(value); guid != "" {
		return guid
	}
	return "link"
}

func columnSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

func pageURL(path string, n int) string {
	return withQuery(path, url.Values{ParamPage: {strconv.Itoa(n)}})
}

// withQuery returns path with params encoded as its query string.
func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

var historyColumns = []string{"Loaded", "File", "Source", "Rows", "Users", "Projects", "Registrations", "Preprints", "Summary", "Took"}

const stylesheet = `
body{font-family:-apple-system,"Segoe UI",Roboto,sans-serif;margin:0;color:#1f2937;background:#f8fafc}
main{padding:1rem 2rem}
.osfi-brand{display:flex;gap:.75rem;align-items:center;padding:1rem 2rem;background:#214762;color:#fff}
.osfi-brand h1{margin:0;font-size:1.4rem}
.osfi-caption{margin:0;opacity:.8;font-size:.85rem}
.osfi-tabs{display:flex;gap:.25rem;padding:0 2rem;background:#fff;border-bottom:1px solid #e5e7eb}
.osfi-tabs a{padding:.75rem 1rem;text-decoration:none;color:#374151;border-bottom:2px solid transparent}
.osfi-tabs a.active{border-color:#214762;color:#214762;font-weight:600}
.osfi-cards{display:grid;grid-template-columns:repeat(4,1fr);gap:1rem}
.osfi-card{background:#fff;border:1px solid #e5e7eb;border-radius:6px;padding:1rem}
.osfi-card .label{font-size:.8rem;color:#6b7280}
.osfi-card .value{font-size:1.6rem;font-weight:600}
.osfi-controls{display:flex;gap:1rem;flex-wrap:wrap;align-items:flex-start;margin-bottom:1rem}
.osfi-controls details{background:#fff;border:1px solid #e5e7eb;border-radius:6px;padding:.5rem .75rem}
.osfi-table-wrap{overflow-x:auto}
.osfi-table{border-collapse:collapse;width:100%;background:#fff}
.osfi-table th,.osfi-table td{border-bottom:1px solid #e5e7eb;padding:.5rem;text-align:left;font-size:.9rem}
.osfi-table th{background:#f1f5f9}
.osfi-link a{color:#1d4ed8}
.osfi-pagination{display:flex;gap:.5rem;align-items:center;margin-top:1rem}
.osfi-pagination a,.osfi-pagination span.disabled{padding:.25rem .6rem;border:1px solid #d1d5db;border-radius:4px;text-decoration:none}
.osfi-pagination span.disabled{opacity:.4}
.osfi-alert{border:1px solid #fca5a5;background:#fef2f2;padding:.75rem 1rem;border-radius:6px}
.osfi-empty{background:#fff;border:1px dashed #cbd5e1;padding:2rem;border-radius:6px}
`
