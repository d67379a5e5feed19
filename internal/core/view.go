package core

import "fmt"

// EntityState is one session's interactive selection for one entity tab.
// It is passed into every view computation; the core holds no UI state.
type EntityState struct {
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
	Filters  map[string][]string `json:"filters,omitempty"`

	// Columns is the customize selection. Nil means "not customized" and
	// shows the schema defaults.
	Columns []string `json:"columns,omitempty"`
}

// FilterField describes one filter widget.
type FilterField struct {
	Column   string   `json:"column"`
	Label    string   `json:"label"`
	Options  []string `json:"options"`
	Selected string   `json:"selected"`
}

// EntityView is the result of one Filter -> Project -> Paginate pass.
type EntityView struct {
	Kind      Kind          `json:"kind"`
	Title     string        `json:"title"`
	Columns   []string      `json:"columns"`
	Available []string      `json:"available"`
	Filters   []FilterField `json:"filters"`
	Total     int           `json:"total"`
	Page      Page          `json:"-"`
}

// ExportScope selects which rows an export contains.
type ExportScope int

const (
	// ExportFiltered exports every row that passes the active filters.
	ExportFiltered ExportScope = iota

	// ExportPage exports only the rows on the current page.
	ExportPage
)

// ParseExportScope maps "page" to ExportPage and anything else to ExportFiltered.
func ParseExportScope(s string) ExportScope {
	if s == "page" {
		return ExportPage
	}
	return ExportFiltered
}

// schemaFor returns the registered schema for kind. Kinds without a
// registration allow every column present in the collection.
func schemaFor(kind Kind, c *Collection) EntitySchema {
	if schema, ok := Get(kind); ok {
		return schema
	}
	return EntitySchema{Kind: kind, Title: string(kind), Columns: c.Columns, Defaults: c.Columns}
}

type resolvedView struct {
	schema    EntitySchema
	coll      *Collection
	filtered  []Row
	columns   []string
	available []string
}

func resolveView(ds *Dataset, kind Kind, st EntityState) (resolvedView, error) {
	if ds == nil {
		return resolvedView{}, ErrNoDataset
	}
	c, ok := ds.Collection(kind)
	if !ok || c == nil {
		return resolvedView{}, fmt.Errorf("%w: %q", ErrUnknownEntity, kind)
	}

	schema := schemaFor(kind, c)
	available := AvailableColumns(schema, c.Columns)
	return resolvedView{
		schema:    schema,
		coll:      c,
		filtered:  ApplyFilters(c.Rows, PredicatesFromMap(st.Filters, schema)),
		columns:   ResolveColumns(st.Columns, available, schema.Defaults),
		available: available,
	}, nil
}

// BuildView filters, projects and paginates one entity collection.
func BuildView(ds *Dataset, kind Kind, st EntityState) (EntityView, error) {
	rv, err := resolveView(ds, kind, st)
	if err != nil {
		return EntityView{}, err
	}

	page := Paginate(rv.filtered, st.Page, st.PageSize)
	page.Rows = Project(page.Rows, rv.columns)

	var fields []FilterField
	for _, col := range rv.schema.Filters {
		if !rv.coll.HasColumn(col) {
			continue
		}
		selected := ""
		if vals := st.Filters[col]; len(vals) > 0 {
			selected = vals[0]
		}
		fields = append(fields, FilterField{
			Column:   col,
			Label:    ColumnLabel(col),
			Options:  FilterOptions(rv.coll.Rows, col, rv.schema.IsMultiValue(col)),
			Selected: selected,
		})
	}

	return EntityView{
		Kind:      kind,
		Title:     rv.schema.Title,
		Columns:   rv.columns,
		Available: rv.available,
		Filters:   fields,
		Total:     rv.coll.Len(),
		Page:      page,
	}, nil
}

// ExportView serializes the filtered collection with the resolved columns.
// Header cells are raw column names.
func ExportView(ds *Dataset, kind Kind, st EntityState, scope ExportScope) ([]byte, int, error) {
	rv, err := resolveView(ds, kind, st)
	if err != nil {
		return nil, 0, err
	}

	rows := rv.filtered
	if scope == ExportPage {
		rows = Paginate(rows, st.Page, st.PageSize).Rows
	}

	data, err := ToCSVBytes(rows, rv.columns)
	if err != nil {
		return nil, 0, fmt.Errorf("export %s: %w", kind, err)
	}
	return data, len(rows), nil
}
