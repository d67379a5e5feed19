package core

import (
	"sort"
	"strings"
)

// MatchMode selects how a predicate compares its values to a cell.
type MatchMode int

const (
	// MatchEquals keeps rows whose cell equals the requested value.
	MatchEquals MatchMode = iota

	// MatchAllSubstrings keeps rows whose cell contains every requested value.
	// Used for joined list cells such as add-ons or creators.
	MatchAllSubstrings
)

func (m MatchMode) String() string {
	if m == MatchAllSubstrings {
		return "all_substrings"
	}
	return "equals"
}

// AllValues is the select-widget choice that disables a filter.
const AllValues = "All"

// Predicate restricts rows on one column.
type Predicate struct {
	Column string
	Values []string
	Mode   MatchMode
}

// active returns the requested values that actually constrain rows.
// "All" and blank selections are no-ops.
func (p Predicate) active() []string {
	var out []string
	for _, v := range p.Values {
		if v == "" || v == AllValues {
			continue
		}
		out = append(out, v)
	}
	return out
}

// matches reports whether the row passes the predicate for the given active values.
func (p Predicate) matches(row Row, values []string) bool {
	cell := row[p.Column]
	for _, v := range values {
		switch p.Mode {
		case MatchAllSubstrings:
			if !strings.Contains(cell, v) {
				return false
			}
		default:
			if cell != v {
				return false
			}
		}
	}
	return true
}

// hasColumn reports whether any row carries col.
func hasColumn(rows []Row, col string) bool {
	for _, r := range rows {
		if r.Has(col) {
			return true
		}
	}
	return false
}

// ApplyFilters returns the rows satisfying every predicate, in input order.
//
// Predicates naming a column the rows do not have are skipped. The input slice
// is not modified; the result is always a new slice.
func ApplyFilters(rows []Row, preds []Predicate) []Row {
	type compiled struct {
		pred   Predicate
		values []string
	}

	var active []compiled
	for _, p := range preds {
		values := p.active()
		if len(values) == 0 || !hasColumn(rows, p.Column) {
			continue
		}
		active = append(active, compiled{pred: p, values: values})
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, c := range active {
			if !c.pred.matches(row, c.values) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

// PredicatesFromMap builds predicates from a column -> values selection.
// Columns are visited in sorted order so the result is deterministic; the mode
// comes from the schema's multi-value declaration.
func PredicatesFromMap(selected map[string][]string, schema EntitySchema) []Predicate {
	cols := make([]string, 0, len(selected))
	for col := range selected {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	preds := make([]Predicate, 0, len(cols))
	for _, col := range cols {
		mode := MatchEquals
		if schema.IsMultiValue(col) {
			mode = MatchAllSubstrings
		}
		preds = append(preds, Predicate{Column: col, Values: selected[col], Mode: mode})
	}
	return preds
}

// SplitMulti splits a joined list cell on commas and semicolons.
func SplitMulti(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FilterOptions returns the sorted distinct non-empty values of column.
// Multi-value cells contribute each of their list items.
func FilterOptions(rows []Row, column string, multi bool) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		cell := row[column]
		if multi {
			for _, v := range SplitMulti(cell) {
				seen[v] = true
			}
			continue
		}
		if cell != "" {
			seen[cell] = true
		}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
