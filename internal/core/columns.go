package core

// AvailableColumns intersects the schema allowlist with the columns present
// in the data, keeping allowlist order.
func AvailableColumns(schema EntitySchema, present []string) []string {
	have := make(map[string]bool, len(present))
	for _, c := range present {
		have[c] = true
	}

	var out []string
	for _, c := range schema.Columns {
		if have[c] {
			out = append(out, c)
		}
	}
	return out
}

// ResolveColumns turns a customize selection into the ordered columns to show.
//
// Kept defaults come first in declared order, followed by extra requested
// columns in request order. If nothing requested is available, the available
// defaults are used, and failing that the first available column. The result
// is empty only when available is.
func ResolveColumns(requested, available, defaults []string) []string {
	if len(available) == 0 {
		return []string{}
	}

	avail := make(map[string]bool, len(available))
	for _, c := range available {
		avail[c] = true
	}
	req := make(map[string]bool, len(requested))
	for _, c := range requested {
		if avail[c] {
			req[c] = true
		}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	if len(req) > 0 {
		for _, c := range defaults {
			if req[c] {
				add(c)
			}
		}
		for _, c := range requested {
			if req[c] {
				add(c)
			}
		}
		return out
	}

	for _, c := range defaults {
		if avail[c] {
			add(c)
		}
	}
	if len(out) == 0 {
		add(available[0])
	}
	return out
}

// Project restricts each row to columns. Missing cells become "".
func Project(rows []Row, columns []string) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		p := make(Row, len(columns))
		for _, c := range columns {
			p[c] = row[c]
		}
		out[i] = p
	}
	return out
}
