package core

// DefaultPageSize is used when no page size is requested.
const DefaultPageSize = 25

// PageSizes are the page sizes offered by the UI.
var PageSizes = []int{10, 25, 50, 100}

// ValidPageSize reports whether n is one of PageSizes.
func ValidPageSize(n int) bool {
	for _, s := range PageSizes {
		if s == n {
			return true
		}
	}
	return false
}

// Page is one window of a view.
type Page struct {
	Rows       []Row
	Number     int // 1-based, clamped to [1, TotalPages]
	TotalPages int // at least 1
	TotalRows  int
	PageSize   int
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.Number < p.TotalPages }

// Paginate windows view into pages of pageSize rows.
// Out-of-range page numbers clamp silently; an empty view yields one empty page.
func Paginate(view []Row, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	total := len(view)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Rows:       view[start:end:end],
		Number:     page,
		TotalPages: totalPages,
		TotalRows:  total,
		PageSize:   pageSize,
	}
}
