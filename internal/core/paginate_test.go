package core

import (
	"strconv"
	"testing"
)

func numberedRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{"n": strconv.Itoa(i)}
	}
	return rows
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		page      int
		size      int
		wantPage  int
		wantPages int
		wantLen   int
		wantFirst string
	}{
		{name: "first page", rows: 60, page: 1, size: 25, wantPage: 1, wantPages: 3, wantLen: 25, wantFirst: "0"},
		{name: "last partial page", rows: 60, page: 3, size: 25, wantPage: 3, wantPages: 3, wantLen: 10, wantFirst: "50"},
		{name: "page past end clamps", rows: 60, page: 99, size: 25, wantPage: 3, wantPages: 3, wantLen: 10, wantFirst: "50"},
		{name: "page zero clamps", rows: 60, page: 0, size: 25, wantPage: 1, wantPages: 3, wantLen: 25, wantFirst: "0"},
		{name: "negative page clamps", rows: 5, page: -3, size: 10, wantPage: 1, wantPages: 1, wantLen: 5, wantFirst: "0"},
		{name: "exact multiple", rows: 50, page: 2, size: 25, wantPage: 2, wantPages: 2, wantLen: 25, wantFirst: "25"},
		{name: "empty view", rows: 0, page: 4, size: 25, wantPage: 1, wantPages: 1, wantLen: 0},
		{name: "bad size uses default", rows: 30, page: 1, size: 0, wantPage: 1, wantPages: 2, wantLen: DefaultPageSize, wantFirst: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(numberedRows(tt.rows), tt.page, tt.size)
			if p.Number != tt.wantPage {
				t.Errorf("Number = %d, want %d", p.Number, tt.wantPage)
			}
			if p.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tt.wantPages)
			}
			if len(p.Rows) != tt.wantLen {
				t.Errorf("len(Rows) = %d, want %d", len(p.Rows), tt.wantLen)
			}
			if tt.wantLen > 0 && p.Rows[0]["n"] != tt.wantFirst {
				t.Errorf("first row = %s, want %s", p.Rows[0]["n"], tt.wantFirst)
			}
			if p.TotalRows != tt.rows {
				t.Errorf("TotalRows = %d, want %d", p.TotalRows, tt.rows)
			}
		})
	}
}

func TestPaginate_PagesReconstructView(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 99} {
		for _, size := range PageSizes {
			view := numberedRows(n)
			first := Paginate(view, 1, size)

			var joined []Row
			for pg := 1; pg <= first.TotalPages; pg++ {
				joined = append(joined, Paginate(view, pg, size).Rows...)
			}

			if len(joined) != n {
				t.Fatalf("n=%d size=%d: pages hold %d rows", n, size, len(joined))
			}
			for i, r := range joined {
				if r["n"] != strconv.Itoa(i) {
					t.Fatalf("n=%d size=%d: row %d = %s", n, size, i, r["n"])
				}
			}
		}
	}
}

func TestPage_Navigation(t *testing.T) {
	p := Paginate(numberedRows(30), 2, 10)
	if !p.HasPrev() || !p.HasNext() {
		t.Errorf("middle page: HasPrev=%v HasNext=%v", p.HasPrev(), p.HasNext())
	}

	p = Paginate(numberedRows(5), 1, 10)
	if p.HasPrev() || p.HasNext() {
		t.Errorf("single page: HasPrev=%v HasNext=%v", p.HasPrev(), p.HasNext())
	}
}

func TestPaginate_AppendDoesNotClobberView(t *testing.T) {
	view := numberedRows(4)
	p := Paginate(view, 1, 2)
	_ = append(p.Rows, Row{"n": "x"})

	if view[2]["n"] != "2" {
		t.Error("appending to a page overwrote the next row of the view")
	}
}

func TestValidPageSize(t *testing.T) {
	for _, n := range PageSizes {
		if !ValidPageSize(n) {
			t.Errorf("ValidPageSize(%d) = false", n)
		}
	}
	for _, n := range []int{0, 7, 1000, -25} {
		if ValidPageSize(n) {
			t.Errorf("ValidPageSize(%d) = true", n)
		}
	}
}
