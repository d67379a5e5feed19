package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// column is one table column. Numeric columns align right.
type column struct {
	header string
	right  bool
	paint  func(...any) string
}

// table renders aligned plain-text tables.
type table struct {
	columns []column
	rows    [][]string
}

func newTable(columns ...column) *table {
	return &table{columns: columns}
}

// add appends a row; missing cells are empty and extra cells are dropped.
func (t *table) add(values ...string) {
	row := make([]string, len(t.columns))
	copy(row, values)
	t.rows = append(t.rows, row)
}

func (t *table) render(w io.Writer) error {
	widths := make([]int, len(t.columns))
	for i, c := range t.columns {
		widths[i] = len([]rune(c.header))
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len([]rune(cell)))
		}
	}

	bold := color.New(color.Bold).SprintFunc()
	header := make([]string, len(t.columns))
	rule := make([]string, len(t.columns))
	for i, c := range t.columns {
		header[i] = pad(c.header, widths[i], c.right, bold)
		rule[i] = strings.Repeat("-", widths[i])
	}
	if err := writeLine(w, header); err != nil {
		return err
	}
	if err := writeLine(w, rule); err != nil {
		return err
	}

	for _, row := range t.rows {
		cells := make([]string, len(t.columns))
		for i, c := range t.columns {
			cells[i] = pad(row[i], widths[i], c.right, c.paint)
		}
		if err := writeLine(w, cells); err != nil {
			return err
		}
	}
	return nil
}

// pad justifies s to width. Padding is computed on the raw text so ANSI
// color codes do not skew alignment.
func pad(s string, width int, right bool, paint func(...any) string) string {
	fill := strings.Repeat(" ", max(width-len([]rune(s)), 0))
	display := s
	if paint != nil {
		display = paint(s)
	}
	if right {
		return fill + display
	}
	return display + fill
}

func writeLine(w io.Writer, cells []string) error {
	if _, err := fmt.Fprintln(w, strings.TrimRight("  "+strings.Join(cells, "  "), " ")); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}
