package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// ExportContentType is the MIME type of exported files.
const ExportContentType = "text/csv"

// ExportFileName returns the download name for a filtered export of kind.
func ExportFileName(kind Kind) string {
	return string(kind) + "_filtered.csv"
}

// WriteCSV writes a header of columns followed by one record per row.
// Cells are written verbatim; nothing is filtered or renamed.
func WriteCSV(w io.Writer, rows []Row, columns []string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			record[j] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ToCSVBytes serializes rows with the given column order to UTF-8 CSV.
func ToCSVBytes(rows []Row, columns []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, columns); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
