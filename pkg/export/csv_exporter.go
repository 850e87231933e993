package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Table is tabular export content. Rows shorter than Columns are padded.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// CSVExporter streams tables as CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType returns the MIME type of the output.
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

// Extension returns the file extension of the output.
func (e *CSVExporter) Extension() string { return "csv" }

// Write renders table to w.
func (e *CSVExporter) Write(w io.Writer, table Table) error {
	if len(table.Columns) == 0 {
		return fmt.Errorf("csv requires at least one column")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(normalize(row, len(table.Columns))); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func normalize(row []string, width int) []string {
	record := make([]string, width)
	copy(record, row)
	return record
}
