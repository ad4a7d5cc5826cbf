// Package export writes result sets to files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// ToCSV writes a header line and one line per row. NULL is written as an
// empty field.
func ToCSV(w io.Writer, rs *models.ResultSet) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(rs.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rs.Rows {
		line := make([]string, len(row))
		for i, c := range row {
			line[i] = c.Value
		}
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ToJSON writes an array of objects keyed by column name. NULL is written as null.
func ToJSON(w io.Writer, rs *models.ResultSet) error {
	records := make([]map[string]*string, len(rs.Rows))
	for r, row := range rs.Rows {
		rec := make(map[string]*string, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(row) {
				rec[col] = row[i].Ptr()
			}
		}
		records[r] = rec
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode rows to JSON: %w", err)
	}
	return nil
}

// ToFile picks the format from the extension of path (.json, otherwise CSV)
func ToFile(path string, rs *models.ResultSet) error {
	if rs == nil {
		return fmt.Errorf("nothing to export")
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = ToJSON(file, rs)
	} else {
		err = ToCSV(file, rs)
	}
	if err != nil {
		return err
	}
	return file.Close()
}
