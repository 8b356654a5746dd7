package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
)

// ReadCSV reads a form export into header-keyed rows.
func ReadCSV(path string) ([]models.Row, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]models.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(models.Row, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes rows with a header drawn from the union of their keys, so
// generated data round-trips through ReadCSV.
func WriteCSV(path string, rows []models.Row) error {
	columns := make(map[string]struct{})
	for _, row := range rows {
		for key := range row {
			columns[key] = struct{}{}
		}
	}
	header := make([]string, 0, len(columns))
	for key := range columns {
		header = append(header, key)
	}
	sort.Strings(header)

	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, column := range header {
			record[i] = row.String(column)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
