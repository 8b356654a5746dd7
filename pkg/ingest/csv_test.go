package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
)

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo_case.csv")
	rows := []models.Row{
		{"meta/instanceID": "uuid:1", "deviceid": "1", "pt./age": "23"},
		{"meta/instanceID": "uuid:2", "deviceid": "2"},
	}
	if err := WriteCSV(path, rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	read, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(read) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(read))
	}
	if read[0].String("meta/instanceID") != "uuid:1" || read[0].String("pt./age") != "23" {
		t.Fatalf("unexpected first row: %v", read[0])
	}
	// The union header pads missing cells with empty strings.
	if read[1].String("pt./age") != "" {
		t.Fatalf("expected empty cell, got %q", read[1].String("pt./age"))
	}
}

func TestReadCSVToleratesRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.csv")
	content := "a,b,c\n1,2\n4,5,6\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	rows, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Has("c") {
		t.Fatal("expected short row to leave trailing columns unset")
	}
	if rows[1].String("c") != "6" {
		t.Fatalf("unexpected value: %v", rows[1])
	}
}
