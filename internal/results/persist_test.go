package results

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/derive-tools/derive-census/internal/domain"
)

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FindingsFile)
	findings := []domain.Finding{
		finding("a/one", "Clone", "Copy"),
	}

	if err := WriteJSON(path, findings); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var loaded []domain.Finding
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !reflect.DeepEqual(loaded, findings) {
		t.Errorf("round trip mismatch: %v != %v", loaded, findings)
	}

	if !strings.Contains(string(data), "\n  ") {
		t.Error("expected pretty-printed output")
	}
}

func TestWriteJSONEmptySetIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), FindingsFile)
	if err := WriteJSON(path, nil); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("expected empty array, got %q", data)
	}
}

func TestWriteCSVFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), CSVFile)
	findings := []domain.Finding{
		{
			Repository: "a/one",
			FilePath:   "src/lib.rs",
			LineNumber: 7,
			Derives:    []string{"Clone", "Copy"},
			FullLine:   "#[derive(Clone, Copy)]",
		},
	}

	if err := WriteCSV(path, findings); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus 1 row, got %d records", len(records))
	}

	wantHeader := []string{"repository", "file_path", "line_number", "derives", "full_line"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Errorf("header = %v, want %v", records[0], wantHeader)
	}

	wantRow := []string{"a/one", "src/lib.rs", "7", "Clone, Copy", "#[derive(Clone, Copy)]"}
	if !reflect.DeepEqual(records[1], wantRow) {
		t.Errorf("row = %v, want %v", records[1], wantRow)
	}
}

func TestWriteSummaryTimestampFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), SummaryFile)
	summary := BuildSummary([]domain.Finding{finding("a/one", "Clone")},
		time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC))

	if err := WriteSummary(path, summary); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["analysis_timestamp"]) != `"2026-08-31T12:30:00Z"` {
		t.Errorf("unexpected timestamp encoding: %s", raw["analysis_timestamp"])
	}
	if string(raw["most_common_derives"]) == "" {
		t.Error("missing most_common_derives")
	}

	// Pair lists serialize as two-element arrays.
	var lists struct {
		MostCommon []domain.NameCount `json:"most_common_derives"`
	}
	if err := json.Unmarshal(data, &lists); err != nil {
		t.Fatal(err)
	}
	if len(lists.MostCommon) != 1 || lists.MostCommon[0].Name != "Clone" {
		t.Errorf("unexpected ranked list: %v", lists.MostCommon)
	}
}

func TestWriteAtomicLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FindingsFile)
	if err := WriteJSON(path, []domain.Finding{finding("a/one", "Clone")}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}
