package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/derive-tools/derive-census/internal/domain"
)

// Artifact filenames written under the output directory.
const (
	// FindingsFile is the full JSON dump of every finding.
	FindingsFile = "derive_statements.json"

	// CSVFile is the tabular dump of every finding.
	CSVFile = "derive_statements.csv"

	// SummaryFile is the frequency summary.
	SummaryFile = "analysis_summary.json"

	// CheckpointFile is the incremental snapshot overwritten after each
	// repository completes.
	CheckpointFile = "derive_statements_incremental.json"
)

// WriteJSON writes the findings as a pretty-printed JSON array, atomically.
func WriteJSON(path string, findings []domain.Finding) error {
	if findings == nil {
		findings = []domain.Finding{}
	}
	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	slog.Info("Saved findings", "count", len(findings), "path", path)
	return nil
}

// WriteCSV writes the findings as a table with a header row. The derive list
// is joined with ", " into a single column.
func WriteCSV(path string, findings []domain.Finding) error {
	var buf strings.Builder
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"repository", "file_path", "line_number", "derives", "full_line"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, f := range findings {
		record := []string{
			f.Repository,
			f.FilePath,
			strconv.Itoa(f.LineNumber),
			strings.Join(f.Derives, ", "),
			f.FullLine,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if err := writeAtomic(path, []byte(buf.String())); err != nil {
		return err
	}
	slog.Info("Saved findings", "count", len(findings), "path", path)
	return nil
}

// WriteSummary writes the frequency summary as pretty-printed JSON, atomically.
func WriteSummary(path string, summary domain.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	slog.Info("Saved analysis summary", "path", path)
	return nil
}

// writeAtomic writes data via the temp-file + rename pattern so readers never
// observe a partially written artifact.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename into place: %w", err)
	}

	return nil
}
