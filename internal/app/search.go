package app

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/derive-tools/derive-census/internal/results"
)

// RunSearch queries a findings index built by a previous analysis run and
// writes a readable result listing to w.
func RunSearch(w io.Writer, outDir, query, repository string, size int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query cannot be empty")
	}

	indexPath := filepath.Join(outDir, results.IndexFilename)
	hits, total, err := results.SearchIndex(indexPath, query, repository, size)
	if err != nil {
		return fmt.Errorf("search findings index: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(w, "No results found for query: %s\n", query)
		return nil
	}

	fmt.Fprintf(w, "Found %d results for '%s':\n\n", total, query)
	for i, hit := range hits {
		fmt.Fprintf(w, "%d. %s:%s:%d (score %.4f)\n", i+1, hit.Repository, hit.FilePath, hit.LineNumber, hit.Score)
		if len(hit.Derives) > 0 {
			fmt.Fprintf(w, "   derives: %s\n", strings.Join(hit.Derives, ", "))
		}
		if hit.FullLine != "" {
			fmt.Fprintf(w, "   %s\n", hit.FullLine)
		}
		fmt.Fprintln(w)
	}

	if total > uint64(len(hits)) {
		fmt.Fprintf(w, "... and %d more results\n", total-uint64(len(hits)))
	}
	return nil
}
