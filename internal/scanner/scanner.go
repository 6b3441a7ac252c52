// Package scanner extracts derive attributes from Rust source text. A
// structured tier walks the source with full literal and comment awareness;
// a text tier falls back to a line scan that cannot fail. Malformed input
// never propagates an error past the scanner.
package scanner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/derive-tools/derive-census/internal/domain"
)

// Scanner extracts derive findings from single files. The embedded guard is
// a last-resort risk check; callers typically apply their own, more
// sensitive gate before handing a file over. Scanner is stateless and safe
// for concurrent use.
type Scanner struct {
	guard RiskThresholds
}

// New creates a Scanner with the default guard thresholds.
func New() *Scanner {
	return NewWithGuard(DefaultGuardThresholds())
}

// NewWithGuard creates a Scanner with custom guard thresholds.
func NewWithGuard(guard RiskThresholds) *Scanner {
	return &Scanner{guard: guard}
}

// Extract returns every derive finding in the file. Files the guard deems
// risky skip the structured tier; a structured-tier failure of any kind
// falls back to the text tier. The result is in scan order, duplicates and
// identifier order preserved.
func (s *Scanner) Extract(repository, filePath, content string) []domain.Finding {
	qualified := repository + "/" + filePath
	if s.guard.Risky(qualified, content) {
		slog.Debug("Guard routed file to text tier", "file", qualified)
		return s.ExtractTextOnly(repository, filePath, content)
	}

	matches, err := s.structuredSafely(content)
	if err != nil {
		slog.Warn("Structured scan failed, using text fallback", "file", qualified, "error", err)
		return s.ExtractTextOnly(repository, filePath, content)
	}

	return toFindings(repository, filePath, content, matches)
}

// ExtractTextOnly runs only the text tier.
func (s *Scanner) ExtractTextOnly(repository, filePath, content string) []domain.Finding {
	return toFindings(repository, filePath, content, scanText(content))
}

// structuredSafely runs the structured tier behind a recovery boundary so
// that an abrupt failure on adversarial input surfaces as an error value.
func (s *Scanner) structuredSafely(content string) (matches []match, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("structured scan panicked: %v", r)
		}
	}()
	return scanStructured(content), nil
}

func toFindings(repository, filePath, content string, matches []match) []domain.Finding {
	if len(matches) == 0 {
		return nil
	}

	lines := strings.Split(content, "\n")
	findings := make([]domain.Finding, 0, len(matches))
	for _, m := range matches {
		fullLine := ""
		if m.line >= 1 && m.line <= len(lines) {
			fullLine = strings.TrimSuffix(lines[m.line-1], "\r")
		}
		findings = append(findings, domain.Finding{
			Repository: repository,
			FilePath:   filePath,
			LineNumber: m.line,
			Derives:    m.derives,
			FullLine:   fullLine,
		})
	}
	return findings
}
