package scanner

import "strings"

const (
	deriveOpen  = "#[derive("
	deriveClose = ")]"
)

// scanText is the fallback tier: a plain line scan that matches single-line
// derive attributes. It cannot fail on any input, but misses occurrences
// split across lines or wrapped in unusual formatting.
func scanText(src string) []match {
	var matches []match
	for n, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, deriveOpen) || !strings.HasSuffix(trimmed, deriveClose) {
			continue
		}

		args := trimmed[len(deriveOpen) : len(trimmed)-len(deriveClose)]
		derives := splitDeriveList(args, false)
		if len(derives) == 0 {
			continue
		}

		matches = append(matches, match{line: n + 1, derives: derives})
	}
	return matches
}
