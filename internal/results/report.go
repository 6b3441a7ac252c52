package results

import (
	"sort"
	"time"

	"github.com/derive-tools/derive-census/internal/domain"
)

// TopListSize caps the ranked lists in the summary.
const TopListSize = 20

// BuildSummary computes the frequency summary from the complete finding set.
// Ranked lists are sorted by count descending, name ascending on ties, and
// truncated to the top entries.
func BuildSummary(findings []domain.Finding, timestamp time.Time) domain.Summary {
	deriveCounts := make(map[string]int)
	repoCounts := make(map[string]int)

	for _, f := range findings {
		repoCounts[f.Repository]++
		for _, d := range f.Derives {
			deriveCounts[d]++
		}
	}

	return domain.Summary{
		TotalDeriveStatements:     len(findings),
		TotalRepositories:         len(repoCounts),
		TotalUniqueDerives:        len(deriveCounts),
		MostCommonDerives:         rank(deriveCounts),
		RepositoriesByDeriveCount: rank(repoCounts),
		AnalysisTimestamp:         timestamp.UTC(),
	}
}

func rank(counts map[string]int) []domain.NameCount {
	ranked := make([]domain.NameCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, domain.NameCount{Name: name, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > TopListSize {
		ranked = ranked[:TopListSize]
	}
	return ranked
}
