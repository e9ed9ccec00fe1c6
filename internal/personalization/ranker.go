// Package personalization derives ranked preferences, recommendations and the
// dashboard layout from an interaction snapshot. All functions are pure.
package personalization

import (
	"slices"
	"sort"

	"github.com/benvon/smart-health/internal/models"
)

// Rank orders the capability catalogue by usage count, highest first, and
// returns the top models.MaxPreferred. Equal counts keep catalogue order.
// Before any usage has been recorded the default preferred list is returned.
func Rank(counts map[models.Capability]int) []models.Capability {
	ranked := slices.Clone(models.Capabilities)
	used := false
	for _, c := range ranked {
		if counts[c] > 0 {
			used = true
			break
		}
	}
	if !used {
		return slices.Clone(models.DefaultPreferredFeatures)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return count(counts, ranked[i]) > count(counts, ranked[j])
	})
	if len(ranked) > models.MaxPreferred {
		ranked = ranked[:models.MaxPreferred]
	}
	return ranked
}

func count(counts map[models.Capability]int, c models.Capability) int {
	if n := counts[c]; n > 0 {
		return n
	}
	return 0
}
