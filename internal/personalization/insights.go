package personalization

import (
	"sort"
	"strings"

	"github.com/benvon/smart-health/internal/models"
)

// SymptomInsights counts symptom mentions in the recent history, case-insensitively.
// Results are ordered by count, then by most recent mention; limit <= 0 means no limit.
func SymptomInsights(s models.InteractionSnapshot, limit int) []models.SymptomFrequency {
	index := make(map[string]int)
	out := make([]models.SymptomFrequency, 0)
	for _, e := range s.RecentSymptoms {
		key := strings.ToLower(e.Name)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			// history is newest first, so the first mention seen is the latest
			out = append(out, models.SymptomFrequency{Name: e.Name, Count: 1, LastMention: e.Timestamp})
			continue
		}
		out[i].Count++
		if e.Timestamp.After(out[i].LastMention) {
			out[i].LastMention = e.Timestamp
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].LastMention.After(out[j].LastMention)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
