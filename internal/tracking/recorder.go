// Package tracking holds the snapshot transitions applied for each observed
// interaction event. Every function takes a snapshot by value and returns a
// new one; the input is never modified and nothing here can fail. Inputs are
// sanitized and events that carry no usable value leave the snapshot as-is.
package tracking

import (
	"maps"
	"time"

	"github.com/benvon/smart-health/internal/models"
	"github.com/benvon/smart-health/internal/personalization"
	"github.com/benvon/smart-health/internal/validation"
)

// RecordFeatureUsage increments the usage counter for capability, moves it to
// the front of the discovery log and re-ranks the preferred features.
// Unknown capabilities are ignored.
func RecordFeatureUsage(s models.InteractionSnapshot, capability models.Capability, metadata map[string]any, at time.Time) models.InteractionSnapshot {
	if !models.IsKnownCapability(capability) {
		return s
	}
	next := s.Clone()
	next.FeatureUsageCounts[capability] = s.UsageCount(capability) + 1

	entry := models.DiscoveryEntry{
		Capability: capability,
		Timestamp:  at,
		Metadata:   maps.Clone(metadata),
	}
	next.FeatureDiscoveryLog = prependUnique(next.FeatureDiscoveryLog, entry, models.MaxDiscoveryLog,
		func(e models.DiscoveryEntry) bool { return e.Capability == capability })

	next.PreferredFeatures = personalization.Rank(next.FeatureUsageCounts)
	return next
}

// RecordSearch stores query at the front of the recent searches, replacing an
// earlier entry with the same query. Any search also counts as usage of the
// disease search capability, whatever its type.
func RecordSearch(s models.InteractionSnapshot, query, searchType string, resultCount int, at time.Time) models.InteractionSnapshot {
	query = validation.SanitizeText(query)
	if query == "" {
		return s
	}
	if resultCount < 0 {
		resultCount = 0
	}
	next := s.Clone()
	entry := models.SearchEntry{
		Query:       query,
		Type:        validation.SanitizeText(searchType),
		Timestamp:   at,
		ResultCount: resultCount,
	}
	next.RecentSearches = prependUnique(next.RecentSearches, entry, models.MaxRecentSearches,
		func(e models.SearchEntry) bool { return e.Query == query })

	next.FeatureUsageCounts[models.CapabilityDiseaseSearch] = s.UsageCount(models.CapabilityDiseaseSearch) + 1
	next.PreferredFeatures = personalization.Rank(next.FeatureUsageCounts)
	return next
}

// RecordConditionViewed puts name at the front of the viewed conditions
func RecordConditionViewed(s models.InteractionSnapshot, name, action string, at time.Time) models.InteractionSnapshot {
	name = validation.SanitizeText(name)
	if name == "" {
		return s
	}
	next := s.Clone()
	entry := models.ConditionView{
		Name:      name,
		Action:    validation.SanitizeText(action),
		Timestamp: at,
	}
	next.RecentConditionsViewed = prependUnique(next.RecentConditionsViewed, entry, models.MaxRecentConditions,
		func(e models.ConditionView) bool { return e.Name == name })
	return next
}

// RecordSymptoms places the batch, in the given order, ahead of prior history.
// Repeated mentions are kept as separate entries.
func RecordSymptoms(s models.InteractionSnapshot, at time.Time, names ...string) models.InteractionSnapshot {
	batch := make([]models.SymptomEntry, 0, len(names))
	for _, n := range names {
		if n = validation.SanitizeText(n); n != "" {
			batch = append(batch, models.SymptomEntry{Name: n, Timestamp: at})
		}
	}
	if len(batch) == 0 {
		return s
	}
	next := s.Clone()
	next.RecentSymptoms = truncate(append(batch, next.RecentSymptoms...), models.MaxRecentSymptoms)
	return next
}

// SetHealthFocus replaces the health focus. Values outside the enumeration are ignored.
func SetHealthFocus(s models.InteractionSnapshot, focus models.HealthFocus) models.InteractionSnapshot {
	if !focus.IsValid() || focus == s.HealthFocus {
		return s
	}
	next := s.Clone()
	next.HealthFocus = focus
	return next
}

// AddFavorite stores (item, itemType) at the front of the favorites
func AddFavorite(s models.InteractionSnapshot, item, itemType string, at time.Time) models.InteractionSnapshot {
	item = validation.SanitizeText(item)
	itemType = validation.SanitizeText(itemType)
	if item == "" {
		return s
	}
	next := s.Clone()
	entry := models.FavoriteItem{Item: item, Type: itemType, Timestamp: at}
	next.FavoriteItems = prependUnique(next.FavoriteItems, entry, models.MaxFavorites, sameFavorite(item, itemType))
	return next
}

// RemoveFavorite drops the (item, itemType) favorite if present
func RemoveFavorite(s models.InteractionSnapshot, item, itemType string) models.InteractionSnapshot {
	item = validation.SanitizeText(item)
	itemType = validation.SanitizeText(itemType)
	if !IsFavorite(s, item, itemType) {
		return s
	}
	next := s.Clone()
	next.FavoriteItems = removeWhere(next.FavoriteItems, sameFavorite(item, itemType))
	return next
}

// ToggleFavorite removes the favorite when present and adds it otherwise
func ToggleFavorite(s models.InteractionSnapshot, item, itemType string, at time.Time) models.InteractionSnapshot {
	if IsFavorite(s, validation.SanitizeText(item), validation.SanitizeText(itemType)) {
		return RemoveFavorite(s, item, itemType)
	}
	return AddFavorite(s, item, itemType, at)
}

// IsFavorite reports whether (item, itemType) is among the favorites
func IsFavorite(s models.InteractionSnapshot, item, itemType string) bool {
	match := sameFavorite(item, itemType)
	for _, f := range s.FavoriteItems {
		if match(f) {
			return true
		}
	}
	return false
}

// ClearRecentSearches empties the recent searches and leaves everything else untouched
func ClearRecentSearches(s models.InteractionSnapshot) models.InteractionSnapshot {
	next := s.Clone()
	next.RecentSearches = []models.SearchEntry{}
	return next
}

// CompleteOnboarding marks onboarding as done. Only the onboarding flow calls this.
func CompleteOnboarding(s models.InteractionSnapshot) models.InteractionSnapshot {
	if s.OnboardingComplete {
		return s
	}
	next := s.Clone()
	next.OnboardingComplete = true
	return next
}

func sameFavorite(item, itemType string) func(models.FavoriteItem) bool {
	return func(f models.FavoriteItem) bool {
		return f.Item == item && f.Type == itemType
	}
}

// prependUnique drops entries matching dup, puts entry first and caps the result at limit
func prependUnique[T any](list []T, entry T, limit int, dup func(T) bool) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, entry)
	for _, e := range list {
		if !dup(e) {
			out = append(out, e)
		}
	}
	return truncate(out, limit)
}

func removeWhere[T any](list []T, match func(T) bool) []T {
	out := make([]T, 0, len(list))
	for _, e := range list {
		if !match(e) {
			out = append(out, e)
		}
	}
	return out
}

func truncate[T any](list []T, limit int) []T {
	if len(list) > limit {
		return list[:limit]
	}
	return list
}
