package session

import (
	"time"

	"github.com/benvon/smart-health/internal/models"
	"github.com/benvon/smart-health/internal/personalization"
	"github.com/benvon/smart-health/internal/queue"
	"github.com/benvon/smart-health/internal/tracking"
	"github.com/benvon/smart-health/internal/validation"
)

// RecordFeatureUsage counts a use of capability
func (m *Manager) RecordFeatureUsage(capability models.Capability, metadata map[string]any) models.InteractionSnapshot {
	return m.mutate(queue.EventFeatureUsed,
		map[string]any{"feature": string(capability), "metadata": metadata},
		func(s models.InteractionSnapshot, at time.Time) models.InteractionSnapshot {
			return tracking.RecordFeatureUsage(s, capability, metadata, at)
		})
}

// RecordSearch records a performed search
func (m *Manager) RecordSearch(query, searchType string, resultCount int) models.InteractionSnapshot {
	return m.mutate(queue.EventSearchPerformed,
		map[string]any{"query": query, "type": searchType, "resultCount": resultCount},
		func(s models.InteractionSnapshot, at time.Time) models.InteractionSnapshot {
			return tracking.RecordSearch(s, query, searchType, resultCount, at)
		})
}

// ClearRecentSearches empties the search history
func (m *Manager) ClearRecentSearches() models.InteractionSnapshot {
	return m.mutate(queue.EventSearchesCleared, nil,
		func(s models.InteractionSnapshot, _ time.Time) models.InteractionSnapshot {
			return tracking.ClearRecentSearches(s)
		})
}

// RecordConditionViewed records that a condition was viewed
func (m *Manager) RecordConditionViewed(name, action string) models.InteractionSnapshot {
	return m.mutate(queue.EventConditionViewed,
		map[string]any{"name": name, "action": action},
		func(s models.InteractionSnapshot, at time.Time) models.InteractionSnapshot {
			return tracking.RecordConditionViewed(s, name, action, at)
		})
}

// RecordSymptoms records a batch of reported symptoms
func (m *Manager) RecordSymptoms(names ...string) models.InteractionSnapshot {
	return m.mutate(queue.EventSymptomsReported,
		map[string]any{"symptoms": names},
		func(s models.InteractionSnapshot, at time.Time) models.InteractionSnapshot {
			return tracking.RecordSymptoms(s, at, names...)
		})
}

// SetHealthFocus changes the declared focus. Invalid values are ignored.
func (m *Manager) SetHealthFocus(focus models.HealthFocus) models.InteractionSnapshot {
	return m.mutate(queue.EventHealthFocusSet,
		map[string]any{"focus": string(focus)},
		func(s models.InteractionSnapshot, _ time.Time) models.InteractionSnapshot {
			return tracking.SetHealthFocus(s, focus)
		})
}

// AddFavorite saves an item
func (m *Manager) AddFavorite(item, itemType string) models.InteractionSnapshot {
	return m.mutate(queue.EventFavoriteAdded,
		map[string]any{"item": item, "type": itemType},
		func(s models.InteractionSnapshot, at time.Time) models.InteractionSnapshot {
			return tracking.AddFavorite(s, item, itemType, at)
		})
}

// RemoveFavorite deletes a saved item
func (m *Manager) RemoveFavorite(item, itemType string) models.InteractionSnapshot {
	return m.mutate(queue.EventFavoriteRemoved,
		map[string]any{"item": item, "type": itemType},
		func(s models.InteractionSnapshot, _ time.Time) models.InteractionSnapshot {
			return tracking.RemoveFavorite(s, item, itemType)
		})
}

// ToggleFavorite adds the item when absent and removes it otherwise. It
// reports whether the item is a favorite after the toggle.
func (m *Manager) ToggleFavorite(item, itemType string) (models.InteractionSnapshot, bool) {
	cleanItem, cleanType := validation.SanitizeText(item), validation.SanitizeText(itemType)
	next := m.mutateAs(
		func(_, next models.InteractionSnapshot) queue.EventType {
			if tracking.IsFavorite(next, cleanItem, cleanType) {
				return queue.EventFavoriteAdded
			}
			return queue.EventFavoriteRemoved
		},
		map[string]any{"item": item, "type": itemType},
		func(s models.InteractionSnapshot, at time.Time) models.InteractionSnapshot {
			return tracking.ToggleFavorite(s, item, itemType, at)
		})
	return next, tracking.IsFavorite(next, cleanItem, cleanType)
}

// CompleteOnboarding marks onboarding as done
func (m *Manager) CompleteOnboarding() models.InteractionSnapshot {
	return m.mutate(queue.EventOnboardingCompleted, nil,
		func(s models.InteractionSnapshot, _ time.Time) models.InteractionSnapshot {
			return tracking.CompleteOnboarding(s)
		})
}

// Snapshot returns a copy of the current snapshot
func (m *Manager) Snapshot() models.InteractionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone()
}

// IsFavorite reports whether the item is saved
func (m *Manager) IsFavorite(item, itemType string) bool {
	return tracking.IsFavorite(m.Snapshot(), validation.SanitizeText(item), validation.SanitizeText(itemType))
}

// Rank returns the preferred capabilities computed from the current counts
func (m *Manager) Rank() []models.Capability {
	return personalization.Rank(m.Snapshot().FeatureUsageCounts)
}

// Recommend returns up to three suggestions for the current snapshot
func (m *Manager) Recommend() []models.Recommendation {
	return personalization.Recommend(m.Snapshot())
}

// PlanLayout returns the dashboard layout for the current snapshot
func (m *Manager) PlanLayout() models.LayoutPlan {
	return personalization.PlanLayout(m.Snapshot())
}

// SymptomInsights returns the most frequently reported recent symptoms
func (m *Manager) SymptomInsights(limit int) []models.SymptomFrequency {
	return personalization.SymptomInsights(m.Snapshot(), limit)
}
