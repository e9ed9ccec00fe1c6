package personalization

import (
	"slices"

	"github.com/benvon/smart-health/internal/models"
)

// PrimaryWidgetSlots is how many preferred features get primary placement
const PrimaryWidgetSlots = 3

// PlanLayout splits the ranked preferred features into primary and secondary
// widget groups and derives the onboarding and quick-search flags.
func PlanLayout(s models.InteractionSnapshot) models.LayoutPlan {
	preferred := s.PreferredFeatures
	if len(preferred) > models.MaxPreferred {
		preferred = preferred[:models.MaxPreferred]
	}

	split := min(PrimaryWidgetSlots, len(preferred))
	plan := models.LayoutPlan{
		PrimaryWidgets:   slices.Clone(preferred[:split]),
		SecondaryWidgets: slices.Clone(preferred[split:]),
		ShowOnboarding:   !s.OnboardingComplete,
		ShowQuickSearch:  len(s.RecentSearches) > 0,
		FocusTheme:       s.HealthFocus,
	}
	if plan.PrimaryWidgets == nil {
		plan.PrimaryWidgets = []models.Capability{}
	}
	if plan.SecondaryWidgets == nil {
		plan.SecondaryWidgets = []models.Capability{}
	}
	return plan
}
