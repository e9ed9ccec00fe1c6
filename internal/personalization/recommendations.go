package personalization

import (
	"fmt"

	"github.com/benvon/smart-health/internal/models"
)

// MaxRecommendations caps the number of suggestions returned by Recommend
const MaxRecommendations = 3

// Recommendation types
const (
	RecommendationContinueSearch   = "continue_search"
	RecommendationRelatedCondition = "related_condition"
	RecommendationBookConsultation = "book_consultation"
)

// rule yields at most one recommendation for a snapshot
type rule func(s models.InteractionSnapshot) (models.Recommendation, bool)

// rules are evaluated in order; the order is also the output order
var rules = []rule{
	continueResearchRule,
	relatedConditionRule,
	consultationRule,
}

// Recommend returns up to MaxRecommendations suggestions for s. Rules that do
// not apply contribute nothing and the list is never padded.
func Recommend(s models.InteractionSnapshot) []models.Recommendation {
	out := make([]models.Recommendation, 0, MaxRecommendations)
	for _, r := range rules {
		if len(out) == MaxRecommendations {
			break
		}
		if rec, ok := r(s); ok {
			out = append(out, rec)
		}
	}
	return out
}

func continueResearchRule(s models.InteractionSnapshot) (models.Recommendation, bool) {
	if len(s.RecentSearches) == 0 {
		return models.Recommendation{}, false
	}
	query := s.RecentSearches[0].Query
	return models.Recommendation{
		Type:        RecommendationContinueSearch,
		Title:       "Continue your research",
		Description: fmt.Sprintf("Pick up where you left off with %q", query),
		Priority:    models.PriorityHigh,
		Target:      query,
	}, true
}

func relatedConditionRule(s models.InteractionSnapshot) (models.Recommendation, bool) {
	if len(s.RecentConditionsViewed) == 0 {
		return models.Recommendation{}, false
	}
	name := s.RecentConditionsViewed[0].Name
	return models.Recommendation{
		Type:        RecommendationRelatedCondition,
		Title:       "Related information",
		Description: fmt.Sprintf("Explore conditions and care options related to %s", name),
		Priority:    models.PriorityMedium,
		Target:      name,
	}, true
}

// consultationRule fires when searching clearly dominates both booking and risk assessment
func consultationRule(s models.InteractionSnapshot) (models.Recommendation, bool) {
	searches := s.UsageCount(models.CapabilityDiseaseSearch)
	if searches <= s.UsageCount(models.CapabilityConsultations) ||
		searches <= s.UsageCount(models.CapabilityRiskAssessment) {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		Type:        RecommendationBookConsultation,
		Title:       "Talk to a professional",
		Description: "You have been researching a lot. Consider booking a consultation.",
		Priority:    models.PriorityMedium,
		Target:      string(models.CapabilityConsultations),
	}, true
}
