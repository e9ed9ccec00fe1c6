package models

import (
	"maps"
	"slices"
	"time"
)

// Capability identifies a trackable feature of the host application
type Capability string

const (
	CapabilityDiseaseSearch  Capability = "diseaseSearch"
	CapabilityConsultations  Capability = "consultations"
	CapabilityHealthRecords  Capability = "healthRecords"
	CapabilityRiskAssessment Capability = "riskAssessment"
	CapabilitySymptomChecker Capability = "symptomChecker"
	CapabilityForum          Capability = "forum"
	CapabilityEquipment      Capability = "equipment"
	CapabilityEmergency      Capability = "emergency"
)

// Capabilities is the canonical, ordered catalogue of trackable capabilities.
// Its order is the tie-break order used when ranking preferences.
var Capabilities = []Capability{
	CapabilityDiseaseSearch,
	CapabilityConsultations,
	CapabilityHealthRecords,
	CapabilityRiskAssessment,
	CapabilitySymptomChecker,
	CapabilityForum,
	CapabilityEquipment,
	CapabilityEmergency,
}

// DefaultPreferredFeatures is shown before any usage has been recorded
var DefaultPreferredFeatures = []Capability{
	CapabilityDiseaseSearch,
	CapabilityConsultations,
	CapabilityHealthRecords,
}

// IsKnownCapability reports whether c is part of the catalogue
func IsKnownCapability(c Capability) bool {
	return slices.Contains(Capabilities, c)
}

// HealthFocus is the user's declared health focus, used as the dashboard theme
type HealthFocus string

const (
	HealthFocusGeneral    HealthFocus = "general"
	HealthFocusChronic    HealthFocus = "chronic"
	HealthFocusAcute      HealthFocus = "acute"
	HealthFocusPreventive HealthFocus = "preventive"
)

// IsValid checks if the focus is one of the enumerated values
func (f HealthFocus) IsValid() bool {
	switch f {
	case HealthFocusGeneral, HealthFocusChronic, HealthFocusAcute, HealthFocusPreventive:
		return true
	default:
		return false
	}
}

// Priority is a coarse urgency label attached to a recommendation
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Collection bounds
const (
	MaxRecentSearches   = 20
	MaxRecentConditions = 15
	MaxRecentSymptoms   = 30
	MaxDiscoveryLog     = 50
	MaxFavorites        = 10
	MaxPreferred        = 5
)

// SearchEntry is one performed search
type SearchEntry struct {
	Query       string    `json:"query"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	ResultCount int       `json:"resultCount"`
}

// ConditionView records that a condition was looked at
type ConditionView struct {
	Name      string    `json:"name"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// SymptomEntry is a single reported symptom mention
type SymptomEntry struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// DiscoveryEntry records the latest use of a capability
type DiscoveryEntry struct {
	Capability Capability     `json:"feature"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// FavoriteItem is a saved item, unique by (Item, Type)
type FavoriteItem struct {
	Item      string    `json:"item"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionSnapshot is the complete state of the interaction engine at one point in time.
// Every list is ordered most-recent-first.
type InteractionSnapshot struct {
	FeatureUsageCounts     map[Capability]int `json:"featureUsageCounts"`
	RecentSearches         []SearchEntry      `json:"recentSearches"`
	RecentConditionsViewed []ConditionView    `json:"recentConditionsViewed"`
	RecentSymptoms         []SymptomEntry     `json:"recentSymptoms"`
	FeatureDiscoveryLog    []DiscoveryEntry   `json:"featureDiscoveryLog"`
	PreferredFeatures      []Capability       `json:"preferredFeatures"`
	FavoriteItems          []FavoriteItem     `json:"favoriteItems"`
	HealthFocus            HealthFocus        `json:"healthFocus"`
	OnboardingComplete     bool               `json:"onboardingComplete"`
	LastVisit              time.Time          `json:"lastVisit"`
	SessionCount           int                `json:"sessionCount"`
	// TotalTimeSpent is accumulated session time in seconds
	TotalTimeSpent int64 `json:"totalTimeSpent"`
}

// NewDefaultSnapshot returns the snapshot used when no durable record exists
func NewDefaultSnapshot(now time.Time) InteractionSnapshot {
	counts := make(map[Capability]int, len(Capabilities))
	for _, c := range Capabilities {
		counts[c] = 0
	}
	return InteractionSnapshot{
		FeatureUsageCounts:     counts,
		RecentSearches:         []SearchEntry{},
		RecentConditionsViewed: []ConditionView{},
		RecentSymptoms:         []SymptomEntry{},
		FeatureDiscoveryLog:    []DiscoveryEntry{},
		PreferredFeatures:      slices.Clone(DefaultPreferredFeatures),
		FavoriteItems:          []FavoriteItem{},
		HealthFocus:            HealthFocusGeneral,
		OnboardingComplete:     false,
		LastVisit:              now,
		SessionCount:           0,
		TotalTimeSpent:         0,
	}
}

// UsageCount returns the counter for c; an absent key counts as zero
func (s InteractionSnapshot) UsageCount(c Capability) int {
	if s.FeatureUsageCounts == nil {
		return 0
	}
	if n := s.FeatureUsageCounts[c]; n > 0 {
		return n
	}
	return 0
}

// Clone returns a deep copy that shares no mutable memory with s
func (s InteractionSnapshot) Clone() InteractionSnapshot {
	out := s
	out.FeatureUsageCounts = maps.Clone(s.FeatureUsageCounts)
	if out.FeatureUsageCounts == nil {
		out.FeatureUsageCounts = make(map[Capability]int)
	}
	out.RecentSearches = cloneSlice(s.RecentSearches)
	out.RecentConditionsViewed = cloneSlice(s.RecentConditionsViewed)
	out.RecentSymptoms = cloneSlice(s.RecentSymptoms)
	out.PreferredFeatures = cloneSlice(s.PreferredFeatures)
	out.FavoriteItems = cloneSlice(s.FavoriteItems)
	out.FeatureDiscoveryLog = make([]DiscoveryEntry, len(s.FeatureDiscoveryLog))
	for i, e := range s.FeatureDiscoveryLog {
		e.Metadata = maps.Clone(e.Metadata)
		out.FeatureDiscoveryLog[i] = e
	}
	return out
}

// cloneSlice copies src, returning an empty (non-nil) slice for nil input so
// the JSON form always carries arrays
func cloneSlice[T any](src []T) []T {
	if src == nil {
		return []T{}
	}
	return slices.Clone(src)
}

// Recommendation is a generated suggestion for the dashboard
type Recommendation struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	// Target is the query, condition or capability the suggestion refers to
	Target string `json:"target,omitempty"`
}

// LayoutPlan tells the rendering layer where to place dashboard widgets
type LayoutPlan struct {
	PrimaryWidgets   []Capability `json:"primaryWidgets"`
	SecondaryWidgets []Capability `json:"secondaryWidgets"`
	ShowOnboarding   bool         `json:"showOnboarding"`
	ShowQuickSearch  bool         `json:"showQuickSearch"`
	FocusTheme       HealthFocus  `json:"focusTheme"`
}

// SymptomFrequency is how often a symptom appears in recent history
type SymptomFrequency struct {
	Name        string    `json:"name"`
	Count       int       `json:"count"`
	LastMention time.Time `json:"lastMention"`
}
