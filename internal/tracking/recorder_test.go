package tracking

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/benvon/smart-health/internal/models"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func TestRecordSearch_FromDefaults(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	next := RecordSearch(s, "fever", "quick", 5, t0)

	if len(next.RecentSearches) != 1 || next.RecentSearches[0].Query != "fever" {
		t.Fatalf("Expected fever at front, got %+v", next.RecentSearches)
	}
	if next.RecentSearches[0].ResultCount != 5 || next.RecentSearches[0].Type != "quick" {
		t.Errorf("Unexpected entry: %+v", next.RecentSearches[0])
	}
	if got := next.FeatureUsageCounts[models.CapabilityDiseaseSearch]; got != 1 {
		t.Errorf("Expected diseaseSearch count 1, got %d", got)
	}
	if len(s.RecentSearches) != 0 || s.FeatureUsageCounts[models.CapabilityDiseaseSearch] != 0 {
		t.Error("RecordSearch mutated its input snapshot")
	}
}

func TestRecordSearch_CountsRegardlessOfType(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	for i, typ := range []string{"quick", "advanced", "voice", ""} {
		s = RecordSearch(s, fmt.Sprintf("q%d", i), typ, 0, t0)
	}
	if got := s.UsageCount(models.CapabilityDiseaseSearch); got != 4 {
		t.Errorf("Expected 4 searches counted, got %d", got)
	}
}

func TestRecordSearch_CapsAndOrders(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	for i := 0; i < 25; i++ {
		s = RecordSearch(s, fmt.Sprintf("query-%02d", i), "quick", i, t0.Add(time.Duration(i)*time.Second))
	}

	if len(s.RecentSearches) != models.MaxRecentSearches {
		t.Fatalf("Expected %d searches, got %d", models.MaxRecentSearches, len(s.RecentSearches))
	}
	if s.RecentSearches[0].Query != "query-24" {
		t.Errorf("Expected most recent first, got %s", s.RecentSearches[0].Query)
	}
	for i := 0; i < 5; i++ {
		q := fmt.Sprintf("query-%02d", i)
		for _, e := range s.RecentSearches {
			if e.Query == q {
				t.Errorf("Expected %s to be evicted", q)
			}
		}
	}
}

func TestRecordSearch_DeduplicatesByQuery(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	s = RecordSearch(s, "fever", "quick", 1, t0)
	s = RecordSearch(s, "cough", "quick", 2, t0.Add(time.Second))
	s = RecordSearch(s, "fever", "advanced", 3, t0.Add(2*time.Second))

	if len(s.RecentSearches) != 2 {
		t.Fatalf("Expected 2 unique searches, got %+v", s.RecentSearches)
	}
	if s.RecentSearches[0].Query != "fever" || s.RecentSearches[0].ResultCount != 3 {
		t.Errorf("Expected refreshed fever entry first, got %+v", s.RecentSearches[0])
	}
}

func TestRecordSearch_IgnoresBlankQuery(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	next := RecordSearch(s, "   ", "quick", 1, t0)
	if len(next.RecentSearches) != 0 || next.UsageCount(models.CapabilityDiseaseSearch) != 0 {
		t.Errorf("Expected blank query to be ignored, got %+v", next)
	}
}

func TestRecordConditionViewed_Idempotent(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	s = RecordConditionViewed(s, "Asthma", "view", t0)
	s = RecordConditionViewed(s, "Diabetes", "view", t0.Add(time.Second))
	s = RecordConditionViewed(s, "Diabetes", "view", t0.Add(2*time.Second))

	count := 0
	for _, c := range s.RecentConditionsViewed {
		if c.Name == "Diabetes" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("Expected exactly one Diabetes entry, got %d", count)
	}
	if s.RecentConditionsViewed[0].Name != "Diabetes" || !s.RecentConditionsViewed[0].Timestamp.Equal(t0.Add(2*time.Second)) {
		t.Errorf("Expected Diabetes at front with later timestamp, got %+v", s.RecentConditionsViewed[0])
	}
}

func TestRecordConditionViewed_Caps(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	for i := 0; i < 40; i++ {
		s = RecordConditionViewed(s, fmt.Sprintf("c%d", i), "view", t0)
	}
	if len(s.RecentConditionsViewed) != models.MaxRecentConditions {
		t.Errorf("Expected %d conditions, got %d", models.MaxRecentConditions, len(s.RecentConditionsViewed))
	}
}

func TestRecordSymptoms(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	s = RecordSymptoms(s, t0, "cough")
	s = RecordSymptoms(s, t0.Add(time.Second), "fever", "headache", "cough")

	names := make([]string, 0, len(s.RecentSymptoms))
	for _, e := range s.RecentSymptoms {
		names = append(names, e.Name)
	}
	want := []string{"fever", "headache", "cough", "cough"}
	if !slices.Equal(names, want) {
		t.Errorf("RecentSymptoms = %v, want %v", names, want)
	}
}

func TestRecordSymptoms_Caps(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	for i := 0; i < 12; i++ {
		s = RecordSymptoms(s, t0, "a", "b", "c")
	}
	if len(s.RecentSymptoms) != models.MaxRecentSymptoms {
		t.Errorf("Expected %d symptoms, got %d", models.MaxRecentSymptoms, len(s.RecentSymptoms))
	}
	if next := RecordSymptoms(s, t0); len(next.RecentSymptoms) != len(s.RecentSymptoms) {
		t.Error("Expected empty batch to be a no-op")
	}
}

func TestRecordFeatureUsage(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	s = RecordFeatureUsage(s, models.CapabilityForum, map[string]any{"source": "nav"}, t0)
	s = RecordFeatureUsage(s, models.CapabilityEquipment, nil, t0.Add(time.Second))
	s = RecordFeatureUsage(s, models.CapabilityForum, nil, t0.Add(2*time.Second))

	if got := s.UsageCount(models.CapabilityForum); got != 2 {
		t.Errorf("Expected forum count 2, got %d", got)
	}
	if len(s.FeatureDiscoveryLog) != 2 || s.FeatureDiscoveryLog[0].Capability != models.CapabilityForum {
		t.Errorf("Expected forum moved to front of a 2 entry log, got %+v", s.FeatureDiscoveryLog)
	}
	if s.PreferredFeatures[0] != models.CapabilityForum || s.PreferredFeatures[1] != models.CapabilityEquipment {
		t.Errorf("Expected preferred features re-ranked, got %v", s.PreferredFeatures)
	}
	if len(s.PreferredFeatures) > models.MaxPreferred {
		t.Errorf("Expected at most %d preferred, got %d", models.MaxPreferred, len(s.PreferredFeatures))
	}
}

func TestRecordFeatureUsage_UnknownCapability(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	next := RecordFeatureUsage(s, models.Capability("teleport"), nil, t0)
	if len(next.FeatureDiscoveryLog) != 0 {
		t.Error("Expected unknown capability to be ignored")
	}
	if _, ok := next.FeatureUsageCounts["teleport"]; ok {
		t.Error("Expected no counter for unknown capability")
	}
}

func TestRecordFeatureUsage_NilCounters(t *testing.T) {
	t.Parallel()

	var s models.InteractionSnapshot
	next := RecordFeatureUsage(s, models.CapabilityConsultations, nil, t0)
	if next.UsageCount(models.CapabilityConsultations) != 1 {
		t.Errorf("Expected absent counter to be treated as zero, got %v", next.FeatureUsageCounts)
	}
}

func TestRecordFeatureUsage_MetadataIsCopied(t *testing.T) {
	t.Parallel()

	meta := map[string]any{"from": "dashboard"}
	s := RecordFeatureUsage(models.NewDefaultSnapshot(t0), models.CapabilityForum, meta, t0)
	meta["from"] = "changed"
	if s.FeatureDiscoveryLog[0].Metadata["from"] != "dashboard" {
		t.Error("Expected metadata to be copied into the discovery log")
	}
}

func TestSetHealthFocus(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	s = SetHealthFocus(s, models.HealthFocusChronic)
	if s.HealthFocus != models.HealthFocusChronic {
		t.Errorf("Expected chronic, got %s", s.HealthFocus)
	}
	s = SetHealthFocus(s, models.HealthFocus("holistic"))
	if s.HealthFocus != models.HealthFocusChronic {
		t.Errorf("Expected invalid focus to be ignored, got %s", s.HealthFocus)
	}
}

func TestFavorites(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	s = AddFavorite(s, "Diabetes", "condition", t0)
	s = AddFavorite(s, "Diabetes", "article", t0)
	s = AddFavorite(s, "Diabetes", "condition", t0.Add(time.Second))

	if len(s.FavoriteItems) != 2 {
		t.Fatalf("Expected 2 favorites unique by (item, type), got %+v", s.FavoriteItems)
	}
	if s.FavoriteItems[0].Type != "condition" {
		t.Errorf("Expected re-added favorite first, got %+v", s.FavoriteItems[0])
	}

	s = ToggleFavorite(s, "Diabetes", "article", t0)
	if IsFavorite(s, "Diabetes", "article") {
		t.Error("Expected toggle to remove existing favorite")
	}
	s = ToggleFavorite(s, "Glucometer", "equipment", t0)
	if !IsFavorite(s, "Glucometer", "equipment") {
		t.Error("Expected toggle to add missing favorite")
	}
	s = RemoveFavorite(s, "Glucometer", "equipment")
	if IsFavorite(s, "Glucometer", "equipment") {
		t.Error("Expected RemoveFavorite to drop the entry")
	}

	for i := 0; i < 15; i++ {
		s = AddFavorite(s, fmt.Sprintf("item-%d", i), "article", t0)
	}
	if len(s.FavoriteItems) != models.MaxFavorites {
		t.Errorf("Expected %d favorites, got %d", models.MaxFavorites, len(s.FavoriteItems))
	}
}

func TestClearRecentSearches(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	s = RecordSearch(s, "fever", "quick", 1, t0)
	s = RecordConditionViewed(s, "Flu", "view", t0)
	s = ClearRecentSearches(s)

	if len(s.RecentSearches) != 0 {
		t.Error("Expected searches cleared")
	}
	if len(s.RecentConditionsViewed) != 1 || s.UsageCount(models.CapabilityDiseaseSearch) != 1 {
		t.Error("Expected other fields untouched")
	}
}

func TestCompleteOnboarding(t *testing.T) {
	t.Parallel()

	s := CompleteOnboarding(models.NewDefaultSnapshot(t0))
	if !s.OnboardingComplete {
		t.Error("Expected onboarding complete")
	}
}

func TestBoundedCollections_AnySequence(t *testing.T) {
	t.Parallel()

	s := models.NewDefaultSnapshot(t0)
	for i := 0; i < 200; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		switch i % 5 {
		case 0:
			s = RecordSearch(s, fmt.Sprintf("s%d", i), "quick", i, at)
		case 1:
			s = RecordConditionViewed(s, fmt.Sprintf("c%d", i), "view", at)
		case 2:
			s = RecordSymptoms(s, at, fmt.Sprintf("y%d", i), "x")
		case 3:
			s = RecordFeatureUsage(s, models.Capabilities[i%len(models.Capabilities)], nil, at)
		case 4:
			s = AddFavorite(s, fmt.Sprintf("f%d", i), "article", at)
		}
	}

	if len(s.RecentSearches) > models.MaxRecentSearches ||
		len(s.RecentConditionsViewed) > models.MaxRecentConditions ||
		len(s.RecentSymptoms) > models.MaxRecentSymptoms ||
		len(s.FeatureDiscoveryLog) > models.MaxDiscoveryLog ||
		len(s.FavoriteItems) > models.MaxFavorites ||
		len(s.PreferredFeatures) > models.MaxPreferred {
		t.Errorf("Collection bound exceeded: %d/%d/%d/%d/%d/%d",
			len(s.RecentSearches), len(s.RecentConditionsViewed), len(s.RecentSymptoms),
			len(s.FeatureDiscoveryLog), len(s.FavoriteItems), len(s.PreferredFeatures))
	}
}
