package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/benvon/smart-health/internal/models"
	"github.com/benvon/smart-health/internal/personalization"
)

var (
	// ErrCorruptRecord means the durable record could not be used at all and
	// the defaults were returned in its place
	ErrCorruptRecord = errors.New("corrupt interaction record")

	// ErrPartialRecord means some fields of the durable record had the wrong
	// shape; the returned snapshot keeps every field that did decode
	ErrPartialRecord = errors.New("partially decoded interaction record")
)

// Encode serializes the full snapshot. Timestamps are written as RFC 3339 strings.
func Encode(s models.InteractionSnapshot) (string, error) {
	data, err := json.Marshal(s.Clone())
	if err != nil {
		return "", fmt.Errorf("failed to marshal interaction snapshot: %w", err)
	}
	return string(data), nil
}

// Decode parses a durable record on top of defaults, field by field. Absent
// fields keep their default, out-of-range values are normalized and the
// preferred features are recomputed from the usage counts rather than trusted.
// A field that fails to decode keeps its default; list entries that fail are
// dropped. Either case is reported as ErrPartialRecord.
func Decode(raw string, defaults models.InteractionSnapshot) (models.InteractionSnapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return normalize(defaults.Clone(), defaults), fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	if fields == nil {
		return normalize(defaults.Clone(), defaults), fmt.Errorf("%w: null record", ErrCorruptRecord)
	}

	decoded := defaults.Clone()
	var bad []string
	for name, value := range fields {
		decode, ok := fieldDecoders[name]
		if !ok {
			continue
		}
		if err := decode(value, &decoded); err != nil {
			bad = append(bad, fmt.Sprintf("%s (%v)", name, err))
		}
	}

	if len(bad) > 0 {
		sort.Strings(bad)
		return normalize(decoded, defaults), fmt.Errorf("%w: %s", ErrPartialRecord, strings.Join(bad, "; "))
	}
	return normalize(decoded, defaults), nil
}

type fieldDecoder func(raw json.RawMessage, s *models.InteractionSnapshot) error

var fieldDecoders = map[string]fieldDecoder{
	"featureUsageCounts": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeCounts(raw, s.FeatureUsageCounts)
	},
	"recentSearches": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeList(raw, &s.RecentSearches, json.Unmarshal)
	},
	"recentConditionsViewed": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeList(raw, &s.RecentConditionsViewed, json.Unmarshal)
	},
	"recentSymptoms": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeList(raw, &s.RecentSymptoms, json.Unmarshal)
	},
	"featureDiscoveryLog": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeList(raw, &s.FeatureDiscoveryLog, decodeDiscoveryEntry)
	},
	"preferredFeatures": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeList(raw, &s.PreferredFeatures, json.Unmarshal)
	},
	"favoriteItems": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeList(raw, &s.FavoriteItems, json.Unmarshal)
	},
	"healthFocus": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeValue(raw, &s.HealthFocus)
	},
	"onboardingComplete": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeValue(raw, &s.OnboardingComplete)
	},
	"lastVisit": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeValue(raw, &s.LastVisit)
	},
	"sessionCount": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeValue(raw, &s.SessionCount)
	},
	"totalTimeSpent": func(raw json.RawMessage, s *models.InteractionSnapshot) error {
		return decodeValue(raw, &s.TotalTimeSpent)
	},
}

// decodeValue only assigns dst when raw decodes cleanly
func decodeValue[T any](raw json.RawMessage, dst *T) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if string(raw) != "null" {
		*dst = v
	}
	return nil
}

// decodeCounts merges every well-formed counter into counts
func decodeCounts(raw json.RawMessage, counts map[models.Capability]int) error {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return err
	}
	var firstErr error
	for name, value := range entries {
		var n int
		if err := json.Unmarshal(value, &n); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		counts[models.Capability(name)] = n
	}
	return firstErr
}

// decodeList decodes entries one by one, dropping those that fail. A value
// that is not a list leaves dst untouched.
func decodeList[T any](raw json.RawMessage, dst *[]T, unmarshal func([]byte, any) error) error {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	out := make([]T, 0, len(items))
	var firstErr error
	for i, item := range items {
		var v T
		if err := unmarshal(item, &v); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("entry %d: %w", i, err)
			}
			continue
		}
		out = append(out, v)
	}
	*dst = out
	return firstErr
}

// decodeDiscoveryEntry keeps integral metadata numbers as int so a snapshot
// survives an encode/decode cycle unchanged
func decodeDiscoveryEntry(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if entry, ok := v.(*models.DiscoveryEntry); ok && entry.Metadata != nil {
		entry.Metadata = normalizeNumbers(entry.Metadata).(map[string]any)
	}
	return nil
}

// normalizeNumbers converts json.Number values to int when integral and
// float64 otherwise
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 0); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}

// normalize restores the snapshot invariants after a decode
func normalize(s, defaults models.InteractionSnapshot) models.InteractionSnapshot {
	counts := make(map[models.Capability]int, len(models.Capabilities))
	for _, c := range models.Capabilities {
		counts[c] = s.UsageCount(c)
	}
	s.FeatureUsageCounts = counts

	s.RecentSearches = capped(slices.DeleteFunc(nonNil(s.RecentSearches),
		func(e models.SearchEntry) bool { return e.Query == "" }), models.MaxRecentSearches)
	s.RecentConditionsViewed = capped(slices.DeleteFunc(nonNil(s.RecentConditionsViewed),
		func(e models.ConditionView) bool { return e.Name == "" }), models.MaxRecentConditions)
	s.RecentSymptoms = capped(slices.DeleteFunc(nonNil(s.RecentSymptoms),
		func(e models.SymptomEntry) bool { return e.Name == "" }), models.MaxRecentSymptoms)
	s.FeatureDiscoveryLog = capped(slices.DeleteFunc(nonNil(s.FeatureDiscoveryLog),
		func(e models.DiscoveryEntry) bool { return !models.IsKnownCapability(e.Capability) }), models.MaxDiscoveryLog)
	s.FavoriteItems = capped(slices.DeleteFunc(nonNil(s.FavoriteItems),
		func(e models.FavoriteItem) bool { return e.Item == "" }), models.MaxFavorites)

	if !s.HealthFocus.IsValid() {
		s.HealthFocus = models.HealthFocusGeneral
	}
	if s.LastVisit.IsZero() {
		s.LastVisit = defaults.LastVisit
	}
	s.SessionCount = max(s.SessionCount, 0)
	s.TotalTimeSpent = max(s.TotalTimeSpent, 0)

	s.PreferredFeatures = personalization.Rank(s.FeatureUsageCounts)
	return s
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

func capped[T any](list []T, limit int) []T {
	if len(list) > limit {
		return list[:limit]
	}
	return list
}
