package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-health/internal/logger"
	"github.com/benvon/smart-health/internal/models"
	"github.com/benvon/smart-health/internal/session"
	"github.com/benvon/smart-health/internal/validation"
)

const (
	// DefaultInsightLimit is the number of symptom insights returned when no limit is given
	DefaultInsightLimit = 5
)

// InteractionHandler exposes the session manager to the rendering layer
type InteractionHandler struct {
	session *session.Manager
	logger  *zap.Logger
}

// NewInteractionHandler creates a new interaction handler
func NewInteractionHandler(manager *session.Manager, logger *zap.Logger) *InteractionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InteractionHandler{session: manager, logger: logger}
}

// RegisterRoutes registers interaction routes on the given router
// The router should already have the /interactions prefix
func (h *InteractionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/snapshot", h.GetSnapshot).Methods("GET")
	r.HandleFunc("/preferences", h.GetPreferences).Methods("GET")
	r.HandleFunc("/recommendations", h.GetRecommendations).Methods("GET")
	r.HandleFunc("/layout", h.GetLayout).Methods("GET")
	r.HandleFunc("/insights/symptoms", h.GetSymptomInsights).Methods("GET")

	r.HandleFunc("/features", h.RecordFeatureUsage).Methods("POST")
	r.HandleFunc("/searches", h.RecordSearch).Methods("POST")
	r.HandleFunc("/searches", h.ClearSearches).Methods("DELETE")
	r.HandleFunc("/conditions", h.RecordConditionViewed).Methods("POST")
	r.HandleFunc("/symptoms", h.RecordSymptoms).Methods("POST")
	r.HandleFunc("/focus", h.SetHealthFocus).Methods("PUT")
	r.HandleFunc("/favorites", h.AddFavorite).Methods("POST")
	r.HandleFunc("/favorites", h.RemoveFavorite).Methods("DELETE")
	r.HandleFunc("/favorites/toggle", h.ToggleFavorite).Methods("POST")
	r.HandleFunc("/onboarding/complete", h.CompleteOnboarding).Methods("POST")
	r.HandleFunc("/flush", h.Flush).Methods("POST")
}

// FeatureUsageRequest represents a feature usage event
type FeatureUsageRequest struct {
	Feature  string         `json:"feature" validate:"required,capability"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchRequest represents a performed search
type SearchRequest struct {
	Query       string `json:"query" validate:"required,max=200"`
	Type        string `json:"type" validate:"max=50"`
	ResultCount int    `json:"resultCount" validate:"min=0"`
}

// ConditionViewRequest represents a viewed condition
type ConditionViewRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Action string `json:"action" validate:"max=50"`
}

// SymptomsRequest represents a reported batch of symptoms
type SymptomsRequest struct {
	Symptoms []string `json:"symptoms" validate:"required,min=1,max=30,dive,required,max=200"`
}

// HealthFocusRequest represents a health focus change. Unknown values are
// accepted and ignored.
type HealthFocusRequest struct {
	Focus string `json:"focus" validate:"required"`
}

// FavoriteRequest identifies a favorite item
type FavoriteRequest struct {
	Item string `json:"item" validate:"required,max=200"`
	Type string `json:"type" validate:"max=50"`
}

// PreferencesResponse carries the ranked preferred capabilities
type PreferencesResponse struct {
	PreferredFeatures []models.Capability `json:"preferredFeatures"`
}

// FavoriteResponse reports the favorite state after a toggle
type FavoriteResponse struct {
	Favorite bool                       `json:"favorite"`
	Snapshot models.InteractionSnapshot `json:"snapshot"`
}

// GetSnapshot returns the current interaction snapshot
func (h *InteractionHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// GetPreferences returns the ranked preferred capabilities
func (h *InteractionHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, PreferencesResponse{PreferredFeatures: h.session.Rank()})
}

// GetRecommendations returns up to three recommendations
func (h *InteractionHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Recommend())
}

// GetLayout returns the dashboard layout plan
func (h *InteractionHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.PlanLayout())
}

// GetSymptomInsights returns the most frequent recent symptoms
func (h *InteractionHandler) GetSymptomInsights(w http.ResponseWriter, r *http.Request) {
	limit := DefaultInsightLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = min(parsed, models.MaxRecentSymptoms)
	}
	respondJSON(w, http.StatusOK, h.session.SymptomInsights(limit))
}

// RecordFeatureUsage records use of a capability
func (h *InteractionHandler) RecordFeatureUsage(w http.ResponseWriter, r *http.Request) {
	var req FeatureUsageRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, h.session.RecordFeatureUsage(models.Capability(req.Feature), req.Metadata))
}

// RecordSearch records a performed search
func (h *InteractionHandler) RecordSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if validation.SanitizeText(req.Query) == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Query is required and cannot be empty after sanitization")
		return
	}
	respondJSON(w, http.StatusOK, h.session.RecordSearch(req.Query, req.Type, req.ResultCount))
}

// ClearSearches empties the recent search history
func (h *InteractionHandler) ClearSearches(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.ClearRecentSearches())
}

// RecordConditionViewed records a condition view
func (h *InteractionHandler) RecordConditionViewed(w http.ResponseWriter, r *http.Request) {
	var req ConditionViewRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Action == "" {
		req.Action = "view"
	}
	respondJSON(w, http.StatusOK, h.session.RecordConditionViewed(req.Name, req.Action))
}

// RecordSymptoms records a batch of symptoms
func (h *InteractionHandler) RecordSymptoms(w http.ResponseWriter, r *http.Request) {
	var req SymptomsRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, h.session.RecordSymptoms(req.Symptoms...))
}

// SetHealthFocus changes the declared health focus
func (h *InteractionHandler) SetHealthFocus(w http.ResponseWriter, r *http.Request) {
	var req HealthFocusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := validation.ValidateHealthFocus(req.Focus); err != nil {
		h.logger.Debug("Ignoring invalid health focus", zap.String("focus", logger.SanitizeUserText(req.Focus)))
	}
	respondJSON(w, http.StatusOK, h.session.SetHealthFocus(models.HealthFocus(req.Focus)))
}

// AddFavorite saves a favorite item
func (h *InteractionHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, h.session.AddFavorite(req.Item, req.Type))
}

// RemoveFavorite deletes a favorite item
func (h *InteractionHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, h.session.RemoveFavorite(req.Item, req.Type))
}

// ToggleFavorite flips the favorite state of an item
func (h *InteractionHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	snapshot, favorite := h.session.ToggleFavorite(req.Item, req.Type)
	respondJSON(w, http.StatusOK, FavoriteResponse{
		Favorite: favorite,
		Snapshot: snapshot,
	})
}

// CompleteOnboarding marks onboarding as complete
func (h *InteractionHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.CompleteOnboarding())
}

// Flush writes the snapshot to the durable store immediately
func (h *InteractionHandler) Flush(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Flush(r.Context()); err != nil {
		h.logger.Warn("Explicit flush failed", zap.Error(err))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to persist interaction snapshot")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"flushed": true})
}

// decodeAndValidate decodes the JSON body into dst and runs struct validation.
// It writes the error response and returns false on failure.
func (h *InteractionHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		// Check if error is due to request size limit
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}

	if err := validation.Validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", validationErrors[0].Error()))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return false
	}
	return true
}
