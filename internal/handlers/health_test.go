package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/smart-health/internal/session"
	"github.com/benvon/smart-health/internal/storage"
)

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return response
}

func TestHealthChecker_BasicMode(t *testing.T) {
	t.Parallel()

	manager := session.NewManager(storage.NewMemoryStore())
	checks := map[string]CheckFunc{
		"store": func(context.Context) error { return errors.New("down") },
	}
	h := NewHealthChecker(manager, checks)

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	response := decodeHealth(t, w)
	if response.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", response.Status)
	}
	if response.Session != session.StateUninitialized.String() {
		t.Errorf("Expected session state %q, got %q", session.StateUninitialized.String(), response.Session)
	}
	if response.Checks != nil {
		t.Errorf("Basic mode must not run checks, got %v", response.Checks)
	}
}

func TestHealthChecker_ExtendedMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		checks         map[string]CheckFunc
		expectedStatus string
		expectedCode   int
	}{
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"store":     func(context.Context) error { return nil },
				"publisher": func(context.Context) error { return nil },
			},
			expectedStatus: "healthy",
			expectedCode:   http.StatusOK,
		},
		{
			name: "store unhealthy",
			checks: map[string]CheckFunc{
				"store":     func(context.Context) error { return errors.New("connection refused") },
				"publisher": func(context.Context) error { return nil },
			},
			expectedStatus: "unhealthy",
			expectedCode:   http.StatusServiceUnavailable,
		},
		{
			name:           "no checks",
			checks:         nil,
			expectedStatus: "healthy",
			expectedCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker(nil, tt.checks)
			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest("GET", "/healthz?mode=extended", nil))

			if w.Code != tt.expectedCode {
				t.Errorf("Expected status code %d, got %d", tt.expectedCode, w.Code)
			}
			response := decodeHealth(t, w)
			if response.Status != tt.expectedStatus {
				t.Errorf("Expected status '%s', got '%s'", tt.expectedStatus, response.Status)
			}
			if response.Session != "" {
				t.Errorf("Expected no session state without a manager, got %q", response.Session)
			}
			for name := range tt.checks {
				if _, ok := response.Checks[name]; !ok {
					t.Errorf("Expected result for check %q", name)
				}
			}
		})
	}
}

func TestHealthChecker_ExtendedModeReportsFailure(t *testing.T) {
	t.Parallel()

	h := NewHealthChecker(nil, map[string]CheckFunc{
		"store": func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})
	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest("GET", "/healthz?mode=extended", nil))

	result := decodeHealth(t, w).Checks["store"]
	if !strings.HasPrefix(result, "unhealthy: ") || !strings.Contains(result, "connection refused") {
		t.Errorf("Unexpected check result %q", result)
	}
}
