package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

const testOpenAPIDocument = `openapi: 3.0.3
info:
  title: Test
  version: 1.0.0
servers:
  - url: http://example.invalid
paths:
  /interactions/snapshot:
    get:
      responses:
        '200':
          description: ok
`

func writeOpenAPIDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	if err := os.WriteFile(path, []byte(testOpenAPIDocument), 0o600); err != nil {
		t.Fatalf("Failed to write document: %v", err)
	}
	return path
}

func TestOpenAPIHandler_ServeJSON(t *testing.T) {
	t.Parallel()

	h := NewOpenAPIHandler(writeOpenAPIDocument(t), "https://health.example.com/")
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/openapi.json", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var doc struct {
		Info    map[string]any   `json:"info"`
		Servers []map[string]any `json:"servers"`
		Paths   map[string]any   `json:"paths"`
	}
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(doc.Servers) != 1 || doc.Servers[0]["url"] != "https://health.example.com" {
		t.Errorf("Expected servers overridden with base URL, got %v", doc.Servers)
	}
	if _, ok := doc.Paths["/interactions/snapshot"]; !ok {
		t.Errorf("Expected paths to be served, got %v", doc.Paths)
	}
}

func TestOpenAPIHandler_ServeYAML(t *testing.T) {
	t.Parallel()

	h := NewOpenAPIHandler(writeOpenAPIDocument(t), "")
	w := httptest.NewRecorder()
	h.ServeYAML(w, httptest.NewRequest("GET", "/api/v1/openapi.yaml", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-yaml" {
		t.Errorf("Expected Content-Type 'application/x-yaml', got '%s'", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "http://example.invalid") {
		t.Errorf("Expected original servers without a base URL, got:\n%s", body)
	}
}

func TestOpenAPIHandler_MissingDocument(t *testing.T) {
	t.Parallel()

	h := NewOpenAPIHandler(filepath.Join(t.TempDir(), "missing.yaml"), "")
	for _, serve := range []http.HandlerFunc{h.ServeJSON, h.ServeYAML} {
		w := httptest.NewRecorder()
		serve(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	}
}
