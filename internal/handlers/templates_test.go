package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkarlsen/world-engine/internal/storage"
	"github.com/mkarlsen/world-engine/pkg/state"
)

func TestTemplateHandler_Get(t *testing.T) {
	store := storage.NewMockStorage()
	template := state.NewWorldState()
	template.Player.Name = "Lady of the Keep"
	store.AddTemplate("castle.json", template)

	handler := NewTemplateHandler(testLogger(), store)

	req := httptest.NewRequest(http.MethodGet, "/v1/templates/castle.json", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
	}

	var world state.WorldState
	if err := json.NewDecoder(rr.Body).Decode(&world); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if world.Player.Name != "Lady of the Keep" {
		t.Errorf("Expected template player 'Lady of the Keep', got '%s'", world.Player.Name)
	}
}

func TestTemplateHandler_GetWithoutExtension(t *testing.T) {
	store := storage.NewMockStorage()
	store.AddTemplate("castle.json", state.NewWorldState())

	handler := NewTemplateHandler(testLogger(), store)

	req := httptest.NewRequest(http.MethodGet, "/v1/templates/castle", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestTemplateHandler_NotFound(t *testing.T) {
	store := storage.NewMockStorage()
	handler := NewTemplateHandler(testLogger(), store)

	req := httptest.NewRequest(http.MethodGet, "/v1/templates/atlantis.json", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Template not found") {
		t.Errorf("Expected 'Template not found' in body, got %q", rr.Body.String())
	}
}

func TestTemplateHandler_InvalidFilename(t *testing.T) {
	store := storage.NewMockStorage()
	handler := NewTemplateHandler(testLogger(), store)

	req := httptest.NewRequest(http.MethodGet, "/v1/templates/..%2Fsecrets", nil)
	req.URL.Path = "/v1/templates/../secrets"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestTemplateHandler_List(t *testing.T) {
	store := storage.NewMockStorage()
	store.AddTemplate("castle.json", state.NewWorldState())
	store.AddTemplate("village.json", state.NewWorldState())

	handler := NewTemplateHandler(testLogger(), store)

	req := httptest.NewRequest(http.MethodGet, "/v1/templates", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var response ListTemplatesResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Templates) != 2 {
		t.Errorf("Expected 2 templates, got %d", len(response.Templates))
	}
	if _, ok := response.Templates["castle.json"]; !ok {
		t.Error("Expected castle.json in template list")
	}
}

func TestTemplateHandler_MethodNotAllowed(t *testing.T) {
	store := storage.NewMockStorage()
	handler := NewTemplateHandler(testLogger(), store)

	req := httptest.NewRequest(http.MethodPost, "/v1/templates", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}
