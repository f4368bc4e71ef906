package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/world-engine/internal/engine"
	"github.com/mkarlsen/world-engine/internal/services"
	"github.com/mkarlsen/world-engine/internal/storage"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// testLogger returns a logger that only surfaces errors, to reduce noise.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// newTestEngine builds an engine on mock storage and a mock oracle, with the
// turn event feed disabled.
func newTestEngine(t *testing.T) (*engine.Engine, *storage.MockStorage, *services.MockOracle) {
	t.Helper()
	store := storage.NewMockStorage()
	mock := services.NewMockOracle()
	return engine.New(store, mock, nil, testLogger()), store, mock
}

// seedWorld saves a default world and resets the save counter so tests can
// assert on persistence caused by the handler under test.
func seedWorld(t *testing.T, store *storage.MockStorage) *state.WorldState {
	t.Helper()
	w := state.NewWorldState()
	if err := store.SaveWorld(context.Background(), w.ID, w); err != nil {
		t.Fatalf("Failed to seed world: %v", err)
	}
	store.SaveCalls = 0
	return w
}

// jsonBody marshals a request payload for an httptest request.
func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	return bytes.NewBuffer(data)
}

func TestWorldHandler_Create(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/worlds", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var world state.WorldState
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&world))
	assert.NotEqual(t, uuid.Nil, world.ID)
	assert.Equal(t, "Hero", world.Player.Name)
	assert.Equal(t, 1, store.SaveCalls)
	assert.NotNil(t, store.Stored(world.ID))
}

func TestWorldHandler_CreateFromTemplate(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	template := state.NewWorldState()
	template.Player.Name = "Lady of the Keep"
	store.AddTemplate("castle.json", template)

	req := httptest.NewRequest(http.MethodPost, "/v1/worlds",
		jsonBody(t, CreateWorldRequest{Template: "Castle"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var world state.WorldState
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&world))
	assert.Equal(t, "Lady of the Keep", world.Player.Name)
	assert.NotEqual(t, template.ID, world.ID, "session must get its own id")
}

func TestWorldHandler_CreateTemplateMissing(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/worlds",
		jsonBody(t, CreateWorldRequest{Template: "atlantis"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Contains(t, response.Error, "Failed to load template")
}

func TestWorldHandler_CreateInvalidBody(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/worlds",
		bytes.NewBufferString("not json"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, "Invalid JSON in request body", response.Error)
}

func TestWorldHandler_List(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	first := seedWorld(t, store)
	second := seedWorld(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/worlds", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response ListWorldsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Len(t, response.Worlds, 2)
	assert.Contains(t, response.Worlds, first.ID)
	assert.Contains(t, response.Worlds, second.ID)
}

func TestWorldHandler_Read(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	seeded := seedWorld(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/worlds/"+seeded.ID.String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var world state.WorldState
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&world))
	assert.Equal(t, seeded.ID, world.ID)
	assert.Equal(t, "tavern", world.Player.Location)
}

func TestWorldHandler_ReadInvalidID(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/worlds/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, "Invalid session ID format", response.Error)
}

func TestWorldHandler_Delete(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	seeded := seedWorld(t, store)

	req := httptest.NewRequest(http.MethodDelete, "/v1/worlds/"+seeded.ID.String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)

	ids, err := store.ListWorlds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWorldHandler_DeleteWithoutID(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/v1/worlds", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWorldHandler_MethodNotAllowed(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	handler := NewWorldHandler(eng, testLogger())

	req := httptest.NewRequest(http.MethodPatch, "/v1/worlds", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Contains(t, response.Error, "Method not allowed")
}
