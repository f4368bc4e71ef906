package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/world-engine/internal/engine"
)

func TestActionHandler_List(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())
	world := seedWorld(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/actions?world_id="+world.ID.String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response ActionsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	require.Len(t, response.Actions, 2)
	assert.Equal(t, "meditate", response.Actions[0].ID)
	assert.Equal(t, "rest", response.Actions[1].ID)
}

func TestActionHandler_ListMissingWorldID(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/actions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, "world_id query parameter is required", response.Error)
}

func TestActionHandler_Check(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())
	world := seedWorld(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/actions/rest?world_id="+world.ID.String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response ActionCheckResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, "rest", response.ActionID)
	assert.True(t, response.CanPerform)
}

func TestActionHandler_CheckUnmetPreconditions(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())

	world := seedWorld(t, store)
	world.Player.Gold = 3
	require.NoError(t, store.SaveWorld(context.Background(), world.ID, world))

	req := httptest.NewRequest(http.MethodGet, "/v1/actions/rest?world_id="+world.ID.String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response ActionCheckResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.False(t, response.CanPerform)
	assert.Contains(t, response.Reason, "not enough gold")
}

func TestActionHandler_CheckUnknownAction(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())
	world := seedWorld(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/actions/levitate?world_id="+world.ID.String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Contains(t, response.Error, "levitate")
}

func TestActionHandler_Execute(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())
	world := seedWorld(t, store)

	req := httptest.NewRequest(http.MethodPost, "/v1/actions",
		jsonBody(t, ExecuteActionRequest{WorldID: world.ID, ActionID: "rest"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var result engine.TurnResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	assert.Equal(t, "Successfully performed Rest", result.Message)
	assert.True(t, result.Mutated)

	stored := store.Stored(world.ID)
	require.NotNil(t, stored)
	assert.Equal(t, 95, stored.Player.Gold, "rest costs 5 gold")
}

func TestActionHandler_ExecutePreconditionFailure(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())

	world := seedWorld(t, store)
	world.Player.Location = "forest"
	require.NoError(t, store.SaveWorld(context.Background(), world.ID, world))
	store.SaveCalls = 0

	req := httptest.NewRequest(http.MethodPost, "/v1/actions",
		jsonBody(t, ExecuteActionRequest{WorldID: world.ID, ActionID: "rest"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var result engine.TurnResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	assert.False(t, result.Mutated)
	assert.Contains(t, result.Message, "must be at tavern")
	assert.Equal(t, 0, store.SaveCalls, "refused actions must not persist")
}

func TestActionHandler_ExecuteUnknownAction(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())
	world := seedWorld(t, store)

	req := httptest.NewRequest(http.MethodPost, "/v1/actions",
		jsonBody(t, ExecuteActionRequest{WorldID: world.ID, ActionID: "levitate"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestActionHandler_ExecuteMissingFields(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/actions",
		jsonBody(t, ExecuteActionRequest{}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, "world_id and action_id are required", response.Error)
}

func TestActionHandler_MethodNotAllowed(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	handler := NewActionHandler(eng, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/v1/actions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
