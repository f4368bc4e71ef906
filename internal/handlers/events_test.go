package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/world-engine/internal/services/queue"
)

// testEventQueue starts a miniredis-backed turn event queue.
func testEventQueue(t *testing.T) *queue.TurnEventQueue {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client, err := queue.NewClient("redis://"+mr.Addr(), testLogger())
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return queue.NewTurnEventQueue(client, testLogger())
}

func TestEventsHandler_Peek(t *testing.T) {
	q := testEventQueue(t)
	handler := NewEventsHandler(q, testLogger())

	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, q.Enqueue(ctx, sessionID, queue.TurnEvent{Kind: queue.TurnAction, Summary: "Rested at the inn"}))
	require.NoError(t, q.Enqueue(ctx, sessionID, queue.TurnEvent{Kind: queue.TurnModification, Summary: "Sharpened the iron sword"}))
	require.NoError(t, q.Enqueue(ctx, sessionID, queue.TurnEvent{Kind: queue.TurnConversation, Summary: "Asked the barkeep about rumors"}))

	req := httptest.NewRequest(http.MethodGet, "/v1/events/worlds/"+sessionID.String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response EventsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	require.Equal(t, 3, response.Count)
	assert.Equal(t, queue.TurnAction, response.Events[0].Kind)
	assert.Equal(t, queue.TurnConversation, response.Events[2].Kind)

	// The read must not consume events; the archive worker owns that.
	n, err := q.Len(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEventsHandler_PeekLimit(t *testing.T) {
	q := testEventQueue(t)
	handler := NewEventsHandler(q, testLogger())

	ctx := context.Background()
	sessionID := uuid.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, sessionID, queue.TurnEvent{Kind: queue.TurnImmediate, Summary: "tick"}))
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/events/worlds/"+sessionID.String()+"?limit=2", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response EventsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, 2, response.Count)
}

func TestEventsHandler_EmptyFeed(t *testing.T) {
	q := testEventQueue(t)
	handler := NewEventsHandler(q, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/events/worlds/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response EventsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, 0, response.Count)
	assert.Empty(t, response.Events)
}

func TestEventsHandler_InvalidPath(t *testing.T) {
	q := testEventQueue(t)
	handler := NewEventsHandler(q, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/events/gamestate/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEventsHandler_InvalidWorldID(t *testing.T) {
	q := testEventQueue(t)
	handler := NewEventsHandler(q, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/events/worlds/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEventsHandler_InvalidLimit(t *testing.T) {
	q := testEventQueue(t)
	handler := NewEventsHandler(q, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/events/worlds/"+uuid.NewString()+"?limit=soon", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEventsHandler_MethodNotAllowed(t *testing.T) {
	q := testEventQueue(t)
	handler := NewEventsHandler(q, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/events/worlds/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
