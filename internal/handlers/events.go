package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/services/queue"
)

// EventsResponse lists queued turn events for a session, oldest first.
type EventsResponse struct {
	Events []queue.TurnEvent `json:"events"`
	Count  int               `json:"count"`
}

// EventsHandler exposes the turn event feed for polling. Reads never consume
// events; the archive worker owns the destructive read.
type EventsHandler struct {
	events *queue.TurnEventQueue
	logger *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(events *queue.TurnEventQueue, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		events: events,
		logger: logger,
	}
}

// ServeHTTP handles requests for queued turn events
// GET /v1/events/worlds/{worldID}?limit={n}
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		h.logger.Warn("Method not allowed for events endpoint",
			"method", r.Method,
			"path", r.URL.Path)
		w.WriteHeader(http.StatusMethodNotAllowed)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Method not allowed. Only GET is supported.",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	// Extract worldID from path
	// Expected: /v1/events/worlds/{worldID}
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 4 || pathParts[0] != "v1" || pathParts[1] != "events" || pathParts[2] != "worlds" {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Invalid path. Expected /v1/events/worlds/{worldID}",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	worldID, err := uuid.Parse(pathParts[3])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Invalid world ID format.",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			w.WriteHeader(http.StatusBadRequest)
			if err := json.NewEncoder(w).Encode(ErrorResponse{
				Error: "Invalid limit. Expected a non-negative integer.",
			}); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
	}

	events, err := h.events.Peek(r.Context(), worldID, limit)
	if err != nil {
		h.logger.Error("Failed to read turn events", "error", err, "world_id", worldID)
		w.WriteHeader(http.StatusInternalServerError)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Failed to read turn events",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(EventsResponse{Events: events, Count: len(events)}); err != nil {
		h.logger.Error("Failed to encode events response", "error", err)
	}
}
