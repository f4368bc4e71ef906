package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/engine"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// turnCommand marks a turn resolved by a shortcut command without the oracle.
const turnCommand = "command"

// UtteranceRequest is the request body for a player turn.
type UtteranceRequest struct {
	WorldID   uuid.UUID `json:"world_id"`
	Utterance string    `json:"utterance"`
	NPCID     string    `json:"npc_id,omitempty"` // speak to this NPC instead of acting
}

// UtteranceHandler runs player turns
type UtteranceHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewUtteranceHandler creates a new utterance handler
func NewUtteranceHandler(eng *engine.Engine, logger *slog.Logger) *UtteranceHandler {
	return &UtteranceHandler{
		engine: eng,
		logger: logger,
	}
}

// ServeHTTP handles HTTP requests for player utterances
func (h *UtteranceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Only allow POST method
	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for utterance endpoint",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)

		w.WriteHeader(http.StatusMethodNotAllowed)
		response := ErrorResponse{
			Error: "Method not allowed. Only POST is supported.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	// Parse request body
	var request UtteranceRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Invalid request body. Expected JSON with 'world_id' and 'utterance' fields.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	// Validate request
	if request.WorldID == uuid.Nil {
		h.logger.Warn("Missing world_id in utterance request")
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "world_id is required.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	if request.Utterance == "" {
		h.logger.Warn("Empty utterance in request", "world_id", request.WorldID)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Utterance cannot be empty.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	h.logger.Info("Utterance received",
		"world_id", request.WorldID,
		"npc_id", request.NPCID,
		"remote_addr", r.RemoteAddr)

	// Shortcut commands resolve locally. Directed speech always goes to the
	// conversation machine, so commands only apply to plain utterances.
	if request.NPCID == "" {
		world, err := h.engine.Session(r.Context(), request.WorldID)
		if err != nil {
			h.logger.Error("Failed to load world for command check", "error", err, "world_id", request.WorldID)
			w.WriteHeader(http.StatusInternalServerError)
			response := ErrorResponse{
				Error: "Failed to load world",
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		if result := TryHandleCommand(world, request.Utterance); result.Handled {
			w.WriteHeader(http.StatusOK)
			turn := engine.TurnResult{
				SessionID: request.WorldID,
				Kind:      turnCommand,
				Message:   result.Message,
				Allowed:   true,
			}
			if err := json.NewEncoder(w).Encode(turn); err != nil {
				h.logger.Error("Failed to encode command response", "error", err)
			}
			return
		}
	}

	// A turn can chain several oracle calls, so it gets a generous deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := h.engine.HandleUtterance(ctx, request.WorldID, request.Utterance, request.NPCID)
	if err != nil {
		if errors.Is(err, state.ErrTargetNotFound) {
			h.logger.Warn("Utterance target not found", "error", err, "world_id", request.WorldID, "npc_id", request.NPCID)
			w.WriteHeader(http.StatusNotFound)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		h.logger.Error("Error handling utterance", "error", err, "world_id", request.WorldID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to process utterance. Please try again.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	// Return successful response
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("Failed to encode turn response", "error", err)
	}
}
