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

// TalkRequest is the request body for speaking to an NPC.
type TalkRequest struct {
	WorldID uuid.UUID `json:"world_id"`
	NPCID   string    `json:"npc_id"`
	Message string    `json:"message"`
}

type TalkHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewTalkHandler(eng *engine.Engine, logger *slog.Logger) *TalkHandler {
	return &TalkHandler{
		engine: eng,
		logger: logger,
	}
}

// ServeHTTP handles HTTP requests for NPC conversations
// Routes:
// POST /v1/talk                               - Speak to an NPC
// GET /v1/talk?world_id={id}&npc_id={npc}     - Read conversation state
// DELETE /v1/talk?world_id={id}&npc_id={npc}  - Reset the NPC's question budget
func (h *TalkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodPost:
		h.handleTalk(w, r)

	case http.MethodGet:
		h.handleState(w, r)

	case http.MethodDelete:
		h.handleReset(w, r)

	default:
		h.logger.Warn("Method not allowed for talk endpoint", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		response := ErrorResponse{
			Error: "Method not allowed. Supported methods: POST, GET, DELETE",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
	}
}

// queryTalkTarget extracts and validates the world_id and npc_id query
// parameters. On failure it writes the error response and returns ok=false.
func (h *TalkHandler) queryTalkTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	rawWorld := r.URL.Query().Get("world_id")
	npcID := r.URL.Query().Get("npc_id")
	if rawWorld == "" || npcID == "" {
		h.logger.Warn("Missing world_id or npc_id query parameter", "path", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "world_id and npc_id query parameters are required",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return uuid.Nil, "", false
	}

	worldID, err := uuid.Parse(rawWorld)
	if err != nil {
		h.logger.Warn("Invalid world_id query parameter", "world_id", rawWorld, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Invalid world_id format",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return uuid.Nil, "", false
	}

	return worldID, npcID, true
}

func (h *TalkHandler) handleTalk(w http.ResponseWriter, r *http.Request) {
	var req TalkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Invalid request body. Expected JSON with 'world_id', 'npc_id' and 'message' fields.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if req.WorldID == uuid.Nil || req.NPCID == "" {
		h.logger.Warn("Missing world_id or npc_id in talk request")
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "world_id and npc_id are required",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	if req.Message == "" {
		h.logger.Warn("Empty message in talk request", "npc_id", req.NPCID)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Message cannot be empty.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := h.engine.Talk(ctx, req.WorldID, req.NPCID, req.Message)
	if err != nil {
		if errors.Is(err, state.ErrTargetNotFound) {
			h.logger.Warn("NPC not found", "npc_id", req.NPCID, "world_id", req.WorldID)
			w.WriteHeader(http.StatusNotFound)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		h.logger.Error("Error handling talk request", "error", err, "npc_id", req.NPCID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to process message. Please try again.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		h.logger.Error("Failed to encode talk response", "error", err)
	}
}

func (h *TalkHandler) handleState(w http.ResponseWriter, r *http.Request) {
	worldID, npcID, ok := h.queryTalkTarget(w, r)
	if !ok {
		return
	}

	world, err := h.engine.Session(r.Context(), worldID)
	if err != nil {
		h.logger.Error("Failed to load world", "error", err, "world_id", worldID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to load world",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if world.GetNPC(npcID) == nil {
		h.logger.Warn("NPC not found", "npc_id", npcID, "world_id", worldID)
		w.WriteHeader(http.StatusNotFound)
		response := ErrorResponse{
			Error: "NPC not found: " + npcID,
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(world.Conversation(npcID)); err != nil {
		h.logger.Error("Failed to encode conversation state response", "error", err)
	}
}

func (h *TalkHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	worldID, npcID, ok := h.queryTalkTarget(w, r)
	if !ok {
		return
	}

	if err := h.engine.ResetBudget(r.Context(), worldID, npcID); err != nil {
		if errors.Is(err, state.ErrTargetNotFound) {
			h.logger.Warn("NPC not found for reset", "npc_id", npcID, "world_id", worldID)
			w.WriteHeader(http.StatusNotFound)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		h.logger.Error("Failed to reset question budget", "error", err, "npc_id", npcID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to reset question budget",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	h.logger.Debug("Question budget reset", "npc_id", npcID, "world_id", worldID)
	w.WriteHeader(http.StatusNoContent)
}
