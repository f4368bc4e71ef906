package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/engine"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// ExecuteActionRequest is the request body for performing a registered action.
type ExecuteActionRequest struct {
	WorldID  uuid.UUID `json:"world_id"`
	ActionID string    `json:"action_id"`
}

// ActionsResponse lists the actions currently available to the player.
type ActionsResponse struct {
	Actions []*state.Action `json:"actions"`
}

// ActionCheckResponse reports whether one action can be performed right now.
type ActionCheckResponse struct {
	ActionID   string `json:"action_id"`
	CanPerform bool   `json:"can_perform"`
	Reason     string `json:"reason,omitempty"`
}

type ActionHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewActionHandler(eng *engine.Engine, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{
		engine: eng,
		logger: logger,
	}
}

// ServeHTTP handles HTTP requests for registered actions
// Routes:
// GET /v1/actions?world_id={id}              - List available actions
// GET /v1/actions/{action_id}?world_id={id}  - Check one action's preconditions
// POST /v1/actions                           - Execute an action
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/v1/actions")
	actionID := strings.Trim(path, "/")

	switch r.Method {
	case http.MethodGet:
		worldID, ok := h.queryWorldID(w, r)
		if !ok {
			return
		}
		if actionID == "" {
			h.handleList(w, r, worldID)
			return
		}
		h.handleCheck(w, r, worldID, actionID)

	case http.MethodPost:
		h.handleExecute(w, r)

	default:
		h.logger.Warn("Method not allowed for actions endpoint", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		response := ErrorResponse{
			Error: "Method not allowed. Supported methods: GET, POST",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
	}
}

// queryWorldID extracts and validates the world_id query parameter. On
// failure it writes the error response and returns ok=false.
func (h *ActionHandler) queryWorldID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("world_id")
	if raw == "" {
		h.logger.Warn("Missing world_id query parameter", "path", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "world_id query parameter is required",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return uuid.Nil, false
	}

	worldID, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Warn("Invalid world_id query parameter", "world_id", raw, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Invalid world_id format",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return uuid.Nil, false
	}

	return worldID, true
}

func (h *ActionHandler) handleList(w http.ResponseWriter, r *http.Request, worldID uuid.UUID) {
	actions, err := h.engine.AvailableActions(r.Context(), worldID)
	if err != nil {
		h.logger.Error("Failed to list actions", "error", err, "world_id", worldID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to list actions",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ActionsResponse{Actions: actions}); err != nil {
		h.logger.Error("Failed to encode actions response", "error", err)
	}
}

func (h *ActionHandler) handleCheck(w http.ResponseWriter, r *http.Request, worldID uuid.UUID, actionID string) {
	can, reason, err := h.engine.CanPerformAction(r.Context(), worldID, actionID)
	if err != nil {
		if errors.Is(err, state.ErrTargetNotFound) {
			h.logger.Warn("Action not found", "action_id", actionID, "world_id", worldID)
			w.WriteHeader(http.StatusNotFound)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		h.logger.Error("Failed to check action", "error", err, "action_id", actionID, "world_id", worldID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to check action",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	response := ActionCheckResponse{
		ActionID:   actionID,
		CanPerform: can,
		Reason:     reason,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode action check response", "error", err)
	}
}

func (h *ActionHandler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Invalid request body. Expected JSON with 'world_id' and 'action_id' fields.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if req.WorldID == uuid.Nil || req.ActionID == "" {
		h.logger.Warn("Missing world_id or action_id in execute request")
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "world_id and action_id are required",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	result, err := h.engine.ExecuteAction(r.Context(), req.WorldID, req.ActionID)
	if err != nil {
		if errors.Is(err, state.ErrTargetNotFound) {
			h.logger.Warn("Action not found", "action_id", req.ActionID, "world_id", req.WorldID)
			w.WriteHeader(http.StatusNotFound)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		h.logger.Error("Failed to execute action", "error", err, "action_id", req.ActionID, "world_id", req.WorldID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to execute action",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	// Precondition failures come back as a normal turn result with the
	// refusal message and no mutation.
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("Failed to encode turn response", "error", err)
	}
}
