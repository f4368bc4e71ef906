package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/engine"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// RecordChangeRequest is the request body for recording a direct field change.
type RecordChangeRequest struct {
	WorldID   uuid.UUID `json:"world_id"`
	Category  string    `json:"category"`
	TargetID  string    `json:"target_id"`
	Field     string    `json:"field"`
	Value     string    `json:"value"`
	Input     string    `json:"input,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`
}

// ChangesResponse lists change log records, newest last.
type ChangesResponse struct {
	Changes []state.DataChange `json:"changes"`
}

type ChangeHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewChangeHandler(eng *engine.Engine, logger *slog.Logger) *ChangeHandler {
	return &ChangeHandler{
		engine: eng,
		logger: logger,
	}
}

// ServeHTTP handles HTTP requests for the change log
// Routes:
// GET /v1/changes?world_id={id}&category=&target_id=&since=   - Query change history
// POST /v1/changes                                            - Record a direct field change
// DELETE /v1/changes?world_id={id}&category=&target_id=       - Revert the most recent change
func (h *ChangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		h.handleQuery(w, r)

	case http.MethodPost:
		h.handleRecord(w, r)

	case http.MethodDelete:
		h.handleRevert(w, r)

	default:
		h.logger.Warn("Method not allowed for changes endpoint", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		response := ErrorResponse{
			Error: "Method not allowed. Supported methods: GET, POST, DELETE",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
	}
}

// queryWorldID extracts and validates the world_id query parameter. On
// failure it writes the error response and returns ok=false.
func (h *ChangeHandler) queryWorldID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
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

func (h *ChangeHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	worldID, ok := h.queryWorldID(w, r)
	if !ok {
		return
	}

	category := r.URL.Query().Get("category")
	targetID := r.URL.Query().Get("target_id")

	var since time.Duration
	if raw := r.URL.Query().Get("since"); raw != "" {
		var err error
		since, err = time.ParseDuration(raw)
		if err != nil {
			h.logger.Warn("Invalid since query parameter", "since", raw, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			response := ErrorResponse{
				Error: "Invalid since duration. Use Go duration syntax, e.g. 30m or 2h.",
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
	}

	changes, err := h.engine.QueryChanges(r.Context(), worldID, category, targetID)
	if err != nil {
		h.logger.Error("Failed to query changes", "error", err, "world_id", worldID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to query changes",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if since > 0 {
		cutoff := time.Now().Add(-since)
		recent := make([]state.DataChange, 0, len(changes))
		for _, c := range changes {
			if c.Timestamp.After(cutoff) {
				recent = append(recent, c)
			}
		}
		changes = recent
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ChangesResponse{Changes: changes}); err != nil {
		h.logger.Error("Failed to encode changes response", "error", err)
	}
}

func (h *ChangeHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req RecordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Invalid request body. Expected JSON with 'world_id', 'category', 'target_id', 'field' and 'value'.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if req.WorldID == uuid.Nil || req.Category == "" || req.TargetID == "" || req.Field == "" {
		h.logger.Warn("Missing required fields in record change request")
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "world_id, category, target_id and field are required",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	change, err := h.engine.RecordChange(r.Context(), req.WorldID,
		req.Category, req.TargetID, req.Field, req.Value, req.Input, req.Reasoning)
	if err != nil {
		if errors.Is(err, state.ErrFieldNotAllowed) {
			h.logger.Warn("Field not allowed", "error", err, "field", req.Field)
			w.WriteHeader(http.StatusBadRequest)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		if errors.Is(err, state.ErrTargetNotFound) {
			h.logger.Warn("Change target not found", "error", err, "target_id", req.TargetID)
			w.WriteHeader(http.StatusNotFound)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		h.logger.Error("Failed to record change", "error", err, "target_id", req.TargetID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to record change",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	h.logger.Debug("Change recorded", "change_id", change.ID, "target_id", req.TargetID, "field", req.Field)
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(change); err != nil {
		h.logger.Error("Failed to encode change response", "error", err)
	}
}

func (h *ChangeHandler) handleRevert(w http.ResponseWriter, r *http.Request) {
	worldID, ok := h.queryWorldID(w, r)
	if !ok {
		return
	}

	category := r.URL.Query().Get("category")
	targetID := r.URL.Query().Get("target_id")

	change, err := h.engine.RevertLastChange(r.Context(), worldID, category, targetID)
	if err != nil {
		if errors.Is(err, state.ErrNothingToRevert) {
			h.logger.Warn("Nothing to revert", "world_id", worldID, "category", category, "target_id", targetID)
			w.WriteHeader(http.StatusNotFound)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		if errors.Is(err, state.ErrRevertTargetGone) {
			h.logger.Warn("Revert target gone", "error", err, "world_id", worldID)
			w.WriteHeader(http.StatusConflict)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		h.logger.Error("Failed to revert change", "error", err, "world_id", worldID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to revert change",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	h.logger.Info("Change reverted", "change_id", change.ID, "world_id", worldID)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(change); err != nil {
		h.logger.Error("Failed to encode change response", "error", err)
	}
}
