package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/engine"
	"github.com/mkarlsen/world-engine/pkg/balance"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// ModificationRequest is the request body for a validated entity
// modification. Fields maps field name to proposed value; the justification
// is the player input that motivated the change.
type ModificationRequest struct {
	WorldID       uuid.UUID         `json:"world_id"`
	Category      string            `json:"category"`
	TargetID      string            `json:"target_id"`
	Fields        map[string]string `json:"fields"`
	Justification string            `json:"justification"`
	Reasoning     string            `json:"reasoning,omitempty"`
}

// ModificationResponse carries the validator's verdict. Changes is populated
// only when the verdict admits the modification.
type ModificationResponse struct {
	Verdict *balance.Verdict   `json:"verdict"`
	Changes []state.DataChange `json:"changes,omitempty"`
}

type ModificationHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewModificationHandler(eng *engine.Engine, logger *slog.Logger) *ModificationHandler {
	return &ModificationHandler{
		engine: eng,
		logger: logger,
	}
}

// ServeHTTP handles HTTP requests for validated modifications
func (h *ModificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Only allow POST method
	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for modifications endpoint", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		response := ErrorResponse{
			Error: "Method not allowed. Only POST is supported.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	var req ModificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Invalid request body. Expected JSON with 'world_id', 'category', 'target_id' and 'fields'.",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if req.WorldID == uuid.Nil || req.Category == "" || req.TargetID == "" {
		h.logger.Warn("Missing required fields in modification request")
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "world_id, category and target_id are required",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	if len(req.Fields) == 0 {
		h.logger.Warn("No fields in modification request", "target_id", req.TargetID)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "fields must name at least one modification",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	verdict, changes, err := h.engine.ValidateModification(r.Context(), req.WorldID,
		req.Category, req.TargetID, req.Fields, req.Justification, req.Reasoning)
	if err != nil {
		// A denial is a domain outcome, not a transport failure. The
		// verdict goes back with 200 and the reason inside.
		if errors.Is(err, balance.ErrDenied) {
			h.logger.Info("Modification denied",
				"world_id", req.WorldID,
				"category", req.Category,
				"target_id", req.TargetID,
				"reason", verdict.Reason)
			w.WriteHeader(http.StatusOK)
			if err := json.NewEncoder(w).Encode(ModificationResponse{Verdict: verdict}); err != nil {
				h.logger.Error("Failed to encode modification response", "error", err)
			}
			return
		}

		if errors.Is(err, state.ErrTargetNotFound) {
			h.logger.Warn("Modification target not found", "error", err, "target_id", req.TargetID)
			w.WriteHeader(http.StatusNotFound)
			response := ErrorResponse{
				Error: err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		h.logger.Error("Failed to validate modification", "error", err, "target_id", req.TargetID)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to apply modification",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	h.logger.Info("Modification admitted",
		"world_id", req.WorldID,
		"category", req.Category,
		"target_id", req.TargetID,
		"fields", len(changes))
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ModificationResponse{Verdict: verdict, Changes: changes}); err != nil {
		h.logger.Error("Failed to encode modification response", "error", err)
	}
}
