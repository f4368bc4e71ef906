package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/engine"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type WorldHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewWorldHandler(eng *engine.Engine, logger *slog.Logger) *WorldHandler {
	return &WorldHandler{
		engine: eng,
		logger: logger,
	}
}

// CreateWorldRequest defines the request body for starting a new session
type CreateWorldRequest struct {
	Template string `json:"template,omitempty"` // Optional: template filename, blank for the default world
}

// normalizeID converts a string to lowercase snake_case for consistent IDs.
// It handles spaces, hyphens, dots, and camelCase/PascalCase.
func normalizeID(s string) string {
	if s == "" {
		return ""
	}

	var out strings.Builder
	prevUnderscore := false
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r + ('a' - 'A')
		}
		switch {
		case r == '.':
			out.WriteRune('.')
			prevUnderscore = false

		case r == ' ' || r == '-' || r == '_':
			if !prevUnderscore && i > 0 {
				out.WriteRune('_')
				prevUnderscore = true
			}

		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			out.WriteRune(r)
			prevUnderscore = false

		default:
			// Ignore other characters
		}
	}
	return out.String()
}

// ensureJSONExtension adds .json extension if not present
func ensureJSONExtension(s string) string {
	if s == "" {
		return ""
	}
	if !strings.HasSuffix(s, ".json") {
		return s + ".json"
	}
	return s
}

// stripJSONExtension removes .json extension if present
func stripJSONExtension(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSuffix(s, ".json")
}

// Normalize normalizes the template name to lowercase snake_case and
// ensures the .json extension. A blank template stays blank.
func (req *CreateWorldRequest) Normalize() {
	req.Template = normalizeID(req.Template)
	req.Template = ensureJSONExtension(req.Template)
}

// ListWorldsResponse lists the session ids present in storage.
type ListWorldsResponse struct {
	Worlds []uuid.UUID `json:"worlds"`
}

// ServeHTTP handles HTTP requests for session operations
// Routes:
// POST /v1/worlds         - Create new session
// GET /v1/worlds          - List session IDs
// GET /v1/worlds/{id}     - Read world state by session ID
// DELETE /v1/worlds/{id}  - End session and delete its world
func (h *WorldHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Parse the path to extract ID for GET/DELETE operations
	path := strings.TrimPrefix(r.URL.Path, "/v1/worlds")
	var sessionID uuid.UUID
	var err error

	if path != "" && path != "/" {
		idStr := strings.Trim(path, "/")
		sessionID, err = uuid.Parse(idStr)
		if err != nil {
			h.logger.Warn("Invalid session ID", "id", idStr, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			response := ErrorResponse{
				Error: "Invalid session ID format",
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
	}

	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)

	case http.MethodGet:
		if sessionID == uuid.Nil {
			h.handleList(w, r)
			return
		}
		h.handleRead(w, r, sessionID)

	case http.MethodDelete:
		if sessionID == uuid.Nil {
			h.logger.Warn("DELETE request without session ID")
			w.WriteHeader(http.StatusBadRequest)
			response := ErrorResponse{
				Error: "Session ID is required for DELETE requests",
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
		h.handleDelete(w, r, sessionID)

	default:
		h.logger.Warn("Method not allowed for worlds endpoint", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		response := ErrorResponse{
			Error: "Method not allowed. Supported methods: POST, GET, DELETE",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
	}
}

func (h *WorldHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Creating new session")

	// An empty body starts a session on the default world.
	var req CreateWorldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Invalid JSON in request body",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	// Normalize the template name to snake_case
	req.Normalize()

	world, err := h.engine.NewSession(r.Context(), req.Template)
	if err != nil {
		if strings.Contains(err.Error(), "template") {
			h.logger.Warn("Failed to load template", "template", req.Template, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			response := ErrorResponse{
				Error: "Failed to load template: " + err.Error(),
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}

		h.logger.Error("Failed to create session", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to create session",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	h.logger.Debug("Session created successfully", "id", world.ID.String())
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(world); err != nil {
		h.logger.Error("Failed to encode world response", "error", err)
	}
}

func (h *WorldHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.Sessions(r.Context())
	if err != nil {
		h.logger.Error("Failed to list sessions", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to list sessions",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ListWorldsResponse{Worlds: ids}); err != nil {
		h.logger.Error("Failed to encode world list response", "error", err)
	}
}

func (h *WorldHandler) handleRead(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	world, err := h.engine.Session(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to load world", "error", err, "id", sessionID.String())
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to load world",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(world); err != nil {
		h.logger.Error("Failed to encode world response", "error", err)
	}
}

func (h *WorldHandler) handleDelete(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	if err := h.engine.EndSession(r.Context(), sessionID); err != nil {
		h.logger.Error("Failed to end session", "error", err, "id", sessionID.String())
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to end session",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	h.logger.Debug("Session ended successfully", "id", sessionID.String())
	w.WriteHeader(http.StatusNoContent)
}
