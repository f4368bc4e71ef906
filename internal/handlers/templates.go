package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mkarlsen/world-engine/internal/storage"
)

// ListTemplatesResponse maps template filenames to world names.
type ListTemplatesResponse struct {
	Templates map[string]string `json:"templates"`
}

type TemplateHandler struct {
	log   *slog.Logger
	store storage.Storage
}

func NewTemplateHandler(log *slog.Logger, store storage.Storage) *TemplateHandler {
	return &TemplateHandler{
		log:   log,
		store: store,
	}
}

// ServeHTTP handles HTTP requests for world templates
// Routes:
// GET /v1/templates             - List template filenames and world names
// GET /v1/templates/{filename}  - Read one template
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TemplateHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/templates")
	filename := strings.TrimSpace(strings.Trim(path, "/"))

	if filename == "" {
		h.handleList(w, r)
		return
	}

	if strings.Contains(filename, "..") || strings.Contains(filename, "/") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}
	filename = ensureJSONExtension(filename)

	ctx := r.Context()
	template, err := h.store.GetTemplate(ctx, filename)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Template not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to get template", "error", err, "filename", filename)
		http.Error(w, "Failed to retrieve template", http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(template)
	if err != nil {
		h.log.Error("Failed to marshal template", "error", err, "filename", filename)
		http.Error(w, "Failed to process template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *TemplateHandler) handleList(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListTemplates(r.Context())
	if err != nil {
		h.log.Error("Failed to list templates", "error", err)
		http.Error(w, "Failed to list templates", http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(ListTemplatesResponse{Templates: templates})
	if err != nil {
		h.log.Error("Failed to marshal template list", "error", err)
		http.Error(w, "Failed to process template list", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
