package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/RichardoC/keymap/internal/db"
	"github.com/RichardoC/keymap/internal/dbml"
	"github.com/RichardoC/keymap/internal/models"
	"github.com/RichardoC/keymap/internal/relation"
	"github.com/RichardoC/keymap/internal/router"
	"github.com/RichardoC/keymap/internal/schema"
	"go.uber.org/zap"
)

// Store is the project store the handlers read and write.
type Store interface {
	router.Store
	CreateProject(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	RenameProject(ctx context.Context, id, name string) error
	DeleteProject(ctx context.Context, id string) error
}

type Handler struct {
	store  Store
	router *router.Router
	logger *zap.Logger
}

func NewHandler(store Store, r *router.Router, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:  store,
		router: r,
		logger: logger,
	}
}

type ChatRequest struct {
	ProjectID string `json:"project_id"`
	Content   string `json:"content"`
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type UpdateProjectRequest struct {
	Name string `json:"name"`
}

type UpdateSchemaRequest struct {
	Schema *schema.Schema `json:"schema"`
}

type UpdateMessagesRequest struct {
	Messages []models.Message `json:"messages"`
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", h.HandleChat)
	mux.HandleFunc("GET /api/projects", h.ListProjects)
	mux.HandleFunc("POST /api/projects", h.CreateProject)
	mux.HandleFunc("GET /api/projects/{id}", h.GetProject)
	mux.HandleFunc("PUT /api/projects/{id}", h.UpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", h.DeleteProject)
	mux.HandleFunc("PUT /api/projects/{id}/schema", h.UpdateSchema)
	mux.HandleFunc("PUT /api/projects/{id}/messages", h.UpdateMessages)
	mux.HandleFunc("GET /api/projects/{id}/sql", h.ExportSQL)
	mux.HandleFunc("GET /api/projects/{id}/dbml", h.ExportDBML)
	mux.HandleFunc("GET /api/projects/{id}/relationships", h.Relationships)
	return mux
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}

	reply, err := h.router.Turn(r.Context(), req.ProjectID, req.Content)
	if err != nil {
		h.fail(w, r, "Failed to process message", err)
		return
	}

	h.writeJSON(w, reply)
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list projects", err)
		return
	}

	h.logger.Debug("Retrieved projects",
		zap.Int("count", len(projects)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))

	h.writeJSON(w, projects)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	project, err := h.store.CreateProject(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, "Failed to create project", err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, project)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}
	h.writeJSON(w, project)
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	if err := h.store.RenameProject(r.Context(), id, req.Name); err != nil {
		h.fail(w, r, "Failed to update project", err)
		return
	}
	h.respondProject(w, r, id)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, "Failed to delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateSchema(w http.ResponseWriter, r *http.Request) {
	var req UpdateSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Schema == nil {
		req.Schema = &schema.Schema{}
	}
	if err := req.Schema.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid schema: %v", err), http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	if err := h.store.UpdateSchema(r.Context(), id, req.Schema); err != nil {
		h.fail(w, r, "Failed to update schema", err)
		return
	}
	h.respondProject(w, r, id)
}

func (h *Handler) UpdateMessages(w http.ResponseWriter, r *http.Request) {
	var req UpdateMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for _, m := range req.Messages {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			http.Error(w, fmt.Sprintf("Invalid message role %q", m.Role), http.StatusBadRequest)
			return
		}
	}

	id := r.PathValue("id")
	if err := h.store.UpdateMessages(r.Context(), id, req.Messages); err != nil {
		h.fail(w, r, "Failed to update messages", err)
		return
	}
	h.respondProject(w, r, id)
}

// ExportSQL serves the compiled DDL as a download.
func (h *Handler) ExportSQL(w http.ResponseWriter, r *http.Request) {
	filename, script, err := h.router.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Failed to export schema", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write([]byte(script)); err != nil {
		h.logger.Error("Failed to write SQL", zap.Error(err))
	}
}

func (h *Handler) ExportDBML(w http.ResponseWriter, r *http.Request) {
	project, err := h.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(dbml.Generate(project.CurrentSchema()))); err != nil {
		h.logger.Error("Failed to write DBML", zap.Error(err))
	}
}

func (h *Handler) Relationships(w http.ResponseWriter, r *http.Request) {
	project, err := h.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}

	rels := relation.Relationships(project.Schema)
	if rels == nil {
		rels = []relation.Relationship{}
	}
	h.writeJSON(w, rels)
}

func (h *Handler) respondProject(w http.ResponseWriter, r *http.Request, id string) {
	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}
	h.writeJSON(w, project)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}
	h.logger.Error(msg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
