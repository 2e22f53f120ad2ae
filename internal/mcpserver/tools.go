package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/RichardoC/keymap/internal/db"
	"github.com/RichardoC/keymap/internal/models"
	"github.com/RichardoC/keymap/internal/relation"
	"github.com/RichardoC/keymap/internal/router"
)

// Tools holds what the tool handlers need.
type Tools struct {
	Store  Store
	Router *router.Router
	Logger *zap.Logger
}

// --- Input types ---

type CreateProjectInput struct {
	Name string `json:"name" jsonschema:"Project name, also used to name the exported SQL file"`
}

type ProjectInput struct {
	ProjectID string `json:"project_id" jsonschema:"ID of the project"`
}

type ChatInput struct {
	ProjectID string `json:"project_id" jsonschema:"ID of the project to talk about"`
	Content   string `json:"content" jsonschema:"The user's message, e.g. a description of the tables needed"`
}

type ExportOutput struct {
	Filename string `json:"filename"`
	SQL      string `json:"sql"`
}

// --- Handlers ---

func (t *Tools) ListProjects(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	projects, err := t.Store.ListProjects(ctx)
	if err != nil {
		return toolError("Failed to list projects: %v", err), nil, nil
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return toolJSON(projects)
}

func (t *Tools) CreateProject(ctx context.Context, _ *mcp.CallToolRequest, input CreateProjectInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Project name is required"), nil, nil
	}

	project, err := t.Store.CreateProject(ctx, input.Name)
	if err != nil {
		return toolError("Failed to create project: %v", err), nil, nil
	}
	return toolJSON(project)
}

func (t *Tools) GetProject(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, any, error) {
	project, err := t.Store.GetProject(ctx, input.ProjectID)
	if err != nil {
		return projectError(input.ProjectID, err), nil, nil
	}
	return toolJSON(project)
}

func (t *Tools) Chat(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, any, error) {
	if input.ProjectID == "" {
		return toolError("project_id is required"), nil, nil
	}

	reply, err := t.Router.Turn(ctx, input.ProjectID, input.Content)
	if err != nil {
		t.Logger.Error("chat tool failed", zap.String("projectID", input.ProjectID), zap.Error(err))
		return projectError(input.ProjectID, err), nil, nil
	}
	return toolJSON(reply)
}

func (t *Tools) ExportSQL(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, any, error) {
	filename, script, err := t.Router.Export(ctx, input.ProjectID)
	if err != nil {
		return projectError(input.ProjectID, err), nil, nil
	}
	return toolJSON(ExportOutput{Filename: filename, SQL: script})
}

func (t *Tools) ListRelationships(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, any, error) {
	project, err := t.Store.GetProject(ctx, input.ProjectID)
	if err != nil {
		return projectError(input.ProjectID, err), nil, nil
	}

	rels := relation.Relationships(project.Schema)
	if rels == nil {
		rels = []relation.Relationship{}
	}
	return toolJSON(rels)
}

// --- Helpers ---

func projectError(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, db.ErrNotFound) {
		return toolError("Project %q not found", id)
	}
	return toolError("Failed: %v", err)
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
