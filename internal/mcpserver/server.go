// Package mcpserver exposes KeyMap projects as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/RichardoC/keymap/internal/models"
	"github.com/RichardoC/keymap/internal/router"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// Store is the project store the tools read and write.
type Store interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	CreateProject(ctx context.Context, name string) (*models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
}

// New creates an MCP server with every tool registered.
func New(store Store, r *router.Router, logger *zap.Logger) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tools{Store: store, Router: r, Logger: logger}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "keymap",
		Version: Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_projects",
		Description: "List all schema design projects, newest first",
	}, t.ListProjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_project",
		Description: "Create a new project with an empty schema and conversation",
	}, t.CreateProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_project",
		Description: "Get a project with its current schema and conversation",
	}, t.GetProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "chat",
		Description: "Send a message to the schema designer for a project; returns the reply and any new schema",
	}, t.Chat)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "export_sql",
		Description: "Compile a project's schema into SQL CREATE TABLE statements",
	}, t.ExportSQL)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_relationships",
		Description: "List foreign key relationships in a project's schema, declared or inferred from _id columns",
	}, t.ListRelationships)

	return srv
}

// RunStdio serves srv over stdin and stdout until ctx is done.
func RunStdio(ctx context.Context, srv *mcp.Server) error {
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves srv over streamable HTTP on addr until ctx is done.
func RunHTTP(ctx context.Context, srv *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
	s := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()

	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
