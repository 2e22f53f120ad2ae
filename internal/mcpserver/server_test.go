package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/RichardoC/keymap/internal/db"
	"github.com/RichardoC/keymap/internal/models"
	"github.com/RichardoC/keymap/internal/relation"
	"github.com/RichardoC/keymap/internal/router"
)

type stubGenerator struct {
	reply string
}

func (s *stubGenerator) Generate(context.Context, string, []models.Message) (string, error) {
	return s.reply, nil
}

// setupSession connects a client to a server over in-memory transports.
func setupSession(t *testing.T, reply string) *mcp.ClientSession {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "keymap.db"))
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	r, err := router.New(router.Config{
		TextGenAPIKey: "test-key",
		Store:         database,
		Generator:     &stubGenerator{reply: reply},
	})
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := New(database, r, nil).Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// callTool returns the text content of a tool result and whether it is an error.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text, result.IsError
}

func TestListTools(t *testing.T) {
	session := setupSession(t, "")

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"list_projects", "create_project", "get_project", "chat", "export_sql", "list_relationships"} {
		if !names[want] {
			t.Errorf("Missing tool %s", want)
		}
	}
}

func TestDesignFlow(t *testing.T) {
	session := setupSession(t, `{"Authors": {"columns": {"id": {"type": "int"}}}, "Books": {"columns": {"id": {"type": "int"}, "author_id": {"type": "int"}}}}`)

	text, isErr := callTool(t, session, "create_project", map[string]any{"name": "Library"})
	if isErr {
		t.Fatalf("create_project: %s", text)
	}
	var project models.Project
	if err := json.Unmarshal([]byte(text), &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}

	text, isErr = callTool(t, session, "chat", map[string]any{"project_id": project.ID, "content": "authors and books"})
	if isErr {
		t.Fatalf("chat: %s", text)
	}
	var reply router.Reply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Schema.Len() != 2 {
		t.Errorf("Reply schema has %d tables, want 2", reply.Schema.Len())
	}

	text, isErr = callTool(t, session, "export_sql", map[string]any{"project_id": project.ID})
	if isErr {
		t.Fatalf("export_sql: %s", text)
	}
	var export ExportOutput
	if err := json.Unmarshal([]byte(text), &export); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if export.Filename != "library.sql" {
		t.Errorf("Filename = %q", export.Filename)
	}
	if !strings.Contains(export.SQL, "FOREIGN KEY (author_id) REFERENCES authors(id)") {
		t.Errorf("SQL missing foreign key:\n%s", export.SQL)
	}

	text, isErr = callTool(t, session, "list_relationships", map[string]any{"project_id": project.ID})
	if isErr {
		t.Fatalf("list_relationships: %s", text)
	}
	var rels []relation.Relationship
	if err := json.Unmarshal([]byte(text), &rels); err != nil {
		t.Fatalf("decode relationships: %v", err)
	}
	if len(rels) != 1 || rels[0].To != "Authors" || rels[0].Source != relation.Inferred {
		t.Errorf("Unexpected relationships %+v", rels)
	}

	text, _ = callTool(t, session, "list_projects", map[string]any{})
	if !strings.Contains(text, project.ID) {
		t.Errorf("list_projects missing %s:\n%s", project.ID, text)
	}
}

func TestUnknownProject(t *testing.T) {
	session := setupSession(t, "")

	tests := []struct {
		tool string
		args map[string]any
	}{
		{"get_project", map[string]any{"project_id": "missing"}},
		{"chat", map[string]any{"project_id": "missing", "content": "hi"}},
		{"export_sql", map[string]any{"project_id": "missing"}},
		{"list_relationships", map[string]any{"project_id": "missing"}},
	}
	for _, tt := range tests {
		text, isErr := callTool(t, session, tt.tool, tt.args)
		if !isErr || !strings.Contains(text, "not found") {
			t.Errorf("%s: got %q (isError=%v), want not found error", tt.tool, text, isErr)
		}
	}
}

func TestCreateProjectRequiresName(t *testing.T) {
	session := setupSession(t, "")

	if _, isErr := callTool(t, session, "create_project", map[string]any{"name": ""}); !isErr {
		t.Error("Expected an error for an empty name")
	}
}
