package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

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

func setupServer(t *testing.T, reply string) (*httptest.Server, *db.Database) {
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

	srv := httptest.NewServer(NewHandler(database, r, nil).Routes())
	t.Cleanup(srv.Close)
	return srv, database
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func createProject(t *testing.T, srv *httptest.Server, name string) models.Project {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/api/projects", `{"name":"`+name+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	return decode[models.Project](t, resp)
}

func TestProjectLifecycle(t *testing.T) {
	srv, _ := setupServer(t, "")

	p := createProject(t, srv, "Shop")
	if p.ID == "" || p.Name != "Shop" {
		t.Fatalf("Unexpected project %+v", p)
	}

	resp := do(t, http.MethodGet, srv.URL+"/api/projects", "")
	list := decode[[]models.Project](t, resp)
	if len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("Unexpected list %+v", list)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/projects/"+p.ID, `{"name":"Store"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename status = %d", resp.StatusCode)
	}
	if got := decode[models.Project](t, resp); got.Name != "Store" {
		t.Errorf("Name = %q, want Store", got.Name)
	}

	resp = do(t, http.MethodDelete, srv.URL+"/api/projects/"+p.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/projects/"+p.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	srv, _ := setupServer(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"name":`},
		{"missing name", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/api/projects", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := setupServer(t, "")

	resp := do(t, http.MethodGet, srv.URL+"/api/chat", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestChatStoresSchema(t *testing.T) {
	srv, database := setupServer(t, `{"Authors": {"columns": {"id": {"type": "Integer", "primaryKey": true}}}, "Posts": {"columns": {"id": {"type": "Integer", "primaryKey": true}, "author_id": {"type": "Integer"}}}}`)
	p := createProject(t, srv, "Blog")

	resp := do(t, http.MethodPost, srv.URL+"/api/chat", `{"project_id":"`+p.ID+`","content":"A blog with authors and posts"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	reply := decode[router.Reply](t, resp)
	if reply.Message != router.SchemaReply {
		t.Errorf("Message = %q, want %q", reply.Message, router.SchemaReply)
	}
	if got := reply.Schema.TableNames(); len(got) != 2 || got[0] != "Authors" || got[1] != "Posts" {
		t.Errorf("TableNames = %v", got)
	}

	stored, err := database.GetProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if stored.Schema.Len() != 2 {
		t.Errorf("Stored schema has %d tables, want 2", stored.Schema.Len())
	}
	if len(stored.Messages) != 2 {
		t.Errorf("Stored %d messages, want 2", len(stored.Messages))
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/projects/"+p.ID+"/relationships", "")
	rels := decode[[]relation.Relationship](t, resp)
	if len(rels) != 1 || rels[0].From != "Posts" || rels[0].To != "Authors" {
		t.Errorf("Unexpected relationships %+v", rels)
	}
}

func TestChatUnknownProject(t *testing.T) {
	srv, _ := setupServer(t, "")

	resp := do(t, http.MethodPost, srv.URL+"/api/chat", `{"project_id":"missing","content":"hi"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestChatRequiresProjectID(t *testing.T) {
	srv, _ := setupServer(t, "")

	resp := do(t, http.MethodPost, srv.URL+"/api/chat", `{"content":"hi"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateSchemaAndExport(t *testing.T) {
	srv, _ := setupServer(t, "")
	p := createProject(t, srv, "My Shop")

	body := `{"schema": {"Customers": {"columns": {"id": {"type": "int", "primaryKey": true}, "email": {"type": "varchar", "nullable": false, "unique": true}}}}}`
	resp := do(t, http.MethodPut, srv.URL+"/api/projects/"+p.ID+"/schema", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("schema status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/projects/"+p.ID+"/sql", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sql status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="my_shop.sql"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	want := "-- My Shop SQL Schema\n\n" +
		"CREATE TABLE Customers (\n" +
		"  id INTEGER PRIMARY KEY,\n" +
		"  email VARCHAR(255) NOT NULL UNIQUE\n" +
		");\n\n"
	if buf.String() != want {
		t.Errorf("SQL =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestUpdateSchemaRejectsInvalid(t *testing.T) {
	srv, _ := setupServer(t, "")
	p := createProject(t, srv, "Shop")

	tests := []struct {
		name string
		body string
	}{
		{"not an object", `{"schema": []}`},
		{"missing type", `{"schema": {"T": {"columns": {"id": {}}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPut, srv.URL+"/api/projects/"+p.ID+"/schema", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestUpdateMessages(t *testing.T) {
	srv, _ := setupServer(t, "")
	p := createProject(t, srv, "Shop")

	resp := do(t, http.MethodPut, srv.URL+"/api/projects/"+p.ID+"/messages", `{"messages":[{"role":"user","content":"hi"}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := decode[models.Project](t, resp); len(got.Messages) != 1 {
		t.Errorf("Messages = %+v", got.Messages)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/projects/"+p.ID+"/messages", `{"messages":[{"role":"system","content":"x"}]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad role status = %d, want 400", resp.StatusCode)
	}
}

func TestExportDBML(t *testing.T) {
	srv, _ := setupServer(t, "")
	p := createProject(t, srv, "Blog")

	body := `{"schema": {"Authors": {"columns": {"id": {"type": "int"}}}, "Posts": {"columns": {"id": {"type": "int"}, "author_id": {"type": "int"}}}}}`
	do(t, http.MethodPut, srv.URL+"/api/projects/"+p.ID+"/schema", body)

	resp := do(t, http.MethodGet, srv.URL+"/api/projects/"+p.ID+"/dbml", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dbml status = %d", resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), "Ref: Posts.author_id > Authors.id") {
		t.Errorf("Unexpected DBML:\n%s", buf.String())
	}
}
