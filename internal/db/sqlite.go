package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RichardoC/keymap/internal/models"
	"github.com/RichardoC/keymap/internal/schema"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const ddl = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    schema TEXT,
    messages TEXT NOT NULL DEFAULT '[]',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS projects_created_at ON projects (created_at);`

// ErrNotFound is returned when no project has the requested id.
var ErrNotFound = errors.New("project not found")

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

// CreateProject stores a new project with an empty schema and message log.
func (db *Database) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	now := time.Now().UTC()
	p := &models.Project{
		ID:        uuid.New().String(),
		Name:      name,
		Schema:    schema.New(name),
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
        INSERT INTO projects (id, name, schema, messages, created_at, updated_at)
        VALUES (?, ?, NULL, '[]', ?, ?)`

	if _, err := db.db.ExecContext(ctx, query, p.ID, p.Name, now, now); err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (db *Database) GetProject(ctx context.Context, id string) (*models.Project, error) {
	query := `
        SELECT id, name, schema, messages, created_at, updated_at
        FROM projects
        WHERE id = ?`

	p, err := scanProject(db.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// ListProjects returns every project, newest first.
func (db *Database) ListProjects(ctx context.Context) ([]models.Project, error) {
	query := `
        SELECT id, name, schema, messages, created_at, updated_at
        FROM projects
        ORDER BY created_at DESC, rowid DESC`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return []models.Project{}, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return []models.Project{}, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateSchema overwrites the stored schema.
func (db *Database) UpdateSchema(ctx context.Context, id string, s *schema.Schema) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return db.update(ctx, id, "UPDATE projects SET schema = ?, updated_at = ? WHERE id = ?", string(data))
}

// UpdateMessages overwrites the stored message log.
func (db *Database) UpdateMessages(ctx context.Context, id string, messages []models.Message) error {
	if messages == nil {
		messages = []models.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	return db.update(ctx, id, "UPDATE projects SET messages = ?, updated_at = ? WHERE id = ?", string(data))
}

func (db *Database) RenameProject(ctx context.Context, id, name string) error {
	return db.update(ctx, id, "UPDATE projects SET name = ?, updated_at = ? WHERE id = ?", name)
}

func (db *Database) DeleteProject(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return checkAffected(res, id)
}

func (db *Database) update(ctx context.Context, id, query string, value any) error {
	res, err := db.db.ExecContext(ctx, query, value, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update project %s: %w", id, err)
	}
	return checkAffected(res, id)
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*models.Project, error) {
	var (
		p         models.Project
		rawSchema sql.NullString
		rawMsgs   string
	)
	if err := row.Scan(&p.ID, &p.Name, &rawSchema, &rawMsgs, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	p.Schema = schema.New(p.Name)
	if rawSchema.Valid && rawSchema.String != "" {
		if err := json.Unmarshal([]byte(rawSchema.String), p.Schema); err != nil {
			return nil, fmt.Errorf("decode schema of %s: %w", p.ID, err)
		}
	}

	p.Messages = []models.Message{}
	if rawMsgs != "" {
		if err := json.Unmarshal([]byte(rawMsgs), &p.Messages); err != nil {
			return nil, fmt.Errorf("decode messages of %s: %w", p.ID, err)
		}
	}
	return &p, nil
}
