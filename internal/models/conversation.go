package models

import (
	"time"

	"github.com/RichardoC/keymap/internal/schema"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// Project owns a schema under design and the conversation that shaped it.
type Project struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Schema    *schema.Schema `json:"schema"`
	Messages  []Message      `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CurrentSchema returns the project's schema named after the project, never nil.
func (p *Project) CurrentSchema() *schema.Schema {
	if p.Schema == nil {
		return schema.New(p.Name)
	}
	s := p.Schema.Clone()
	s.Name = p.Name
	return s
}

// AppendMessage returns a new log with msg added, leaving the project's log untouched.
func (p *Project) AppendMessage(msg Message) []Message {
	out := make([]Message, 0, len(p.Messages)+1)
	out = append(out, p.Messages...)
	return append(out, msg)
}
