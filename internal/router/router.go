// Package router runs a single chat turn: it decides whether a message is
// small talk, a request for the employee starter schema or something for the
// model, then persists the outcome on the project.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/RichardoC/keymap/internal/ddl"
	"github.com/RichardoC/keymap/internal/extract"
	"github.com/RichardoC/keymap/internal/llm"
	"github.com/RichardoC/keymap/internal/models"
	"github.com/RichardoC/keymap/internal/schema"
	"go.uber.org/zap"
)

var (
	ErrMissingAPIKey = errors.New("text generation API key is required")
	ErrMissingStore  = errors.New("project store is required")
)

// Store is the subset of the project store a turn needs.
type Store interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	UpdateSchema(ctx context.Context, id string, s *schema.Schema) error
	UpdateMessages(ctx context.Context, id string, messages []models.Message) error
}

// Generator produces one completion for a system prompt and a conversation.
type Generator interface {
	Generate(ctx context.Context, system string, history []models.Message) (string, error)
}

// Config carries everything a Router needs. TextGenAPIKey and Store are
// required. When Generator is nil one is built from the key, BaseURL, Model
// and Options.
type Config struct {
	TextGenAPIKey string
	Store         Store
	Style         Style

	Generator Generator
	BaseURL   string
	Model     string
	Options   llm.Options

	Logger *zap.Logger
}

type Router struct {
	store  Store
	gen    Generator
	style  Style
	logger *zap.Logger
}

// Reply is the outcome of a turn. Schema is nil when the turn did not
// produce one.
type Reply struct {
	Message  string           `json:"message"`
	Schema   *schema.Schema   `json:"schema"`
	Messages []models.Message `json:"-"`
}

func New(cfg Config) (*Router, error) {
	if cfg.TextGenAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Store == nil {
		return nil, ErrMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	style := cfg.Style
	if style == "" {
		style = StyleGuided
	}

	gen := cfg.Generator
	if gen == nil {
		svc, err := llm.New(cfg.BaseURL, cfg.TextGenAPIKey, cfg.Model, cfg.Options, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
		}
		gen = svc
	}

	return &Router{store: cfg.Store, gen: gen, style: style, logger: logger}, nil
}

// Style reports the configured conversation style.
func (r *Router) Style() Style {
	return r.style
}

// Turn handles one user message for a project. Store failures abort the
// turn. Model failures degrade to a fallback message and leave the schema
// as it was.
func (r *Router) Turn(ctx context.Context, projectID, content string) (*Reply, error) {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(zap.String("projectID", projectID), zap.String("style", string(r.style)))

	messages := project.AppendMessage(models.Message{Role: models.RoleUser, Content: content})
	if err := r.store.UpdateMessages(ctx, projectID, messages); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	reply := r.respond(ctx, logger, project, messages, content)

	if strings.TrimSpace(reply.Message) != "" {
		messages = append(messages, models.Message{Role: models.RoleAssistant, Content: reply.Message})
		if err := r.store.UpdateMessages(ctx, projectID, messages); err != nil {
			return nil, fmt.Errorf("failed to save reply: %w", err)
		}
	}
	reply.Messages = messages

	if reply.Schema != nil {
		delta := schema.Diff(project.Schema, reply.Schema)
		if delta.Replaced() {
			logger.Warn("new schema shares no tables with the previous one",
				zap.Strings("removed", delta.Removed),
				zap.Strings("added", delta.Added))
		}
		if err := r.store.UpdateSchema(ctx, projectID, reply.Schema); err != nil {
			return nil, fmt.Errorf("failed to save schema: %w", err)
		}
		logger.Info("schema updated", zap.Int("tables", reply.Schema.Len()))
	}

	return reply, nil
}

func (r *Router) respond(ctx context.Context, logger *zap.Logger, project *models.Project, messages []models.Message, content string) *Reply {
	if r.style.shortcuts() {
		if IsCasual(content) {
			logger.Debug("casual message, skipping model")
			return &Reply{Message: CasualReply}
		}
		if strings.Contains(strings.ToLower(content), templateKeyword) && project.Schema.IsEmpty() {
			logger.Debug("using employee template")
			return &Reply{Message: TemplateReply, Schema: schema.EmployeeTemplate()}
		}
	}

	text, err := r.gen.Generate(ctx, r.systemPrompt(project.Schema), messages)
	if err != nil {
		logger.Error("failed to generate completion", zap.Error(err))
		return &Reply{Message: GenerationFailed}
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn("model returned an empty completion")
		return &Reply{Message: GenerationFailed}
	}

	res := extract.Extract(text)
	if res.Err != nil {
		logger.Warn("failed to extract schema", zap.Error(res.Err), zap.String("raw", text))
	}
	if !res.Found() {
		return &Reply{Message: res.Message}
	}
	return &Reply{Message: SchemaReply, Schema: res.Schema}
}

// systemPrompt appends the current schema so the model can extend it rather
// than start over.
func (r *Router) systemPrompt(current *schema.Schema) string {
	prompt := r.style.systemPrompt()
	if current.IsEmpty() {
		return prompt
	}
	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		r.logger.Warn("failed to encode current schema", zap.Error(err))
		return prompt
	}
	return prompt + "\n\n**Current Schema:**\n" + string(data)
}

// Export compiles a project's stored schema. The project name labels the
// script and names the file.
func (r *Router) Export(ctx context.Context, projectID string) (filename, script string, err error) {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return "", "", err
	}
	return ddl.FileName(project.Name), ddl.Compile(project.CurrentSchema()), nil
}
