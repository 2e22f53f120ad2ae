package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/keymap/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Options are the generation parameters sent with every request.
type Options struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultOptions matches the parameters the schema designer prompt was tuned with.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		TopP:        0.8,
		TopK:        40,
		MaxTokens:   4096,
		Timeout:     30 * time.Second,
	}
}

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("model returned no completion")

type Service struct {
	llm    llms.Model
	model  string
	opts   Options
	logger *zap.Logger
}

// New connects to an OpenAI-compatible endpoint.
func New(baseURL, token, model string, opts Options, logger *zap.Logger) (*Service, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return NewWithModel(llm, model, opts, logger), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(model llms.Model, name string, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{llm: model, model: name, opts: opts, logger: logger}
}

// Generate sends the system prompt followed by the conversation and returns
// the model's reply text.
func (s *Service) Generate(ctx context.Context, system string, history []models.Message) (string, error) {
	content := Messages(system, history)

	if ce := s.logger.Check(zap.DebugLevel, "generating completion"); ce != nil {
		ce.Write(
			zap.String("model", s.model),
			zap.Int("messages", len(content)),
			zap.Int("promptTokens", s.countTokens(system, history)))
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	resp, err := s.llm.GenerateContent(ctx, content,
		llms.WithTemperature(s.opts.Temperature),
		llms.WithTopP(s.opts.TopP),
		llms.WithTopK(s.opts.TopK),
		llms.WithMaxTokens(s.opts.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}

// Messages converts a conversation into langchaingo message content, with
// the system prompt first.
func Messages(system string, history []models.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(history)+1)
	if system != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	return content
}

func (s *Service) countTokens(system string, history []models.Message) int {
	var b strings.Builder
	b.WriteString(system)
	for _, m := range history {
		b.WriteString("\n")
		b.WriteString(m.Content)
	}
	return llms.CountTokens(s.model, b.String())
}
