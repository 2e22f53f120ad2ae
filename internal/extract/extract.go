// Package extract pulls a schema out of a model's free-text reply.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RichardoC/keymap/internal/schema"
)

// RephraseMessage is returned when the reply held a JSON-looking block that
// was not a usable schema.
const RephraseMessage = "I couldn't extract a valid schema. Can you rephrase?"

// Result is either a schema or a message to show instead.
type Result struct {
	Schema  *schema.Schema
	Message string
	// Err is the parse failure, when there was one.
	Err error
}

// Found reports whether a schema was extracted.
func (r Result) Found() bool {
	return r.Schema != nil
}

// Extract treats the text between the first "{" and the last "}" as a JSON
// schema document. Surrounding prose is discarded. Without a brace pair the
// trimmed text is returned as a conversational message.
func Extract(text string) Result {
	block, ok := Block(text)
	if !ok {
		return Result{Message: strings.TrimSpace(text)}
	}

	s, err := Parse(block)
	if err != nil {
		return Result{Message: RephraseMessage, Err: err}
	}
	return Result{Schema: s}
}

// Block returns the substring from the first "{" to the last "}" inclusive.
func Block(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || start >= end {
		return "", false
	}
	return text[start : end+1], true
}

// Parse decodes and validates a JSON schema document.
func Parse(doc string) (*schema.Schema, error) {
	var s schema.Schema
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &s, nil
}
