package router

import (
	"fmt"
	"strings"
)

// Style selects the system prompt and which shortcuts a router applies.
type Style string

const (
	// StyleGuided asks clarifying questions, answers small talk without the
	// model and offers the employee starter schema.
	StyleGuided Style = "guided"
	// StyleStrict asks the model for JSON only and always calls it.
	StyleStrict Style = "strict"
)

// ParseStyle accepts "guided" or "strict"; blank means guided.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleGuided:
		return StyleGuided, nil
	case StyleStrict:
		return StyleStrict, nil
	default:
		return "", fmt.Errorf("unknown conversation style %q", s)
	}
}

func (s Style) systemPrompt() string {
	if s == StyleStrict {
		return strictPrompt
	}
	return guidedPrompt
}

func (s Style) shortcuts() bool {
	return s != StyleStrict
}

const schemaFormat = `{
  "TableName": {
    "columns": {
      "columnName": {
        "type": "dataType",
        "primaryKey": boolean,
        "foreignKey": { "table": "ReferencedTable", "column": "ReferencedColumn" },
        "nullable": boolean,
        "unique": boolean
      }
    }
  }
}`

const guidedPrompt = `You are an expert database designer.

**Rules for Responses:**
- If the user provides **clear** requirements, generate a **JSON schema only** (no extra text).
- If the request is **unclear**, ask **one or two** short follow-up questions to gather more details.
- If they say "thank you" or a similar phrase, simply respond politely and do nothing else.
- If asked a **general question**, reply in **1-2 sentences** with a clear answer.
- Keep responses concise and relevant.
- NEVER assume details; always confirm when necessary.

**Example Questions to Ask Before Generating a Schema:**
- What type of project is this for? (e.g., E-commerce, School Management, Social Media)
- What entities (tables) should be included?
- What key relationships should exist between the tables?
- Do you need authentication or user roles?

**Schema Format (Only return this if the requirements are clear):**
` + schemaFormat

const strictPrompt = `You are a database schema generator.
Respond ONLY with a JSON object describing the complete schema in the format below.
Include every table discussed so far, not just the changes. Do not add any prose.

` + schemaFormat

// casualMessages never reach the model in the guided style.
var casualMessages = map[string]struct{}{
	"thank you":      {},
	"thanks":         {},
	"great job":      {},
	"well done":      {},
	"awesome":        {},
	"good work":      {},
	"tell me a joke": {},
	"hi":             {},
	"hello":          {},
	"hey":            {},
}

// IsCasual reports whether a message is small talk. Matching is exact after
// trimming and lower-casing.
func IsCasual(content string) bool {
	_, ok := casualMessages[strings.ToLower(strings.TrimSpace(content))]
	return ok
}

const (
	CasualReply      = "You're welcome! Let me know if you need help with database design."
	TemplateReply    = "Here is a starter schema for employee management."
	SchemaReply      = "Schema generated successfully."
	GenerationFailed = "I couldn't generate a response. Please try again."
)

const templateKeyword = "employee"
