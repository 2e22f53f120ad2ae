// Package dbml renders a schema in DBML, the notation read by dbdiagram.io.
//
// Tables and columns keep their stored order. References cover both declared
// foreign keys and ones inferred from "_id" column names.
package dbml

import (
	"fmt"
	"strings"

	"github.com/RichardoC/keymap/internal/relation"
	"github.com/RichardoC/keymap/internal/schema"
)

// Generate converts s into DBML text.
func Generate(s *schema.Schema) string {
	if s == nil {
		return ""
	}
	var builder strings.Builder

	for _, table := range s.Tables {
		generateTable(&builder, table)
		builder.WriteString("\n")
	}

	for _, ref := range relation.Relationships(s) {
		builder.WriteString(fmt.Sprintf("Ref: %s.%s > %s.%s\n", quote(ref.From), quote(ref.FromColumn), quote(ref.To), quote(ref.ToColumn)))
	}

	return builder.String()
}

func generateTable(builder *strings.Builder, table schema.Table) {
	builder.WriteString(fmt.Sprintf("Table %s {\n", quote(table.Name)))
	for _, column := range table.Columns {
		generateColumn(builder, column)
	}
	builder.WriteString("}\n")
}

func generateColumn(builder *strings.Builder, column schema.Column) {
	builder.WriteString(fmt.Sprintf("  %s %s", quote(column.Name), quote(column.Type)))

	var attributes []string

	primary := column.PrimaryKey || column.Name == "id"
	if primary {
		attributes = append(attributes, "pk")
	}
	if !primary && column.Nullable != nil && !*column.Nullable {
		attributes = append(attributes, "not null")
	}
	if column.Unique != nil && *column.Unique {
		attributes = append(attributes, "unique")
	}
	if column.Default != nil {
		attributes = append(attributes, fmt.Sprintf("default: `%s`", *column.Default))
	}

	if len(attributes) > 0 {
		builder.WriteString(fmt.Sprintf(" [%s]", strings.Join(attributes, ", ")))
	}
	builder.WriteString("\n")
}

// quote wraps names DBML cannot read bare.
func quote(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return `"` + strings.ReplaceAll(name, `"`, `\"`) + `"`
		}
	}
	if name == "" {
		return `""`
	}
	return name
}
