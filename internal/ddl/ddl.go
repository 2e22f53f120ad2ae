// Package ddl compiles a schema into SQL CREATE TABLE statements.
//
// Output is deterministic: tables and columns are written in stored order and
// identical input always yields byte-identical text. Identifiers are emitted
// as-is, without quoting.
package ddl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RichardoC/keymap/internal/relation"
	"github.com/RichardoC/keymap/internal/schema"
)

var typeMap = map[string]string{
	"int":       "INTEGER",
	"varchar":   "VARCHAR(255)",
	"text":      "TEXT",
	"timestamp": "TIMESTAMP",
}

// SQLType maps a logical column type to its SQL spelling. Unknown types are
// passed through upper-cased.
func SQLType(logical string) string {
	if t, ok := typeMap[strings.ToLower(logical)]; ok {
		return t
	}
	return strings.ToUpper(logical)
}

// Compile renders the whole script: a comment header naming the schema
// followed by one CREATE TABLE statement per table.
func Compile(s *schema.Schema) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("-- %s SQL Schema\n\n", s.DisplayName()))
	for _, stmt := range Statements(s) {
		builder.WriteString(stmt)
		builder.WriteString("\n\n")
	}
	return builder.String()
}

// Statements returns the CREATE TABLE statements, each ending in ";".
func Statements(s *schema.Schema) []string {
	if s == nil {
		return nil
	}
	stmts := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		stmts = append(stmts, createTable(t))
	}
	return stmts
}

func createTable(t schema.Table) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", t.Name))

	keys := primaryKeys(t)
	inline := len(keys) == 1
	lines := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		lines = append(lines, columnDefinition(c, inline))
	}
	if len(keys) > 1 {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	}
	for _, c := range t.Columns {
		if fk, ok := foreignKey(c); ok {
			lines = append(lines, fk)
		}
	}

	builder.WriteString(strings.Join(lines, ",\n"))
	builder.WriteString("\n);")
	return builder.String()
}

func isPrimary(c schema.Column) bool {
	return c.Name == "id" || c.PrimaryKey
}

// primaryKeys lists the key columns of t in column order.
func primaryKeys(t schema.Table) []string {
	var keys []string
	for _, c := range t.Columns {
		if isPrimary(c) {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// columnDefinition renders one column line. With inline unset a key column
// leaves PRIMARY KEY to the table-level constraint.
func columnDefinition(c schema.Column, inline bool) string {
	definition := fmt.Sprintf("  %s %s", c.Name, SQLType(c.Type))

	primary := isPrimary(c)
	if primary && inline {
		definition += " PRIMARY KEY"
	}
	if !primary && c.Nullable != nil && !*c.Nullable {
		definition += " NOT NULL"
	}
	if c.Unique != nil && *c.Unique {
		definition += " UNIQUE"
	}
	if c.Default != nil {
		definition += " DEFAULT " + *c.Default
	}
	return definition
}

// reference returns the table and column a column points at. A declared
// foreign key is used verbatim. Otherwise a column ending in "_id" references
// its root name plus "s".
func reference(c schema.Column) (table, column string, ok bool) {
	if c.ForeignKey != nil && c.ForeignKey.Table != "" {
		return c.ForeignKey.Table, relation.TargetColumn(c.ForeignKey), true
	}
	root, ok := relation.Root(c.Name)
	if !ok {
		return "", "", false
	}
	return root + "s", "id", true
}

func foreignKey(c schema.Column) (string, bool) {
	table, column, ok := reference(c)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("  FOREIGN KEY (%s) REFERENCES %s(%s)", c.Name, table, column), true
}

// References lists the tables named by the FOREIGN KEY lines of t, in column
// order.
func References(t schema.Table) []string {
	var tables []string
	for _, c := range t.Columns {
		if table, _, ok := reference(c); ok {
			tables = append(tables, table)
		}
	}
	return tables
}

var whitespace = regexp.MustCompile(`\s+`)

// FileName derives the download name for a schema's script.
func FileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "schema.sql"
	}
	return strings.ToLower(whitespace.ReplaceAllString(name, "_")) + ".sql"
}
