// Package relation finds foreign key relationships between the tables of a
// schema, either declared on a column or guessed from its name.
package relation

import (
	"strings"

	"github.com/RichardoC/keymap/internal/schema"
)

// Suffix marks a column as a reference by naming convention.
const Suffix = "_id"

// Source tells where a relationship came from.
type Source string

const (
	Declared Source = "declared"
	Inferred Source = "inferred"
)

// Relationship is a directed edge from a referencing column to the column it
// points at.
type Relationship struct {
	From       string `json:"from"`
	To         string `json:"to"`
	FromColumn string `json:"from_column"`
	ToColumn   string `json:"to_column"`
	Source     Source `json:"source"`
}

// Root strips the reference suffix from a column name. It reports false for
// columns without the suffix and for the column named exactly "id".
func Root(column string) (string, bool) {
	if column == "id" || !strings.HasSuffix(column, Suffix) {
		return "", false
	}
	return strings.TrimSuffix(column, Suffix), true
}

// Infer guesses the table a column refers to from its name alone. Candidates
// are tried in order: the root, the root plus "s", and the root with its first
// underscore replaced by a space. Each is compared case-insensitively against
// tables in the given order and the first hit wins.
func Infer(column string, tables []string) (string, bool) {
	root, ok := Root(column)
	if !ok {
		return "", false
	}
	candidates := []string{
		root,
		root + "s",
		strings.Replace(root, "_", " ", 1),
	}
	for _, candidate := range candidates {
		for _, table := range tables {
			if strings.EqualFold(table, candidate) {
				return table, true
			}
		}
	}
	return "", false
}

// InferTable returns the naming-convention relationships of one table. Declared
// foreign keys are not consulted.
func InferTable(t schema.Table, tables []string) []Relationship {
	var rels []Relationship
	for _, c := range t.Columns {
		target, ok := Infer(c.Name, tables)
		if !ok {
			continue
		}
		rels = append(rels, Relationship{
			From:       t.Name,
			To:         target,
			FromColumn: c.Name,
			ToColumn:   "id",
			Source:     Inferred,
		})
	}
	return rels
}

// Relationships lists every relationship in the schema, in table then column
// order. A declared foreign key is taken verbatim and wins over the naming
// guess for the same column.
func Relationships(s *schema.Schema) []Relationship {
	if s == nil {
		return nil
	}
	tables := s.TableNames()
	var rels []Relationship
	for _, t := range s.Tables {
		for _, c := range t.Columns {
			if c.ForeignKey != nil && c.ForeignKey.Table != "" {
				rels = append(rels, Relationship{
					From:       t.Name,
					To:         c.ForeignKey.Table,
					FromColumn: c.Name,
					ToColumn:   TargetColumn(c.ForeignKey),
					Source:     Declared,
				})
				continue
			}
			if target, ok := Infer(c.Name, tables); ok {
				rels = append(rels, Relationship{
					From:       t.Name,
					To:         target,
					FromColumn: c.Name,
					ToColumn:   "id",
					Source:     Inferred,
				})
			}
		}
	}
	return rels
}

// TargetColumn returns the referenced column, "id" when none is declared.
func TargetColumn(fk *schema.ForeignKey) string {
	if fk == nil || fk.Column == "" {
		return "id"
	}
	return fk.Column
}
