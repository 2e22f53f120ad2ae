// Package schema defines the in-memory representation of a database schema
// under design: ordered tables, each holding ordered columns.
//
// The JSON form is the map shape the assistant is asked to produce:
//
//	{
//	  "Users": {
//	    "columns": {
//	      "id": {"type": "int", "primaryKey": true}
//	    }
//	  }
//	}
//
// Key order in that document is preserved, so the SQL compiled from a schema
// follows the order in which the tables and columns were written.
package schema

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultName is used for the SQL header when a schema has no name.
const DefaultName = "New Schema"

// Schema is an ordered set of uniquely named tables.
type Schema struct {
	// Name labels the schema in generated output. It is not part of the
	// JSON form.
	Name string
	// Tables in stored order.
	Tables []Table
}

// Table is a named, ordered set of columns.
type Table struct {
	Name    string
	Columns []Column
}

// Column is a typed field within a table.
type Column struct {
	Name string
	// Type is a free-form logical type such as "int", "varchar" or "timestamp".
	Type       string
	PrimaryKey bool
	// ForeignKey is the declared reference, if any. The target table does not
	// have to exist in the schema.
	ForeignKey *ForeignKey
	Nullable   *bool
	Unique     *bool
	Default    *string
}

// ForeignKey points at another table's column.
type ForeignKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// New returns an empty schema with the given name.
func New(name string) *Schema {
	return &Schema{Name: name}
}

// Len returns the number of tables.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Tables)
}

// IsEmpty reports whether the schema has no tables, which means "no schema yet".
func (s *Schema) IsEmpty() bool {
	return s.Len() == 0
}

// DisplayName returns the schema name or DefaultName when it is blank.
func (s *Schema) DisplayName() string {
	if s == nil || s.Name == "" {
		return DefaultName
	}
	return s.Name
}

// TableNames returns table names in stored order.
func (s *Schema) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Table looks up a table by exact name.
func (s *Schema) Table(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// AddTable appends a table. It fails if a table with the same name exists.
func (s *Schema) AddTable(t Table) error {
	if _, ok := s.Table(t.Name); ok {
		return fmt.Errorf("table %q already exists", t.Name)
	}
	s.Tables = append(s.Tables, t)
	return nil
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

var (
	ErrEmptyTableName  = errors.New("table name is empty")
	ErrEmptyColumnName = errors.New("column name is empty")
	ErrMissingType     = errors.New("column type is empty")
	ErrDuplicateName   = errors.New("duplicate name")
)

// Validate checks the structural invariants: non-empty unique table names,
// non-empty unique column names per table and a type on every column.
// Foreign key targets are not checked.
func (s *Schema) Validate() error {
	if s == nil {
		return nil
	}
	tables := make(map[string]struct{}, len(s.Tables))
	for _, t := range s.Tables {
		if t.Name == "" {
			return ErrEmptyTableName
		}
		if _, dup := tables[t.Name]; dup {
			return fmt.Errorf("table %q: %w", t.Name, ErrDuplicateName)
		}
		tables[t.Name] = struct{}{}

		columns := make(map[string]struct{}, len(t.Columns))
		for _, c := range t.Columns {
			if c.Name == "" {
				return fmt.Errorf("table %q: %w", t.Name, ErrEmptyColumnName)
			}
			if _, dup := columns[c.Name]; dup {
				return fmt.Errorf("table %q column %q: %w", t.Name, c.Name, ErrDuplicateName)
			}
			columns[c.Name] = struct{}{}
			if c.Type == "" {
				return fmt.Errorf("table %q column %q: %w", t.Name, c.Name, ErrMissingType)
			}
		}
	}
	return nil
}

// Equal reports whether two schemas have the same tables and columns in the
// same order. Names are ignored.
func (s *Schema) Equal(other *Schema) bool {
	var a, b []Table
	if s != nil {
		a = s.Tables
	}
	if other != nil {
		b = other.Tables
	}
	return slices.EqualFunc(a, b, func(x, y Table) bool {
		return x.Name == y.Name && slices.EqualFunc(x.Columns, y.Columns, Column.Equal)
	})
}

// Equal compares every attribute of two columns.
func (c Column) Equal(o Column) bool {
	return c.Name == o.Name &&
		c.Type == o.Type &&
		c.PrimaryKey == o.PrimaryKey &&
		ptrEqual(c.ForeignKey, o.ForeignKey) &&
		ptrEqual(c.Nullable, o.Nullable) &&
		ptrEqual(c.Unique, o.Unique) &&
		ptrEqual(c.Default, o.Default)
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Clone returns a deep copy.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{Name: s.Name, Tables: make([]Table, len(s.Tables))}
	for i, t := range s.Tables {
		cols := make([]Column, len(t.Columns))
		for j, c := range t.Columns {
			cols[j] = c.clone()
		}
		out.Tables[i] = Table{Name: t.Name, Columns: cols}
	}
	return out
}

func (c Column) clone() Column {
	out := c
	if c.ForeignKey != nil {
		fk := *c.ForeignKey
		out.ForeignKey = &fk
	}
	out.Nullable = clonePtr(c.Nullable)
	out.Unique = clonePtr(c.Unique)
	out.Default = clonePtr(c.Default)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Delta summarises how a replacement schema differs from the one it replaces.
type Delta struct {
	Added   []string
	Removed []string
	Kept    []string
}

// Diff compares table names of prev and next.
func Diff(prev, next *Schema) Delta {
	var d Delta
	for _, name := range next.TableNames() {
		if _, ok := prev.Table(name); ok {
			d.Kept = append(d.Kept, name)
		} else {
			d.Added = append(d.Added, name)
		}
	}
	for _, name := range prev.TableNames() {
		if _, ok := next.Table(name); !ok {
			d.Removed = append(d.Removed, name)
		}
	}
	return d
}

// Replaced reports whether next drops every table of a non-empty prev.
func (d Delta) Replaced() bool {
	return len(d.Kept) == 0 && len(d.Removed) > 0
}
