package ir

import (
	"errors"
	"fmt"
	"slices"
)

// Column describes one column of a table.
type Column struct {
	Name       string     `json:"name"`
	Kind       Kind       `json:"kind"`
	PrimaryKey bool       `json:"primary_key,omitempty"`
	Unique     bool       `json:"unique,omitempty"`
	Nullable   bool       `json:"nullable,omitempty"`
	References *Reference `json:"references,omitempty"`
}

// Reference is a foreign key to a primary-key or unique column. It is
// enforced by storage only: no action cascades, so every row change
// still comes from a mutation with its own event.
type Reference struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

func (r Reference) String() string {
	return r.Table + "." + r.Column
}

// TableSchema is a table with an ordered column list and exactly one
// primary-key column.
type TableSchema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column returns the named column.
func (t *TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the primary-key column. Only valid on a table that
// passed Validate.
func (t *TableSchema) PrimaryKey() Column {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	return Column{}
}

// ColumnNames returns all column names in declaration order.
func (t *TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks the structural rules every table must satisfy.
func (t *TableSchema) Validate() error {
	if t.Name == "" {
		return errors.New("table name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q: at least one column is required", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	pks := 0
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %q: column name is required", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %q: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
		if c.Kind == KindNull {
			return fmt.Errorf("table %q: column %q has no type", t.Name, c.Name)
		}
		if c.PrimaryKey {
			pks++
			if c.Nullable {
				return fmt.Errorf("table %q: primary key %q cannot be nullable", t.Name, c.Name)
			}
		}
	}
	switch {
	case pks == 0:
		return fmt.Errorf("table %q: no primary key column", t.Name)
	case pks > 1:
		return fmt.Errorf("table %q: composite primary keys are not supported", t.Name)
	}
	return nil
}

// Schema is the validated set of tables known to a database.
type Schema struct {
	tables map[string]*TableSchema
	order  []string
}

// NewSchema validates every table and returns the schema. Table names must
// be unique.
func NewSchema(tables ...TableSchema) (*Schema, error) {
	s := &Schema{tables: make(map[string]*TableSchema, len(tables))}
	for i := range tables {
		t := tables[i]
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.tables[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		if err := s.checkReferences(&t); err != nil {
			return nil, err
		}
		t.Columns = slices.Clone(t.Columns)
		s.tables[t.Name] = &t
		s.order = append(s.order, t.Name)
	}
	return s, nil
}

// checkReferences resolves t's foreign keys against the tables added so
// far and t itself, so tables can be created in registration order.
func (s *Schema) checkReferences(t *TableSchema) error {
	for _, c := range t.Columns {
		if c.References == nil {
			continue
		}
		ref := *c.References
		target, ok := s.tables[ref.Table]
		if ref.Table == t.Name {
			target, ok = t, true
		}
		if !ok {
			return fmt.Errorf("table %q: column %q references unknown or later table %q", t.Name, c.Name, ref.Table)
		}
		col, ok := target.Column(ref.Column)
		switch {
		case !ok:
			return fmt.Errorf("table %q: column %q references unknown column %s", t.Name, c.Name, ref)
		case !col.PrimaryKey && !col.Unique:
			return fmt.Errorf("table %q: column %q references %s, which is not a key", t.Name, c.Name, ref)
		case col.Kind != c.Kind:
			return fmt.Errorf("table %q: column %q is %s but references %s of kind %s", t.Name, c.Name, c.Kind, ref, col.Kind)
		}
	}
	return nil
}

// MustSchema is NewSchema that panics on error. Intended for tests and
// package-level declarations.
func MustSchema(tables ...TableSchema) *Schema {
	s, err := NewSchema(tables...)
	if err != nil {
		panic(err)
	}
	return s
}

// Table returns the named table.
func (s *Schema) Table(name string) (*TableSchema, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns all tables in registration order.
func (s *Schema) Tables() []*TableSchema {
	out := make([]*TableSchema, len(s.order))
	for i, name := range s.order {
		out[i] = s.tables[name]
	}
	return out
}
