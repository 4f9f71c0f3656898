package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/notitia/internal/ir"
)

// TableDef is a table as written in a schema file, before validation.
type TableDef struct {
	Name    string
	Columns []ColumnDef
	Pos     token.Pos
}

// ColumnDef is a column as written in a schema file. Type is kept as
// written so validation can report unknown types.
type ColumnDef struct {
	Name       string
	Type       string
	PrimaryKey bool
	Unique     bool
	Nullable   bool
	References string // "table.column", empty if none
	Pos        token.Pos
}

// CompileSchema parses, validates and builds a schema from a CUE value.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the root of the schema file:
//
//	table: users: column: {
//		id:    {type: "int", primary_key: true}
//		email: {type: "text", unique: true}
//		age:   {type: "int", nullable: true}
//		name:  "text"
//	}
//	table: posts: column: {
//		id:     {type: "int", primary_key: true}
//		author: {type: "int", references: "users.id"}
//	}
//
// A column given as a bare string is shorthand for {type: <string>}.
// Columns keep their declaration order. A reference may name the
// column's own table or a table declared before it.
func CompileSchema(v cue.Value) (*ir.Schema, error) {
	defs, err := CompileTables(v)
	if err != nil {
		return nil, err
	}
	if errs := ValidateSchema(defs); len(errs) > 0 {
		return nil, errs
	}
	return BuildSchema(defs)
}

// CompileTables parses every entry under "table" without validating it.
func CompileTables(v cue.Value) ([]TableDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &CompileError{
			Field:   "table",
			Message: "at least one table is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []TableDef
	for iter.Next() {
		def, err := CompileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// CompileTable parses one table struct.
func CompileTable(name string, v cue.Value) (TableDef, error) {
	def := TableDef{Name: name, Pos: v.Pos()}

	colsVal := v.LookupPath(cue.ParsePath("column"))
	if !colsVal.Exists() {
		return def, nil // reported by validation
	}

	iter, err := colsVal.Fields()
	if err != nil {
		return def, formatCUEError(err)
	}
	for iter.Next() {
		col, err := compileColumn(name, iter.Label(), iter.Value())
		if err != nil {
			return def, err
		}
		def.Columns = append(def.Columns, col)
	}
	return def, nil
}

func compileColumn(table, name string, v cue.Value) (ColumnDef, error) {
	col := ColumnDef{Name: name, Pos: v.Pos()}
	field := fmt.Sprintf("table.%s.column.%s", table, name)

	// Shorthand: name: "text"
	if s, err := v.String(); err == nil {
		col.Type = s
		return col, nil
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return col, &CompileError{
			Field:   field + ".type",
			Message: "column type is required",
			Pos:     v.Pos(),
		}
	}
	typ, err := typeVal.String()
	if err != nil {
		return col, formatCUEError(err)
	}
	col.Type = typ

	flags := []struct {
		label string
		dst   *bool
	}{
		{"primary_key", &col.PrimaryKey},
		{"unique", &col.Unique},
		{"nullable", &col.Nullable},
	}
	for _, f := range flags {
		fv := v.LookupPath(cue.ParsePath(f.label))
		if !fv.Exists() {
			continue
		}
		b, err := fv.Bool()
		if err != nil {
			return col, &CompileError{
				Field:   field + "." + f.label,
				Message: "must be a boolean",
				Pos:     fv.Pos(),
			}
		}
		*f.dst = b
	}

	if rv := v.LookupPath(cue.ParsePath("references")); rv.Exists() {
		ref, err := rv.String()
		if err != nil {
			return col, &CompileError{
				Field:   field + ".references",
				Message: "must be a string of the form table.column",
				Pos:     rv.Pos(),
			}
		}
		col.References = ref
	}
	return col, nil
}

// BuildSchema converts validated definitions to an ir.Schema.
func BuildSchema(defs []TableDef) (*ir.Schema, error) {
	tables := make([]ir.TableSchema, 0, len(defs))
	for _, def := range defs {
		t := ir.TableSchema{Name: def.Name}
		for _, c := range def.Columns {
			kind, err := ir.ParseKind(c.Type)
			if err != nil {
				return nil, fmt.Errorf("table %q: %w", def.Name, err)
			}
			col := ir.Column{
				Name:       c.Name,
				Kind:       kind,
				PrimaryKey: c.PrimaryKey,
				Unique:     c.Unique,
				Nullable:   c.Nullable,
			}
			if c.References != "" {
				ref, ok := parseReference(c.References)
				if !ok {
					return nil, fmt.Errorf("table %q: column %q: malformed reference %q", def.Name, c.Name, c.References)
				}
				col.References = &ref
			}
			t.Columns = append(t.Columns, col)
		}
		tables = append(tables, t)
	}
	return ir.NewSchema(tables...)
}

// parseReference splits "table.column".
func parseReference(s string) (ir.Reference, bool) {
	table, column, ok := strings.Cut(s, ".")
	if !ok || table == "" || column == "" || strings.Contains(column, ".") {
		return ir.Reference{}, false
	}
	return ir.Reference{Table: table, Column: column}, true
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
