package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/notitia/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrNoPrimaryKey        = "E101" // table declares no primary key
	ErrMultiplePrimaryKeys = "E102" // composite keys are not supported
	ErrUnknownType         = "E103" // type string is not a known datatype
	ErrNullablePrimaryKey  = "E104" // primary key marked nullable
	ErrEmptyTable          = "E105" // table declares no columns
	ErrInvalidIdentifier   = "E106" // table or column name is not a plain identifier
	ErrDuplicateName       = "E107" // table or column declared twice
	ErrInvalidReference    = "E108" // foreign key target is malformed, unknown, later or not a key
)

// identPattern restricts names to what both SQL dialects accept unquoted.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in a schema file.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateSchema checks table definitions against the schema rules.
// Returns all errors found (does not fail-fast).
func ValidateSchema(defs []TableDef) ValidationErrors {
	var errs ValidationErrors
	tables := make(map[string]bool, len(defs))

	for _, def := range defs {
		field := "table." + def.Name

		if !identPattern.MatchString(def.Name) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid table name %q", def.Name),
				Code:    ErrInvalidIdentifier,
				Line:    def.Pos.Line(),
			})
		}
		if tables[def.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate table %q", def.Name),
				Code:    ErrDuplicateName,
				Line:    def.Pos.Line(),
			})
		}
		tables[def.Name] = true

		// E105: at least one column
		if len(def.Columns) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".column",
				Message: "at least one column is required",
				Code:    ErrEmptyTable,
				Line:    def.Pos.Line(),
			})
			continue
		}

		errs = append(errs, validateColumns(def)...)
	}
	return append(errs, validateReferences(defs)...)
}

// validateReferences checks each foreign key against the tables declared
// up to and including its own.
func validateReferences(defs []TableDef) ValidationErrors {
	var errs ValidationErrors
	declared := make(map[string]TableDef, len(defs))
	for _, def := range defs {
		if _, dup := declared[def.Name]; !dup {
			declared[def.Name] = def
		}
		for _, col := range def.Columns {
			if col.References == "" {
				continue
			}
			if msg := checkReference(declared, col); msg != "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("table.%s.column.%s.references", def.Name, col.Name),
					Message: msg,
					Code:    ErrInvalidReference,
					Line:    col.Pos.Line(),
				})
			}
		}
	}
	return errs
}

func checkReference(declared map[string]TableDef, col ColumnDef) string {
	ref, ok := parseReference(col.References)
	if !ok {
		return fmt.Sprintf("reference %q must have the form table.column", col.References)
	}
	target, ok := declared[ref.Table]
	if !ok {
		return fmt.Sprintf("table %q is not declared before this column", ref.Table)
	}
	for _, tc := range target.Columns {
		if tc.Name != ref.Column {
			continue
		}
		if !tc.PrimaryKey && !tc.Unique {
			return fmt.Sprintf("%s is not a primary key or unique column", ref)
		}
		want, err1 := ir.ParseKind(tc.Type)
		got, err2 := ir.ParseKind(col.Type)
		if err1 == nil && err2 == nil && want != got {
			return fmt.Sprintf("type %q does not match %s of type %q", col.Type, ref, tc.Type)
		}
		return ""
	}
	return fmt.Sprintf("unknown column %s", ref)
}

func validateColumns(def TableDef) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(def.Columns))
	var pks []string

	for _, col := range def.Columns {
		field := fmt.Sprintf("table.%s.column.%s", def.Name, col.Name)
		line := col.Pos.Line()

		if !identPattern.MatchString(col.Name) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid column name %q", col.Name),
				Code:    ErrInvalidIdentifier,
				Line:    line,
			})
		}
		if seen[col.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate column %q", col.Name),
				Code:    ErrDuplicateName,
				Line:    line,
			})
		}
		seen[col.Name] = true

		// E103: datatype must be known
		if _, err := ir.ParseKind(col.Type); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unknown type %q (valid: int, real, text, bool, blob)", col.Type),
				Code:    ErrUnknownType,
				Line:    line,
			})
		}

		if col.PrimaryKey {
			pks = append(pks, col.Name)
			// E104: primary keys identify rows and cannot be null
			if col.Nullable {
				errs = append(errs, ValidationError{
					Field:   field + ".nullable",
					Message: "primary key cannot be nullable",
					Code:    ErrNullablePrimaryKey,
					Line:    line,
				})
			}
		}
	}

	switch {
	case len(pks) == 0:
		errs = append(errs, ValidationError{
			Field:   "table." + def.Name,
			Message: "exactly one column must set primary_key",
			Code:    ErrNoPrimaryKey,
			Line:    def.Pos.Line(),
		})
	case len(pks) > 1:
		errs = append(errs, ValidationError{
			Field:   "table." + def.Name,
			Message: fmt.Sprintf("composite primary keys are not supported: %s", strings.Join(pks, ", ")),
			Code:    ErrMultiplePrimaryKeys,
			Line:    def.Pos.Line(),
		})
	}
	return errs
}
