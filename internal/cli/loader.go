package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/notitia/internal/compiler"
	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

// Load error codes (E001-E099)
const (
	ErrCodeGeneric    = "E001"
	ErrCodeNotFound   = "E002" // schema or document path does not exist
	ErrCodeLoadFailed = "E003" // CUE syntax or evaluation error
	ErrCodeCompile    = "E004" // schema shape is wrong (missing table, bad column)
	ErrCodeInvalid    = "E005"
	ErrCodeDocument   = "E006" // query or mutation YAML is malformed
)

// LoadError represents an error that occurred while loading a schema or
// document from disk.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loadValue reads the CUE value at path, classifying failures.
func loadValue(path string) (cue.Value, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}
		}
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema: %v", err)}
	}

	v, err := compiler.LoadValue(path)
	if err != nil {
		return cue.Value{}, convertCompileError(err, ErrCodeLoadFailed)
	}
	return v, nil
}

// LoadSchema loads, validates and builds the schema at path. Validation
// failures are returned as compiler.ValidationErrors so callers can report
// every problem at once.
func LoadSchema(path string) (*ir.Schema, error) {
	v, err := loadValue(path)
	if err != nil {
		return nil, err
	}

	defs, err := compiler.CompileTables(v)
	if err != nil {
		return nil, convertCompileError(err, ErrCodeCompile)
	}
	if verrs := compiler.ValidateSchema(defs); len(verrs) > 0 {
		return nil, verrs
	}

	schema, err := compiler.BuildSchema(defs)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: err.Error()}
	}
	return schema, nil
}

// loadQuery parses the query document at path.
func loadQuery(path string) (queryir.QuerySpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return queryir.QuerySpec{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query not found: %s", path)}
	}
	defer f.Close()

	q, err := queryir.DecodeQuery(f)
	if err != nil {
		return queryir.QuerySpec{}, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return q, nil
}

// loadMutation parses the mutation document at path.
func loadMutation(path string) (queryir.MutationSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return queryir.MutationSpec{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mutation not found: %s", path)}
	}
	defer f.Close()

	m, err := queryir.DecodeMutation(f)
	if err != nil {
		return queryir.MutationSpec{}, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return m, nil
}

// convertCompileError converts a compiler error to a LoadError, keeping
// the CUE position when there is one.
func convertCompileError(err error, code string) *LoadError {
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) {
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", cErr.Field, cErr.Message),
			Pos:     cErr.Pos,
		}
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// getLineFromTokenPos extracts the line number from a CUE token position.
func getLineFromTokenPos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// reportLoadError writes err through the formatter and returns the exit
// error the command should fail with.
func reportLoadError(f *OutputFormatter, err error) error {
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) {
		return outputValidationErrors(f, verrs)
	}

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	msg := loadErr.Message
	if loadErr.Pos.IsValid() {
		msg = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), msg)
	}
	if outErr := f.Error(loadErr.Code, msg, nil); outErr != nil {
		return outErr
	}
	code := ExitFailure
	if loadErr.Code == ErrCodeNotFound {
		code = ExitCommandError
	}
	return NewExitError(code, loadErr.Message)
}
