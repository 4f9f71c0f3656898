package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notitia/internal/ir"
)

func TestCompileSchemaBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		table: users: column: {
			id:    {type: "int", primary_key: true}
			name:  "text"
			email: {type: "text", unique: true}
			age:   {type: "int", nullable: true}
		}
		table: posts: column: {
			id:     {type: "int", primary_key: true}
			title:  "text"
			body:   {type: "blob", nullable: true}
			score:  "real"
			draft:  "bool"
		}
	`)
	require.NoError(t, v.Err())

	schema, err := CompileSchema(v)
	require.NoError(t, err)

	users, ok := schema.Table("users")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "email", "age"}, users.ColumnNames())
	assert.Equal(t, "id", users.PrimaryKey().Name)

	email, _ := users.Column("email")
	assert.True(t, email.Unique)
	assert.Equal(t, ir.KindText, email.Kind)

	age, _ := users.Column("age")
	assert.True(t, age.Nullable)

	posts, ok := schema.Table("posts")
	require.True(t, ok)
	body, _ := posts.Column("body")
	assert.Equal(t, ir.KindBlob, body.Kind)
	score, _ := posts.Column("score")
	assert.Equal(t, ir.KindReal, score.Kind)

	// Declaration order is preserved.
	tables := schema.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, "users", tables[0].Name)
	assert.Equal(t, "posts", tables[1].Name)
}

func TestCompileSchemaMissingTables(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`other: 1`)
	require.NoError(t, v.Err())

	_, err := CompileSchema(v)
	require.Error(t, err)

	var cErr *CompileError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "table", cErr.Field)
	assert.Contains(t, err.Error(), "required")
}

func TestCompileSchemaMissingType(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`table: users: column: id: {primary_key: true}`)
	require.NoError(t, v.Err())

	_, err := CompileSchema(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table.users.column.id.type")
}

func TestCompileSchemaNonBoolFlag(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`table: users: column: id: {type: "int", primary_key: "yes"}`)
	require.NoError(t, v.Err())

	_, err := CompileSchema(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary_key")
	assert.Contains(t, err.Error(), "boolean")
}

func TestCompileSchemaReferences(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		table: users: column: id: {type: "int", primary_key: true}
		table: posts: column: {
			id:     {type: "int", primary_key: true}
			author: {type: "int", references: "users.id"}
		}
	`)
	require.NoError(t, v.Err())

	schema, err := CompileSchema(v)
	require.NoError(t, err)
	posts, _ := schema.Table("posts")
	author, _ := posts.Column("author")
	require.NotNil(t, author.References)
	assert.Equal(t, ir.Reference{Table: "users", Column: "id"}, *author.References)

	v = ctx.CompileString(`table: users: column: id: {type: "int", primary_key: true, references: 1}`)
	_, err = CompileSchema(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table.users.column.id.references")
}

func TestCompileSchemaCUEError(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`table: users: column: id: "int" & 5`)

	_, err := CompileSchema(v)
	require.Error(t, err)
}

func TestCompileSchemaValidationErrors(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		table: users: column: {
			id:   {type: "uuid", primary_key: true}
			name: "text"
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileSchema(v)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrUnknownType, verrs[0].Code)
}

func TestCompileTablesKeepsRawTypes(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`table: t: column: x: "varchar"`)
	require.NoError(t, v.Err())

	defs, err := CompileTables(v)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Len(t, defs[0].Columns, 1)
	assert.Equal(t, "varchar", defs[0].Columns[0].Type)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "table", Message: "at least one table is required"}
	assert.Equal(t, "table: at least one table is required", err.Error())
}
