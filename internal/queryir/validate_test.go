package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notitia/internal/ir"
)

func testSchema() *ir.Schema {
	return ir.MustSchema(ir.TableSchema{
		Name: "users",
		Columns: []ir.Column{
			{Name: "id", Kind: ir.KindInt, PrimaryKey: true},
			{Name: "name", Kind: ir.KindText},
			{Name: "email", Kind: ir.KindText, Unique: true},
			{Name: "age", Kind: ir.KindInt, Nullable: true},
			{Name: "score", Kind: ir.KindReal, Nullable: true},
		},
	})
}

func codes(errs ValidationErrors) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateQuery_Valid(t *testing.T) {
	q := Select("users", "id", "name").
		Where(AllOf(Gte("age", 18), OneOf("name", "a", "b"), Gt("score", 1))).
		OrderBy("name").
		Many(5)

	errs := ValidateQuery(q, testSchema())
	assert.Empty(t, errs)
	assert.NoError(t, errs.Err())
}

func TestValidateQuery_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		query QuerySpec
		want  []string
	}{
		{"unknown table", Select("orders", "id").All(), []string{ErrUnknownTable}},
		{"empty projection", Select("users").All(), []string{ErrEmptyProjection}},
		{"duplicate column", Select("users", "id", "id").All(), []string{ErrDuplicateColumn}},
		{"unknown column", Select("users", "id", "nope").All(), []string{ErrUnknownColumn}},
		{"unknown order", Select("users", "id").OrderBy("nope").All(), []string{ErrUnknownColumn}},
		{"bad limit", Select("users", "id").Many(0), []string{ErrInvalidFetchLimit}},
		{"kind mismatch", Select("users", "id").Where(Eq("age", "x")).All(), []string{ErrKindMismatch}},
		{"unknown filter column", Select("users", "id").Where(Not{Inner: Eq("nope", 1)}).All(), []string{ErrUnknownColumn}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateQuery(tc.query, testSchema())
			assert.Equal(t, tc.want, codes(errs))
			assert.Error(t, errs.Err())
		})
	}
}

func TestValidateQuery_NullLiteralAllowed(t *testing.T) {
	errs := ValidateQuery(Select("users", "id").Where(Eq("name", nil)).All(), testSchema())
	assert.Empty(t, errs)
}

func TestValidateMutation_Insert(t *testing.T) {
	s := testSchema()

	ok := Insert("users", ir.NewRow("id", 1, "name", "ada", "email", "a@x", "age", nil))
	assert.Empty(t, ValidateMutation(ok, s))

	missing := Insert("users", ir.NewRow("id", 1, "name", "ada"))
	assert.Equal(t, []string{ErrMissingRequired}, codes(ValidateMutation(missing, s)))

	nullName := Insert("users", ir.NewRow("id", 1, "name", nil, "email", "a@x"))
	assert.Equal(t, []string{ErrNullNotAllowed}, codes(ValidateMutation(nullName, s)))

	badKind := Insert("users", ir.NewRow("id", "one", "name", "ada", "email", "a@x"))
	assert.Equal(t, []string{ErrKindMismatch}, codes(ValidateMutation(badKind, s)))

	intIntoReal := Insert("users", ir.NewRow("id", 1, "name", "ada", "email", "a@x", "score", 3))
	assert.Empty(t, ValidateMutation(intIntoReal, s))
}

func TestValidateMutation_Update(t *testing.T) {
	s := testSchema()

	ok := Update("users").Set("age", 18).SetExpr("name", Cat(Col("name"), Lit("!"))).Where(Eq("id", 1)).Build()
	assert.Empty(t, ValidateMutation(ok, s))

	testCases := []struct {
		name string
		m    MutationSpec
		want []string
	}{
		{"pk assignment", Update("users").Set("id", 2).Build(), []string{ErrPrimaryKeyUpdate}},
		{"twice", Update("users").Set("age", 1).Set("age", 2).Build(), []string{ErrDuplicateColumn}},
		{"null into required", Update("users").Set("name", nil).Build(), []string{ErrNullNotAllowed}},
		{"concat into int", Update("users").SetExpr("age", Cat(Col("name"), Lit("x"))).Build(), []string{ErrConcatNonText}},
		{"concat int operand", Update("users").SetExpr("name", Cat(Col("name"), Lit(1))).Build(), []string{ErrConcatNonText}},
		{"field kind", Update("users").SetExpr("age", Col("name")).Build(), []string{ErrKindMismatch}},
		{"unknown column", Update("users").Set("nope", 1).Build(), []string{ErrUnknownColumn}},
		{"bad filter", Update("users").Set("age", 1).Where(Eq("nope", 1)).Build(), []string{ErrUnknownColumn}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, codes(ValidateMutation(tc.m, s)))
		})
	}
}

func TestValidateMutation_Delete(t *testing.T) {
	s := testSchema()
	assert.Empty(t, ValidateMutation(Delete("users", Eq("id", 1)), s))

	errs := ValidateMutation(Delete("orders", nil), s)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownTable, errs[0].Code)
	assert.Contains(t, errs.Error(), "unknown table")
}
