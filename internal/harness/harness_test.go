package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestLoadScenario(t *testing.T) {
	s := loadTestScenario(t, "adults")

	assert.Equal(t, "adults", s.Name)
	assert.Equal(t, filepath.Join("testdata", "schemas", "users.cue"), s.Schema)
	assert.Len(t, s.Setup, 3)
	require.Len(t, s.Subscriptions, 2)
	assert.Equal(t, "adults", s.Subscriptions[0].Name)
	assert.Equal(t, []string{"id", "name"}, s.Subscriptions[0].Query.Select)
	require.Len(t, s.Steps, 5)
	assert.Equal(t, "everyone", s.Steps[3].Close)
	assert.NotNil(t, s.Steps[0].Mutate)
	assert.Len(t, s.Assertions, 7)
}

func TestLoadScenario_Errors(t *testing.T) {
	schema, err := filepath.Abs(filepath.Join("testdata", "schemas", "users.cue"))
	require.NoError(t, err)

	base := "name: x\ndescription: d\nschema: " + schema + "\n" +
		"subscriptions:\n  - name: s\n    query: {table: users, select: [id]}\n"
	step := "steps:\n  - close: s\n"
	assertion := "assertions:\n  - type: consistent\n"

	testCases := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", base + step + assertion + "extra: 1\n", "field extra not found"},
		{"missing name", strings.Replace(base, "name: x\n", "", 1) + step + assertion, "name is required"},
		{"missing schema file", strings.Replace(base, schema, "nope.cue", 1) + step + assertion, "schema not found"},
		{"no steps", base + assertion, "steps list is required"},
		{"no assertions", base + step, "assertions list is required"},
		{"empty step", base + "steps:\n  - {}\n" + assertion, "mutate or close is required"},
		{"unknown close", base + "steps:\n  - close: t\n" + assertion, `unknown subscription "t"`},
		{"bad error code", base + "steps:\n  - mutate: {delete: users}\n    expect_error: OOPS\n" + assertion, "unknown error code"},
		{"unknown assertion", base + step + "assertions:\n  - type: vibes\n", "unknown assertion type"},
		{"assertion needs subscription", base + step + "assertions:\n  - type: count\n    count: 1\n", "subscription is required"},
		{"assertion unknown subscription", base + step + "assertions:\n  - type: count\n    subscription: t\n", `unknown subscription "t"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.doc), 0o644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRunScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			s, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Trace(t *testing.T) {
	result, err := Run(loadTestScenario(t, "adults"))
	require.NoError(t, err)

	closeStep := -2
	var everyoneAfterClose int
	for _, ev := range result.Trace {
		if ev.Type == TraceClose {
			closeStep = ev.Step
		}
		if ev.Subscription == "everyone" && ev.Type == TraceNotify && ev.Step > 3 {
			everyoneAfterClose++
		}
	}
	assert.Equal(t, 3, closeStep)
	assert.Zero(t, everyoneAfterClose, "closed subscriptions are not notified")

	require.Contains(t, result.State, "adults")
	assert.Len(t, result.State["adults"], 3)
}

func TestRun_ConflictTrace(t *testing.T) {
	result, err := Run(loadTestScenario(t, "first_conflict"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var types []string
	for _, ev := range result.Trace {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{TraceSubscribe, TraceMutation, TraceConflict, TraceMutation, TraceNotify}, types)
}

func TestRun_ReportsFailures(t *testing.T) {
	s := loadTestScenario(t, "adults")
	s.Assertions = []Assertion{
		{Type: AssertNotified, Subscription: "adults", Count: 99},
		{Type: AssertCount, Subscription: "adults", Count: 3},
		{Type: AssertClosed, Subscription: "adults"},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "notified")
	assert.Contains(t, result.Errors[0], "Expected: 99")
	assert.Contains(t, result.Errors[1], "closed")
}

func TestRun_UnexpectedStepError(t *testing.T) {
	s := loadTestScenario(t, "single_row")
	s.Steps[0].ExpectError = ""

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_SchemaError(t *testing.T) {
	s := loadTestScenario(t, "adults")
	s.Schema = filepath.Join(t.TempDir(), "missing.cue")

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load schema")
}

func TestSnapshotDeterministic(t *testing.T) {
	s := loadTestScenario(t, "adults")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(s, first)
	require.NoError(t, err)
	b, err := Snapshot(s, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRunWithGolden(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "golden_insert"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
