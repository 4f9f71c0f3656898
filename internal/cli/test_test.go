package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioDir copies the adults scenario into a temp dir, pointing its
// schema at the absolute testdata path.
func scenarioDir(t *testing.T) string {
	t.Helper()
	schema, err := filepath.Abs(filepath.Join("testdata", "users.cue"))
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join("testdata", "scenarios", "adults.yaml"))
	require.NoError(t, err)

	dir := t.TempDir()
	doc := strings.Replace(string(data), "schema: ../users.cue", "schema: "+schema, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adults.yaml"), []byte(doc), 0o644))
	return dir
}

func TestTestCommand_Pass(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adults")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", "testdata/scenarios")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "adults", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios", "--filter", "users-*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_Golden(t *testing.T) {
	dir := scenarioDir(t)
	golden := filepath.Join(dir, "golden", "adults.golden")

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adults")
	require.FileExists(t, golden)

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"adults"`)

	// Matching golden passes.
	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	// A stale golden fails.
	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"adults","trace":[]}`), 0o644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := scenarioDir(t)
	path := filepath.Join(dir, "adults.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), "count: 2", "count: 5", 1)), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ adults")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}
