package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioGoldens runs every scenario under testdata/scenarios and
// compares its trace against the matching golden file.
func TestScenarioGoldens(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	runner := NewRunner(nil)
	for _, path := range paths {
		sc, err := LoadScenario(path)
		require.NoError(t, err, path)
		t.Run(sc.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, runner, sc))
		})
	}
}

func TestLoadScenarioValidation(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	_, err := LoadScenario(write("no-name.yaml", "now: \"2025-06-15T12:00:00Z\"\nops:\n  - reconcile: true\n"))
	assert.ErrorContains(t, err, "name is required")

	_, err = LoadScenario(write("no-now.yaml", "name: x\nops:\n  - reconcile: true\n"))
	assert.ErrorContains(t, err, "now is required")

	_, err = LoadScenario(write("no-ops.yaml", "name: x\nnow: \"2025-06-15T12:00:00Z\"\n"))
	assert.ErrorContains(t, err, "at least one op")

	_, err = LoadScenario(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRunnerRejectsUnexpectedError(t *testing.T) {
	sc := &Scenario{
		Name: "delete-missing",
		Now:  "2025-06-15T12:00:00Z",
		Ops: []Op{
			{Delete: &DeleteOp{Collection: "members", ID: "MEM-404"}},
		},
	}

	_, err := NewRunner(nil).Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECORD_NOT_FOUND")
}

func TestRunnerRejectsMissingExpectedError(t *testing.T) {
	sc := &Scenario{
		Name: "expected-block",
		Now:  "2025-06-15T12:00:00Z",
		Ops: []Op{
			{Reconcile: true, ExpectError: "CASCADE_RESTRICTED"},
		},
	}

	_, err := NewRunner(nil).Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected error CASCADE_RESTRICTED, got none")
}

func TestRunnerEmptySnapshot(t *testing.T) {
	sc := &Scenario{
		Name: "empty",
		Now:  "2025-06-15T12:00:00Z",
		Ops:  []Op{{FullCheck: true}},
	}

	trace, err := NewRunner(nil).Run(sc)
	require.NoError(t, err)
	require.Len(t, trace.Events, 1)
	require.NotNil(t, trace.Events[0].Full)
	assert.True(t, trace.Events[0].Full.Consistent)
}

func TestRunnerRejectsBadClock(t *testing.T) {
	sc := &Scenario{
		Name: "bad-clock",
		Now:  "yesterday",
		Ops:  []Op{{FullCheck: true}},
	}
	_, err := NewRunner(nil).Run(sc)
	assert.ErrorContains(t, err, "parse now")
}
