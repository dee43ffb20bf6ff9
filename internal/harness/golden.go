package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares its trace against a golden
// file at testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for expected engine behavior.
// Trace serialization is deterministic: slices keep engine iteration order
// and encoding/json sorts map keys.
func RunWithGolden(t *testing.T, r *Runner, scenario *Scenario) error {
	t.Helper()

	trace, err := r.Run(scenario)
	if err != nil {
		return err
	}

	traceJSON, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}

// RunFileWithGolden loads a scenario from a YAML file and runs it against
// its golden file.
func RunFileWithGolden(t *testing.T, r *Runner, path string) error {
	t.Helper()

	scenario, err := LoadScenario(path)
	if err != nil {
		return err
	}
	return RunWithGolden(t, r, scenario)
}
