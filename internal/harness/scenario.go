// Package harness runs declarative integrity scenarios for conformance
// testing.
//
// A scenario seeds a fresh dataset snapshot, executes a sequence of engine
// operations (cascade deletes and updates, consistency checks,
// reconciliation) under a pinned clock and a deterministic id source, and
// records every structured result in a trace. Traces are compared against
// golden files, which serve as the source of truth for expected engine
// behavior.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one integrity conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Now pins the engine clock (RFC 3339). Date-window checks and audit
	// timestamps are evaluated against this instant.
	Now string `yaml:"now"`

	// Snapshot is the seed dataset in snapshot YAML form.
	Snapshot yaml.Node `yaml:"snapshot"`

	// Ops is the operation sequence to execute, in order.
	Ops []Op `yaml:"ops"`
}

// Op is one engine operation. Exactly one of the operation fields is set.
type Op struct {
	Delete    *DeleteOp `yaml:"delete,omitempty"`
	Update    *UpdateOp `yaml:"update,omitempty"`
	Check     *CheckOp  `yaml:"check,omitempty"`
	FullCheck bool      `yaml:"full_check,omitempty"`
	Reconcile bool      `yaml:"reconcile,omitempty"`

	// ExpectError, when set, requires the operation to fail with the given
	// engine error code (e.g. CASCADE_RESTRICTED). The error becomes part
	// of the trace instead of failing the run.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// DeleteOp is a cascade delete of one record.
type DeleteOp struct {
	Collection string `yaml:"collection"`
	ID         string `yaml:"id"`
}

// UpdateOp is a cascade update of one record.
type UpdateOp struct {
	Collection string         `yaml:"collection"`
	ID         string         `yaml:"id"`
	Changes    map[string]any `yaml:"changes"`
}

// CheckOp is one named consistency check.
type CheckOp struct {
	Entity string `yaml:"entity"`
	Scope  string `yaml:"scope,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if sc.Now == "" {
		return nil, fmt.Errorf("scenario %s: now is required", path)
	}
	if len(sc.Ops) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one op is required", path)
	}
	return &sc, nil
}
