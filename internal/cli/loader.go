package cli

import (
	"fmt"
	"time"

	"github.com/membercore/integra/internal/dataset"
	"github.com/membercore/integra/internal/integrity"
	"github.com/membercore/integra/internal/schema"
)

// dataFlags are the flags shared by every command that operates on a
// dataset snapshot.
type dataFlags struct {
	Data  string // snapshot YAML path (required)
	Rules string // registry YAML path; empty selects the built-in registry
	Now   string // RFC 3339 clock override for deterministic runs
}

func (f *dataFlags) loadStore() (*dataset.Store, error) {
	if f.Data == "" {
		return nil, NewExitError(ExitCommandError, "--data is required")
	}
	store, err := dataset.LoadSnapshot(f.Data)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load snapshot", err)
	}
	return store, nil
}

func (f *dataFlags) loadRegistry() (*schema.Registry, error) {
	if f.Rules == "" {
		return schema.Default(), nil
	}
	reg, err := schema.LoadRegistry(f.Rules)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load rules", err)
	}
	return reg, nil
}

func (f *dataFlags) clock() (integrity.Clock, error) {
	if f.Now == "" {
		return integrity.SystemClock{}, nil
	}
	t, err := time.Parse(time.RFC3339, f.Now)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("parse --now %q", f.Now), err)
	}
	return pinnedClock(t), nil
}

// pinnedClock satisfies integrity.Clock with a fixed instant, so cascade
// audit entries and date-window checks are reproducible across runs.
type pinnedClock time.Time

func (c pinnedClock) Now() time.Time { return time.Time(c) }

