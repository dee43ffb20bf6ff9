package harness

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/membercore/integra/internal/dataset"
	"github.com/membercore/integra/internal/integrity"
	"github.com/membercore/integra/internal/record"
	"github.com/membercore/integra/internal/schema"
	"github.com/membercore/integra/internal/testutil"
)

// TraceEvent is the recorded outcome of one scenario operation. Exactly one
// result field is populated, or Error for an expected failure.
type TraceEvent struct {
	Op        string                     `json:"op"`
	Target    string                     `json:"target,omitempty"`
	Delete    *integrity.DeleteResult    `json:"delete,omitempty"`
	Update    *integrity.UpdateResult    `json:"update,omitempty"`
	Check     *integrity.CheckResult     `json:"check,omitempty"`
	Full      *integrity.FullCheck       `json:"full,omitempty"`
	Reconcile *integrity.ReconcileResult `json:"reconcile,omitempty"`
	Error     string                     `json:"error,omitempty"`
	ErrorCode string                     `json:"errorCode,omitempty"`
}

// Trace is the full recorded output of one scenario run.
type Trace struct {
	Scenario string       `json:"scenario"`
	Now      string       `json:"now"`
	Events   []TraceEvent `json:"events"`
}

// Runner executes scenarios against a fresh engine per run.
type Runner struct {
	reg *schema.Registry
}

// NewRunner returns a runner using the given rule registry. A nil registry
// selects the default membership registry.
func NewRunner(reg *schema.Registry) *Runner {
	if reg == nil {
		reg = schema.Default()
	}
	return &Runner{reg: reg}
}

// Run executes the scenario and returns its trace. Operations that fail
// without a matching expect_error abort the run.
func (r *Runner) Run(sc *Scenario) (*Trace, error) {
	now, err := time.Parse(time.RFC3339, sc.Now)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: parse now: %w", sc.Name, err)
	}

	store, err := seedStore(&sc.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	clock := testutil.NewFixedClock(now)
	ids := testutil.NewSequenceIDSource("LOG")
	exec := integrity.NewExecutor(store, r.reg,
		integrity.WithClock(clock), integrity.WithIDSource(ids))
	checker := integrity.NewChecker(store, clock)
	reconciler := integrity.NewReconciler(store, checker,
		integrity.WithReconcilerIDSource(ids))

	trace := &Trace{Scenario: sc.Name, Now: sc.Now, Events: []TraceEvent{}}
	for i, op := range sc.Ops {
		ev, err := r.runOp(op, exec, checker, reconciler)
		if err != nil {
			code := errorCode(err)
			if op.ExpectError == "" || code != op.ExpectError {
				return nil, fmt.Errorf("scenario %s: op %d (%s): %w", sc.Name, i, ev.Op, err)
			}
			ev.Error = err.Error()
			ev.ErrorCode = code
		} else if op.ExpectError != "" {
			return nil, fmt.Errorf("scenario %s: op %d (%s): expected error %s, got none",
				sc.Name, i, ev.Op, op.ExpectError)
		}
		trace.Events = append(trace.Events, ev)
	}
	return trace, nil
}

func (r *Runner) runOp(op Op, exec *integrity.Executor, checker *integrity.Checker, reconciler *integrity.Reconciler) (TraceEvent, error) {
	switch {
	case op.Delete != nil:
		ev := TraceEvent{
			Op:     "delete",
			Target: op.Delete.Collection + ":" + op.Delete.ID,
		}
		res, err := exec.PerformDelete(record.Collection(op.Delete.Collection), op.Delete.ID)
		if err != nil {
			ev.Delete = res
			return ev, err
		}
		ev.Delete = res
		return ev, nil

	case op.Update != nil:
		ev := TraceEvent{
			Op:     "update",
			Target: op.Update.Collection + ":" + op.Update.ID,
		}
		res, err := exec.PerformUpdate(record.Collection(op.Update.Collection), op.Update.ID, op.Update.Changes)
		if err != nil {
			return ev, err
		}
		ev.Update = res
		return ev, nil

	case op.Check != nil:
		ev := TraceEvent{Op: "check", Target: op.Check.Entity}
		if op.Check.Scope != "" {
			ev.Target += ":" + op.Check.Scope
		}
		res, err := checker.Run(integrity.Entity(op.Check.Entity), op.Check.Scope)
		if err != nil {
			return ev, err
		}
		ev.Check = res
		return ev, nil

	case op.FullCheck:
		full := checker.RunFull()
		return TraceEvent{Op: "full_check", Full: &full}, nil

	case op.Reconcile:
		ev := TraceEvent{Op: "reconcile"}
		res, err := reconciler.ReconcileBalances()
		if err != nil {
			ev.Reconcile = res
			return ev, err
		}
		ev.Reconcile = res
		return ev, nil
	}
	return TraceEvent{Op: "invalid"}, errors.New("op has no operation field set")
}

// seedStore builds a store from the scenario's inline snapshot. An absent
// snapshot yields an empty store.
func seedStore(node *yaml.Node) (*dataset.Store, error) {
	if node == nil || node.IsZero() {
		return dataset.New(), nil
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return dataset.ParseSnapshot(data)
}

func errorCode(err error) string {
	var ee *integrity.EngineError
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return ""
}
