// Package integrity implements the referential-integrity cascade engine and
// the data-consistency reconciliation logic for the membership system.
//
// The package has four cooperating parts:
//
//   - Resolver: finds child records referencing a parent through the
//     foreign-key map declared in the schema registry.
//   - Executor: orchestrates cascade deletes and updates, applying the
//     registry's per-collection policies (RESTRICT, CASCADE, SET_NULL,
//     PRESERVE on delete; CASCADE, LOG on update) and returning a structured
//     result describing every side effect.
//   - Checker: named consistency rules (balances, subscription windows,
//     payment status transitions) reporting per-record drift against derived
//     ground truth. Violations are data, not errors.
//   - Reconciler: rewrites drifted balance caches to their computed values,
//     recording an audit trail of every adjustment. Idempotent.
//
// DETERMINISM:
//
// Cascade rules are evaluated in registry declaration order, and collections
// iterate in insertion order, so results are stable given a fixed snapshot.
// No randomness, no concurrency inside a call.
//
// ATOMICITY:
//
// A delete blocked by a RESTRICT rule must leave every collection untouched.
// The executor therefore evaluates all RESTRICT rules against the snapshot
// before applying any CASCADE/SET_NULL/PRESERVE side effect.
//
// CONCURRENCY:
//
// Each engine call operates on a single snapshot, synchronously. Mutating
// entry points take the store's write lock for the whole call; read-only
// checks take the read lock. Cascades are single-hop: a CASCADE-deleted
// child's own children are not recursively cascaded.
package integrity
