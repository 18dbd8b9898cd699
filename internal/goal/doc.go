// Package goal implements the family goal state machine.
//
// A Goal is created in draft, started into active, and ends in one of the
// terminal states completed, cancelled or expired. Paused is a reversible
// detour from active. Progress is a tagged union keyed by the goal type:
// CollectiveProgress, IndividualProgress, CompetitiveProgress or
// CooperativeProgress.
//
// Two kinds of failure are kept apart:
//
//   - Lifecycle calls made in the wrong status return *InvalidStateError.
//     These are caller bugs.
//   - Rejected progress updates are reported in UpdateResult with
//     Updated=false and a Reason. These are ordinary business outcomes.
//
// The package performs no I/O. Time comes from an injected clock and ids
// from an injected ids.Generator, so the same inputs give the same goal.
package goal
