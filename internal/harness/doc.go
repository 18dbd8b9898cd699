// Package harness runs goal and badge scenarios described in YAML.
//
// A scenario declares goals, a flow of steps against them, and assertions
// on the final state. Every run uses a fresh in-memory SQLite store, a
// fixed clock and sequential goal ids, so the recorded trace is identical
// across runs and can be compared against a golden file.
//
// # Scenario Format
//
//	name: kitchen_crew
//	description: "Two kids finish a collective goal"
//	now: 2026-01-05T09:00:00Z
//	goals:
//	  - ref: kitchen
//	    type: collective
//	    metric: quest_count
//	    target: 3
//	    participants: [alice, bob]
//	    start: true
//	flow:
//	  - action: quest
//	    quest: { id: c1, user: alice, xp: 30 }
//	    expect: { badges: [first_quest] }
//	  - action: contribute
//	    goal: kitchen
//	    participant: bob
//	    value: 2
//	    expect: { updated: true, completed: true }
//	assertions:
//	  - type: goal_state
//	    goal: kitchen
//	    status: completed
//
// # Actions
//
//   - start, pause, resume, cancel, complete: lifecycle calls on goal
//   - contribute: UpdateProgress on goal from participant with value
//   - quest: record a quest completion and propagate it
//   - advance: move the clock forward by duration (Go duration syntax)
//
// # Assertion Types
//
//   - goal_state: status and XP reward of a goal
//   - badges_unlocked: the exact unlocked badge ids of a user
//   - snapshot: stats snapshot values of a user
//   - trace_count: how many steps ran a given action
package harness
