// Package badge implements the badge engine: a static catalog of achievement
// definitions, per-user unlock records, and the evaluation that advances
// those records against a stats.Snapshot.
//
// The catalog is immutable data (id, condition, rarity, reward). A user's
// collection holds only mutable state ({badgeId, isUnlocked, progress,
// dateEarned}); the two are joined by id at read time.
//
// Invariants:
//   - isUnlocked never reverts to false once set
//   - progress is a pure function of (condition, snapshot)
//   - evaluation order is catalog order
//
// The engine performs no I/O and never returns errors from evaluation;
// unknown ids or empty collections simply yield empty results.
package badge
