// Package store defines the persistence contract shared by the goal and
// badge document stores.
//
// Documents are written as canonical JSON (see internal/canonical) and
// carry a revision: the domain-separated SHA-256 of those bytes. Writers
// pass the revision they loaded; a store accepts the write only when it
// still matches, and reports ErrConflict otherwise. The empty revision
// means "create".
//
// Implementations live in subpackages:
//   - store/sqlite: embedded SQLite file, WAL mode
//   - store/firestore: hosted Firestore project
package store
