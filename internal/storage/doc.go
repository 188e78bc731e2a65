// Package storage provides the optional submit audit trail.
//
// It records settled submissions (not schedule state: the schedule itself
// is always rebuilt from the server and is deliberately not persisted).
//
// Drivers:
//   - "file": dependency-free JSON Lines file, compacted by age and count
//   - "sqlite": SQLite database file (build with -tags sqlite)
package storage
