// Package storage persists subscriber preferences: the region each chat follows
// and whether it wants automatic notifications.
//
// Drivers:
//   - "sqlite": SQLite database file (pure Go driver)
//   - "file": dependency-free JSON snapshot + journal
//   - "memory": process-local, for tests and dry runs
package storage
