// Package repositories implements SQLite persistence for run history and the optional cache backend.
//
// Key Implementations:
//   - [RunRepository] : Migration run history with status tracking and soft deletes
//   - [CacheRepository] : cache.Store over the cache_entries table
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
