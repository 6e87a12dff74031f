// Package tasks migrates Asana workspaces into YouTrack projects with real-time progress reporting.
//
// # Core Operations
//
// [Migrator.Run] walks every selected workspace and, for each one:
//
//  1. [Migrator.EnsureProject] : Resolve the destination project by name (or override), creating it when absent
//     - Attaches the external-ID and due-date custom fields ([Migrator.EnsureCustomFields])
//
//  2. [Migrator.MigrateUsers] : Create destination accounts for members whose email is unknown
//
//  3. [Migrator.MigrateSubsystems] : Create a subsystem per source project not yet present
//     - Default assignee is the project owner's destination login
//
//  4. [Migrator.MigrateTasks] : Import each user's tasks as issues
//     - Skips tasks whose external ID or summary already exists
//     - Comments come from activity entries; the reporter from the first assignment entry
//     - Sequence numbers continue from the project's highest number
//
// # Reconciliation
//
// Every step merges both sides into an [identity.Map] held by a run-scoped [RunState] and only creates
// what the source has and the destination lacks, so re-running a migration creates nothing new.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// Updates use select with default to prevent blocking.
//
// # Caching
//
// Task and story payloads are read through a [cache.Cache]; detail fetches run in parallel with a bounded
// errgroup while identity maps and the sequence counter stay on the calling goroutine.
//
// # Run History
//
// The optional [RunRecorder] (repositories.RunRepository) records one run per workspace. Recording
// errors are logged and never abort a migration.
package tasks
