// Package models defines persisted entities for the Asana to YouTrack migration tool.
//
// The only persistent entity is [MigrationRun], one record per migrated workspace per invocation,
// tracking status and the counts of created destination records.
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
