package models

import (
	"fmt"
	"time"
)

// Run statuses
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// MigrationRun records one workspace migration: where it went, how it ended and what it created.
type MigrationRun struct {
	id                string
	sequence          int
	workspaceGID      string
	workspaceName     string
	projectID         string
	status            string
	dryRun            bool
	usersCreated      int
	subsystemsCreated int
	issuesCreated     int
	issuesSkipped     int
	errorMessage      string
	startedAt         *time.Time
	completedAt       *time.Time
	createdAt         time.Time
	updatedAt         time.Time
	deletedAt         *time.Time
}

// NewMigrationRun creates a pending run for a workspace.
func NewMigrationRun(sequence int, workspaceGID, workspaceName, projectID string, dryRun bool) *MigrationRun {
	now := time.Now()
	return &MigrationRun{
		sequence:      sequence,
		workspaceGID:  workspaceGID,
		workspaceName: workspaceName,
		projectID:     projectID,
		status:        RunStatusPending,
		dryRun:        dryRun,
		createdAt:     now,
		updatedAt:     now,
	}
}

func (r *MigrationRun) ID() string { return r.id }
func (r *MigrationRun) Sequence() int { return r.sequence }
func (r *MigrationRun) WorkspaceGID() string { return r.workspaceGID }
func (r *MigrationRun) WorkspaceName() string { return r.workspaceName }
func (r *MigrationRun) ProjectID() string { return r.projectID }
func (r *MigrationRun) Status() string { return r.status }
func (r *MigrationRun) DryRun() bool { return r.dryRun }
func (r *MigrationRun) UsersCreated() int { return r.usersCreated }
func (r *MigrationRun) SubsystemsCreated() int { return r.subsystemsCreated }
func (r *MigrationRun) IssuesCreated() int { return r.issuesCreated }
func (r *MigrationRun) IssuesSkipped() int { return r.issuesSkipped }
func (r *MigrationRun) ErrorMessage() string { return r.errorMessage }
func (r *MigrationRun) StartedAt() *time.Time { return r.startedAt }
func (r *MigrationRun) CompletedAt() *time.Time { return r.completedAt }
func (r *MigrationRun) CreatedAt() time.Time { return r.createdAt }
func (r *MigrationRun) UpdatedAt() time.Time { return r.updatedAt }
func (r *MigrationRun) DeletedAt() *time.Time { return r.deletedAt }

func (r *MigrationRun) SetID(id string) { r.id = id }
func (r *MigrationRun) SetSequence(sequence int) { r.sequence = sequence }
func (r *MigrationRun) SetProjectID(projectID string) { r.projectID = projectID }
func (r *MigrationRun) SetStatus(status string) { r.status = status }
func (r *MigrationRun) SetUsersCreated(n int) { r.usersCreated = n }
func (r *MigrationRun) SetSubsystemsCreated(n int) { r.subsystemsCreated = n }
func (r *MigrationRun) SetIssuesCreated(n int) { r.issuesCreated = n }
func (r *MigrationRun) SetIssuesSkipped(n int) { r.issuesSkipped = n }
func (r *MigrationRun) SetErrorMessage(msg string) { r.errorMessage = msg }
func (r *MigrationRun) SetStartedAt(t *time.Time) { r.startedAt = t }
func (r *MigrationRun) SetCompletedAt(t *time.Time) { r.completedAt = t }
func (r *MigrationRun) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *MigrationRun) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *MigrationRun) SetDeletedAt(t *time.Time) { r.deletedAt = t }

// Start marks the run as running.
func (r *MigrationRun) Start() {
	now := time.Now()
	r.status = RunStatusRunning
	r.startedAt = &now
}

// Complete marks the run as completed.
func (r *MigrationRun) Complete() {
	now := time.Now()
	r.status = RunStatusCompleted
	r.completedAt = &now
}

// Fail marks the run as failed with the error that stopped it.
func (r *MigrationRun) Fail(err error) {
	now := time.Now()
	r.status = RunStatusFailed
	r.completedAt = &now
	if err != nil {
		r.errorMessage = err.Error()
	}
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *MigrationRun) Duration() time.Duration {
	if r.startedAt == nil || r.completedAt == nil {
		return 0
	}
	return r.completedAt.Sub(*r.startedAt)
}

// Validate checks required fields and the status value.
func (r *MigrationRun) Validate() error {
	if r.workspaceGID == "" {
		return fmt.Errorf("workspace gid is required")
	}
	switch r.status {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
	default:
		return fmt.Errorf("invalid status: %s", r.status)
	}
	if r.usersCreated < 0 || r.subsystemsCreated < 0 || r.issuesCreated < 0 || r.issuesSkipped < 0 {
		return fmt.Errorf("counts must be non-negative")
	}
	return nil
}
