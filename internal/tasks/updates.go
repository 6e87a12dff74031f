package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a migration run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchWorkspaces Phase = iota
	EnsureProject
	MigrateUsers
	MigrateSubsystems
	FetchTasks
	ImportIssues
	Finished
)

func (p Phase) String() string {
	switch p {
	case FetchWorkspaces:
		return "fetch_workspaces"
	case EnsureProject:
		return "ensure_project"
	case MigrateUsers:
		return "migrate_users"
	case MigrateSubsystems:
		return "migrate_subsystems"
	case FetchTasks:
		return "fetch_tasks"
	case ImportIssues:
		return "import_issues"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func workspacesUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchWorkspaces,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Found %d workspace(s) to migrate", total),
	}
}

func projectUpdate(step, total int, workspace, projectID string, created bool) ProgressUpdate {
	verb := "Using"
	if created {
		verb = "Created"
	}
	return ProgressUpdate{
		Phase:   EnsureProject,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s project %s for workspace %s", step, total, verb, projectID, workspace),
	}
}

func usersUpdate(found, created int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MigrateUsers,
		Step:    created,
		Total:   found,
		Message: fmt.Sprintf("Users: %d in workspace, %d new", found, created),
	}
}

func subsystemsUpdate(found, created int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MigrateSubsystems,
		Step:    created,
		Total:   found,
		Message: fmt.Sprintf("Subsystems: %d projects, %d new", found, created),
	}
}

func fetchTasksUpdate(step, total int, user string, tasks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTasks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %d task(s) for %s...", step, total, tasks, user),
	}
}

func importIssuesUpdate(step, total int, user string, created, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportIssues,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %d issue(s) imported, %d skipped", step, total, user, created, skipped),
	}
}

func finishedUpdate(result *WorkspaceResult) ProgressUpdate {
	return ProgressUpdate{
		Phase: Finished,
		Step:  1,
		Total: 1,
		Message: fmt.Sprintf("✓ %s → %s: %d users, %d subsystems, %d issues created, %d skipped",
			result.Workspace.Name, result.ProjectID,
			len(result.UsersCreated), len(result.SubsystemsCreated), len(result.IssuesCreated), len(result.IssuesSkipped)),
		Data: result,
	}
}
