package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/a2yt/internal/models"
	"github.com/desertthunder/a2yt/internal/repositories"
)

type runView struct {
	ID                string     `json:"id"`
	Sequence          int        `json:"sequence"`
	Workspace         string     `json:"workspace"`
	WorkspaceGID      string     `json:"workspace_gid"`
	ProjectID         string     `json:"project_id"`
	Status            string     `json:"status"`
	DryRun            bool       `json:"dry_run"`
	UsersCreated      int        `json:"users_created"`
	SubsystemsCreated int        `json:"subsystems_created"`
	IssuesCreated     int        `json:"issues_created"`
	IssuesSkipped     int        `json:"issues_skipped"`
	Error             string     `json:"error,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func newRunView(run *models.MigrationRun) runView {
	return runView{
		ID:                run.ID(),
		Sequence:          run.Sequence(),
		Workspace:         run.WorkspaceName(),
		WorkspaceGID:      run.WorkspaceGID(),
		ProjectID:         run.ProjectID(),
		Status:            run.Status(),
		DryRun:            run.DryRun(),
		UsersCreated:      run.UsersCreated(),
		SubsystemsCreated: run.SubsystemsCreated(),
		IssuesCreated:     run.IssuesCreated(),
		IssuesSkipped:     run.IssuesSkipped(),
		Error:             run.ErrorMessage(),
		StartedAt:         run.StartedAt(),
		CompletedAt:       run.CompletedAt(),
	}
}

// History lists recorded migration runs, newest first.
//
// --show prints a single run and --delete soft-deletes one; both take a run ID.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewRunRepository(db)

	if id := cmd.String("delete"); id != "" {
		if err := repo.Delete(id); err != nil {
			return err
		}
		r.logger.Info("run deleted", "id", id)
		r.writePlain("%s Deleted run %s\n", r.palette.OK("✓"), id)
		return nil
	}

	if id := cmd.String("show"); id != "" {
		run, err := repo.Get(id)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(newRunView(run), true)
		}
		r.writeRun(run)
		return nil
	}

	runs, err := repo.List(map[string]any{
		"status":        cmd.String("status"),
		"workspace_gid": cmd.String("workspace-gid"),
		"limit":         int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		r.writePlain("No migration runs recorded\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Migration Runs (%d)", len(runs)))
	for _, run := range runs {
		r.writeRun(run)
	}
	return nil
}

func (r *Runner) writeRun(run *models.MigrationRun) {
	status := run.Status()
	switch status {
	case models.RunStatusCompleted:
		status = r.palette.OK(status)
	case models.RunStatusFailed:
		status = r.palette.Err(status)
	default:
		status = r.palette.Warn(status)
	}

	dry := ""
	if run.DryRun() {
		dry = " (dry run)"
	}

	r.writePlain("#%d %s → %s %s%s\n", run.Sequence(), run.WorkspaceName(), run.ProjectID(), status, dry)
	r.writePlain("   users %d, subsystems %d, issues %d created, %d skipped, %s\n",
		run.UsersCreated(), run.SubsystemsCreated(), run.IssuesCreated(), run.IssuesSkipped(),
		run.Duration().Round(time.Millisecond))
	if msg := run.ErrorMessage(); msg != "" {
		r.writePlain("   %s\n", r.palette.Err(msg))
	}
}
