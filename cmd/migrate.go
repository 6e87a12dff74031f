package main

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/a2yt/internal/formatter"
	"github.com/desertthunder/a2yt/internal/repositories"
	"github.com/desertthunder/a2yt/internal/shared"
	"github.com/desertthunder/a2yt/internal/tasks"
)

// newMigrator connects both services and builds a Migrator backed by the configured cache and run history.
// The returned func closes the database.
func (r *Runner) newMigrator(ctx context.Context, cmd *cli.Command, refresh bool) (*tasks.Migrator, func(), error) {
	if r.source == nil || r.dest == nil {
		if err := r.config.Validate(); err != nil {
			return nil, nil, err
		}
	}

	source, err := r.connectSource()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Asana client: %w", err)
	}
	dest, err := r.connectDest(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to YouTrack: %w", err)
	}

	db, err := r.openDatabase()
	if err != nil {
		return nil, nil, err
	}

	c, err := r.openCache(db, refresh)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	m, err := tasks.NewMigrator(tasks.MigratorOpts{
		Source:            source,
		Dest:              dest,
		Cache:             c,
		Runs:              repositories.NewRunRepository(db),
		Logger:            r.logger,
		ExternalIDField:   r.config.Migration.ExternalIDField,
		DueDateField:      r.config.Migration.DueDateField,
		IssuePageSize:     r.config.Migration.IssuePageSize,
		Workers:           r.config.Migration.Workers,
		DryRun:            r.config.Migration.DryRun,
		ProjectOverride:   r.config.YouTrack.Project,
		Workspace:         cmd.String("workspace"),
		ExcludeWorkspaces: r.config.Asana.ExcludeWorkspaces,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return m, func() { db.Close() }, nil
}

// Migrate runs the full migration for every selected workspace.
//
// A summary is always printed. When --report is set the result is also written to a file.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("report-format"))
	if err != nil {
		return err
	}

	m, closeFn, err := r.newMigrator(ctx, cmd, cmd.Bool("refresh"))
	if err != nil {
		return err
	}
	defer closeFn()

	if r.config.Migration.DryRun {
		r.writePlain("%s\n", r.palette.Warn("Dry run: nothing will be written to YouTrack"))
	}

	progress := make(chan tasks.ProgressUpdate, 32)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.printProgress(update)
		}
	}()

	result, runErr := m.Run(ctx, progress)
	close(progress)
	wg.Wait()

	if result != nil {
		r.writePlainHeader("Migration Summary")
		if err := formatter.Write(r.output, result, formatter.FormatText); err != nil {
			return err
		}

		if cmd.IsSet("report") || cmd.IsSet("report-format") {
			path, err := formatter.WriteReport(result, format, cmd.String("report"))
			if err != nil {
				return err
			}
			r.logger.Info("report written", "path", path, "format", format)
			r.writePlainln("Report saved to %s", path)
		}
	}

	if runErr != nil {
		r.writePlain("%s %v\n", r.palette.Err("✗"), runErr)
		return runErr
	}
	r.writePlain("%s Migration complete\n", r.palette.OK("✓"))
	return nil
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Finished:
		r.writePlain("%s %s\n", r.palette.OK("✓"), update.Message)
	case tasks.FetchWorkspaces:
		r.writePlain("%s\n", r.palette.Help(update.Message))
	default:
		step := fmt.Sprintf("[%d/%d]", update.Step, update.Total)
		r.writePlain("  %s %s\n", r.palette.Help(step), update.Message)
	}
	r.logger.Debug("progress", "phase", update.Phase, "step", update.Step, "total", update.Total)
}

// Workspaces lists source workspaces and marks the ones the migration would skip.
func (r *Runner) Workspaces(ctx context.Context, cmd *cli.Command) error {
	if r.source == nil && r.config.Asana.Token == "" {
		return fmt.Errorf("%w: asana token", shared.ErrMissingCredentials)
	}

	source, err := r.connectSource()
	if err != nil {
		return fmt.Errorf("failed to create Asana client: %w", err)
	}

	all, err := source.Workspaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workspaces: %w", err)
	}

	type row struct {
		GID      string `json:"gid"`
		Name     string `json:"name"`
		Excluded bool   `json:"excluded"`
	}

	rows := make([]row, 0, len(all))
	for _, ws := range all {
		rows = append(rows, row{
			GID:      ws.GID,
			Name:     ws.Name,
			Excluded: slices.Contains(r.config.Asana.ExcludeWorkspaces, ws.Name),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	r.writePlainHeader(fmt.Sprintf("Workspaces (%d)", len(rows)))
	for _, row := range rows {
		if row.Excluded {
			r.writePlain("  %s %s %s\n", row.GID, row.Name, r.palette.Warn("(excluded)"))
			continue
		}
		r.writePlain("  %s %s\n", row.GID, row.Name)
	}
	return nil
}
