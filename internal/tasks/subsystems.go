package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/a2yt/internal/services"
)

// MigrateSubsystems creates a non-default subsystem for every source project whose name is not yet a
// subsystem of the destination project.
//
// Archived projects are listed before active ones. The subsystem's default assignee is the project
// owner's destination login; an owner that cannot be resolved leaves it unset.
func (m *Migrator) MigrateSubsystems(ctx context.Context, ws services.AsanaWorkspace, state *RunState) ([]services.YouTrackSubsystem, error) {
	var compact []services.AsanaProject
	for _, archived := range []bool{true, false} {
		projects, err := m.source.Projects(ctx, ws.GID, archived)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects (archived=%t): %w", archived, err)
		}
		compact = append(compact, projects...)
	}

	projects := make([]services.AsanaProject, 0, len(compact))
	for _, p := range compact {
		full, err := m.source.Project(ctx, p.GID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch project %s: %w", p.GID, err)
		}
		projects = append(projects, *full)
	}
	state.Subsystems.MergeSource(projects, projectName)

	if state.ProjectExists {
		names, err := m.dest.Subsystems(ctx, state.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to list subsystems of %s: %w", state.ProjectID, err)
		}

		existing := make([]services.YouTrackSubsystem, 0, len(names))
		for _, n := range names {
			sub, err := m.dest.Subsystem(ctx, state.ProjectID, n.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch subsystem %s: %w", n.Name, err)
			}
			if sub != nil {
				existing = append(existing, *sub)
			}
		}
		state.Subsystems.MergeDest(existing, subsystemName)
	}

	var created []services.YouTrackSubsystem
	for _, name := range state.Subsystems.SourceOnly() {
		src := state.Subsystems.Source(name)
		sub := services.YouTrackSubsystem{Name: name}

		if src.Owner != nil {
			if login, ok := state.LoginFor(src.Owner.GID); ok {
				sub.DefaultAssignee = login
			} else {
				m.logger.Warn("subsystem owner has no YouTrack login", "subsystem", name, "owner", src.Owner.GID)
			}
		}

		if m.opts.DryRun {
			m.logger.Info("dry run: would create subsystem", "subsystem", name, "assignee", sub.DefaultAssignee)
		} else {
			if err := m.dest.CreateSubsystem(ctx, state.ProjectID, sub); err != nil {
				return nil, fmt.Errorf("failed to create subsystem %s: %w", name, err)
			}
			m.logger.Info("created subsystem", "subsystem", name, "assignee", sub.DefaultAssignee)
		}

		state.Subsystems.MergeDest([]services.YouTrackSubsystem{sub}, subsystemName)
		created = append(created, sub)
	}
	return created, nil
}
