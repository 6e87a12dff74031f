package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/a2yt/internal/services"
	"github.com/desertthunder/a2yt/internal/shared"
)

// EnsureProject returns the destination project for a workspace, creating it when absent.
//
// Without an override the project is matched by name; a created project's short name is the workspace
// name upper-cased with spaces removed and its lead is the operator. In dry-run mode nothing is created
// and the returned project only describes what would have been.
func (m *Migrator) EnsureProject(ctx context.Context, ws services.AsanaWorkspace) (*services.YouTrackProject, bool, error) {
	if id := m.opts.ProjectOverride; id != "" {
		project, err := m.dest.Project(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up project %s: %w", id, err)
		}
		if project != nil {
			if project.ShortName == "" && project.ID == "" {
				project.ShortName = id
			}
			return project, false, nil
		}
		return m.createProject(ctx, services.YouTrackProject{ShortName: id, Name: ws.Name})
	}

	projects, err := m.dest.Projects(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list projects: %w", err)
	}
	for _, p := range projects {
		if p.Name == ws.Name {
			return &p, false, nil
		}
	}

	return m.createProject(ctx, services.YouTrackProject{ShortName: shared.ProjectIDFromName(ws.Name), Name: ws.Name})
}

func (m *Migrator) createProject(ctx context.Context, project services.YouTrackProject) (*services.YouTrackProject, bool, error) {
	project.Lead = m.dest.Login()
	project.Description = fmt.Sprintf("Migrated from Asana workspace %s", project.Name)

	if m.opts.DryRun {
		m.logger.Info("dry run: would create project", "project", project.ShortName, "lead", project.Lead)
		return &project, true, nil
	}

	if err := m.dest.CreateProject(ctx, project); err != nil {
		return nil, false, fmt.Errorf("failed to create project %s: %w", project.ShortName, err)
	}
	m.logger.Info("created project", "project", project.ShortName, "lead", project.Lead)
	return &project, true, nil
}

// EnsureCustomFields makes sure the external-ID field exists globally and that it and the due-date field
// are attached to the project.
func (m *Migrator) EnsureCustomFields(ctx context.Context, projectID string) error {
	name := m.opts.ExternalIDField

	field, err := m.dest.CustomField(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to look up custom field %s: %w", name, err)
	}
	if field == nil {
		if m.opts.DryRun {
			m.logger.Info("dry run: would create custom field", "field", name)
		} else {
			proto := services.YouTrackCustomField{Name: name, Type: "string", IsPrivate: false, VisibleByDefault: false}
			if err := m.dest.CreateCustomField(ctx, proto); err != nil {
				return fmt.Errorf("failed to create custom field %s: %w", name, err)
			}
			m.logger.Info("created custom field", "field", name)
		}
	}

	for _, fieldName := range []string{m.opts.DueDateField, name} {
		pf, err := m.dest.ProjectCustomField(ctx, projectID, fieldName)
		if err != nil {
			return fmt.Errorf("failed to look up project field %s: %w", fieldName, err)
		}
		if pf != nil {
			continue
		}
		if m.opts.DryRun {
			m.logger.Info("dry run: would attach field", "project", projectID, "field", fieldName)
			continue
		}
		if err := m.dest.CreateProjectCustomField(ctx, projectID, fieldName, ""); err != nil {
			return fmt.Errorf("failed to attach field %s to %s: %w", fieldName, projectID, err)
		}
		m.logger.Info("attached field", "project", projectID, "field", fieldName)
	}
	return nil
}
