package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/a2yt/internal/services"
	"github.com/desertthunder/a2yt/internal/shared"
)

// MigrateUsers creates destination accounts for workspace members whose email has no destination user.
//
// Logins are the member's display name with whitespace removed. Members without an email are skipped.
// Created (or, in dry-run mode, planned) users are merged into the state so later lookups resolve them.
func (m *Migrator) MigrateUsers(ctx context.Context, ws services.AsanaWorkspace, state *RunState) ([]services.YouTrackUser, error) {
	members, err := m.source.WorkspaceUsers(ctx, ws.GID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace users: %w", err)
	}

	profiles := make([]services.AsanaUser, 0, len(members))
	for _, member := range members {
		u, err := m.source.User(ctx, member.GID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch user %s: %w", member.GID, err)
		}
		if u.Email == "" {
			m.logger.Warn("skipping user without email", "user", u.Name, "gid", u.GID)
			continue
		}
		profiles = append(profiles, *u)
	}
	state.AddSourceUsers(profiles)

	logins, err := m.dest.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list YouTrack users: %w", err)
	}

	existing := make([]services.YouTrackUser, 0, len(logins))
	for _, l := range logins {
		u, err := m.dest.User(ctx, l.Login)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch YouTrack user %s: %w", l.Login, err)
		}
		if u != nil {
			existing = append(existing, *u)
		}
	}
	state.AddDestUsers(existing)

	emails := state.Users.SourceOnly()
	if len(emails) == 0 {
		m.logger.Info("no new users", "workspace", ws.Name)
		return nil, nil
	}

	created := make([]services.YouTrackUser, 0, len(emails))
	for _, email := range emails {
		src := state.Users.Source(email)
		created = append(created, services.YouTrackUser{
			Login:    shared.LoginFromName(src.Name),
			FullName: src.Name,
			Email:    email,
		})
	}

	if m.opts.DryRun {
		for _, u := range created {
			m.logger.Info("dry run: would create user", "login", u.Login, "email", u.Email)
		}
	} else {
		if err := m.dest.ImportUsers(ctx, created); err != nil {
			return nil, fmt.Errorf("failed to import users: %w", err)
		}
		m.logger.Info("imported users", "count", len(created))
	}

	state.AddDestUsers(created)
	return created, nil
}
