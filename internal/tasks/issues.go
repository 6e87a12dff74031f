package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/a2yt/internal/cache"
	"github.com/desertthunder/a2yt/internal/services"
	"github.com/desertthunder/a2yt/internal/shared"
)

// reporterPrefixes identify the system story whose author is taken as the issue reporter.
var reporterPrefixes = []string{"assigned ", "added to ", "added sub"}

// MigrateTasks imports each user's tasks that have no destination counterpart as issues.
//
// Users are processed in GID order. For each user the task details are fetched concurrently through the
// cache, the user's existing issues are merged by summary and by external ID, and the remaining tasks
// are imported in one bulk call. Sequence numbers continue from the highest number in the project.
func (m *Migrator) MigrateTasks(
	ctx context.Context,
	ws services.AsanaWorkspace,
	state *RunState,
	result *WorkspaceResult,
	progress chan<- ProgressUpdate,
) error {
	if state.ProjectExists {
		highest, err := m.ProjectMaxNumber(ctx, state.ProjectID)
		if err != nil {
			return err
		}
		state.Observe(highest)
	}

	users := state.SourceUsers()
	for i, user := range users {
		logger := shared.WithLogger(m.logger, "user", user.Name)

		compact, err := m.source.Tasks(ctx, ws.GID, user.GID)
		if err != nil {
			return fmt.Errorf("failed to list tasks for %s: %w", user.Name, err)
		}
		if len(compact) == 0 {
			continue
		}
		sendProgress(progress, fetchTasksUpdate(i+1, len(users), user.Name, len(compact)))

		tasks, err := m.fetchTasks(ctx, compact)
		if err != nil {
			return err
		}
		state.AddTasks(tasks)

		if login, ok := state.LoginFor(user.GID); ok && state.ProjectExists {
			issues, err := m.issues(ctx, state.ProjectID, "Assignee: "+login)
			if err != nil {
				return fmt.Errorf("failed to list issues for %s: %w", login, err)
			}
			state.AddIssues(issues)
		}

		var pending []services.AsanaTask
		skipped := 0
		for _, t := range tasks {
			if reason, ok := state.Migrated(t); ok {
				result.IssuesSkipped = append(result.IssuesSkipped, SkippedTask{TaskGID: t.GID, Summary: t.Name, Reason: reason})
				skipped++
				continue
			}
			pending = append(pending, t)
		}

		stories, err := m.fetchStories(ctx, pending)
		if err != nil {
			return err
		}

		var batch []services.NewIssue
		var created []CreatedIssue
		for j, t := range pending {
			// the same task may be listed under more than one assignee
			if reason, ok := state.Migrated(t); ok {
				result.IssuesSkipped = append(result.IssuesSkipped, SkippedTask{TaskGID: t.GID, Summary: t.Name, Reason: reason})
				skipped++
				continue
			}

			issue, err := m.BuildIssue(t, stories[j], state)
			if err != nil {
				return fmt.Errorf("failed to build issue for task %s: %w", t.GID, err)
			}
			state.MarkImported(t)

			batch = append(batch, issue)
			created = append(created, CreatedIssue{
				TaskGID:         t.GID,
				Summary:         issue.Summary,
				NumberInProject: issue.NumberInProject,
				Assignee:        issue.Assignee,
				Reporter:        issue.ReporterName,
				Subsystem:       issue.Subsystem,
				Comments:        len(issue.Comments),
			})
		}

		if len(batch) > 0 {
			if state.ProjectExists {
				if _, err := m.dest.ImportIssues(ctx, state.ProjectID, batch, m.opts.DryRun); err != nil {
					return fmt.Errorf("failed to import issues for %s: %w", user.Name, err)
				}
			}
			logger.Info("imported issues", "count", len(batch), "skipped", skipped, "dry_run", m.opts.DryRun)
		}

		result.IssuesCreated = append(result.IssuesCreated, created...)
		sendProgress(progress, importIssuesUpdate(i+1, len(users), user.Name, len(batch), skipped))
	}
	return nil
}

// BuildIssue converts a task and its activity entries into an issue to import, allocating the next
// sequence number from state.
//
// The assignee is left empty when the task has none or the assignee has no destination login. The
// reporter falls back to the assignee and then to the operator.
func (m *Migrator) BuildIssue(task services.AsanaTask, stories []services.AsanaStory, state *RunState) (services.NewIssue, error) {
	issue := services.NewIssue{
		Summary:      task.Name,
		Description:  task.Notes,
		State:        StateSubmitted,
		CustomFields: map[string]string{m.opts.ExternalIDField: task.GID},
	}
	if task.Completed {
		issue.State = StateFixed
	}

	if task.Assignee != nil {
		if login, ok := state.LoginFor(task.Assignee.GID); ok {
			issue.Assignee = login
		}
	}

	if task.DueOn != "" {
		due, err := shared.AsanaDateToMillis(task.DueOn)
		if err != nil {
			return issue, err
		}
		issue.CustomFields[m.opts.DueDateField] = due
	}

	var err error
	if issue.Created, err = millis(task.CreatedAt); err != nil {
		return issue, err
	}
	if issue.Updated, err = millis(task.ModifiedAt); err != nil {
		return issue, err
	}
	if task.Completed {
		if issue.Resolved, err = millis(task.CompletedAt); err != nil {
			return issue, err
		}
	}

	if len(task.Projects) > 0 {
		issue.Subsystem = task.Projects[0].Name
	}

	comments, reporter, err := m.classifyStories(stories, state)
	if err != nil {
		return issue, err
	}
	issue.Comments = comments

	switch {
	case reporter != "":
		issue.ReporterName = reporter
	case issue.Assignee != "":
		issue.ReporterName = issue.Assignee
	default:
		issue.ReporterName = m.dest.Login()
	}

	issue.NumberInProject = state.Next()
	return issue, nil
}

// classifyStories turns comment stories into issue comments and finds the reporter among system stories.
func (m *Migrator) classifyStories(stories []services.AsanaStory, state *RunState) ([]services.NewComment, string, error) {
	var comments []services.NewComment
	reporter := ""

	for _, s := range stories {
		switch s.Type {
		case services.StoryTypeComment:
			created, err := millis(s.CreatedAt)
			if err != nil {
				return nil, "", err
			}
			author := m.dest.Login()
			if s.CreatedBy != nil {
				if login, ok := state.LoginFor(s.CreatedBy.GID); ok {
					author = login
				}
			}
			comments = append(comments, services.NewComment{Author: author, Text: s.Text, Created: created})
		case services.StoryTypeSystem:
			if reporter != "" || s.CreatedBy == nil || !hasReporterPrefix(s.Text) {
				continue
			}
			if login, ok := state.LoginFor(s.CreatedBy.GID); ok {
				reporter = login
			}
		}
	}
	return comments, reporter, nil
}

func hasReporterPrefix(text string) bool {
	for _, p := range reporterPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// millis converts an optional timestamp; empty input stays empty.
func millis(ts string) (string, error) {
	if ts == "" {
		return "", nil
	}
	return shared.AsanaTimeToMillis(ts)
}

// ProjectMaxNumber returns the highest numberInProject of any issue in the project.
func (m *Migrator) ProjectMaxNumber(ctx context.Context, projectID string) (int, error) {
	issues, err := m.issues(ctx, projectID, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list issues of %s: %w", projectID, err)
	}

	highest := 0
	for _, issue := range issues {
		highest = max(highest, issue.NumberInProject())
	}
	return highest, nil
}

// issues pages through every issue matching filter.
func (m *Migrator) issues(ctx context.Context, projectID, filter string) ([]services.YouTrackIssue, error) {
	var all []services.YouTrackIssue
	for after := 0; ; after += m.opts.IssuePageSize {
		page, err := m.dest.Issues(ctx, projectID, filter, after, m.opts.IssuePageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < m.opts.IssuePageSize {
			return all, nil
		}
	}
}

// fetchTasks retrieves full task records through the cache, preserving order.
func (m *Migrator) fetchTasks(ctx context.Context, compact []services.AsanaTask) ([]services.AsanaTask, error) {
	tasks := make([]services.AsanaTask, len(compact))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, c := range compact {
		g.Go(func() error {
			data, err := m.cache.GetOrFetch(gctx, cache.KindTask, c.GID, func(ctx context.Context) ([]byte, error) {
				return m.source.TaskRaw(ctx, c.GID)
			})
			if err != nil {
				return fmt.Errorf("failed to fetch task %s: %w", c.GID, err)
			}
			if err := json.Unmarshal(data, &tasks[i]); err != nil {
				return fmt.Errorf("failed to decode task %s: %w", c.GID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// fetchStories retrieves the full activity entries of each task through the cache, preserving order.
func (m *Migrator) fetchStories(ctx context.Context, tasks []services.AsanaTask) ([][]services.AsanaStory, error) {
	stories := make([][]services.AsanaStory, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, t := range tasks {
		g.Go(func() error {
			s, err := m.taskStories(gctx, t.GID)
			if err != nil {
				return err
			}
			stories[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stories, nil
}

func (m *Migrator) taskStories(ctx context.Context, taskGID string) ([]services.AsanaStory, error) {
	data, err := m.cache.GetOrFetch(ctx, cache.KindTaskStories, taskGID, func(ctx context.Context) ([]byte, error) {
		return m.source.TaskStoriesRaw(ctx, taskGID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stories of task %s: %w", taskGID, err)
	}

	var compact []services.AsanaStory
	if err := json.Unmarshal(data, &compact); err != nil {
		return nil, fmt.Errorf("failed to decode stories of task %s: %w", taskGID, err)
	}

	stories := make([]services.AsanaStory, 0, len(compact))
	for _, c := range compact {
		data, err := m.cache.GetOrFetch(ctx, cache.KindStory, c.GID, func(ctx context.Context) ([]byte, error) {
			return m.source.StoryRaw(ctx, c.GID)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch story %s: %w", c.GID, err)
		}

		var s services.AsanaStory
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode story %s: %w", c.GID, err)
		}
		stories = append(stories, s)
	}
	return stories, nil
}
