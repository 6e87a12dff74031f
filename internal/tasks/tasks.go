package tasks

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/a2yt/internal/cache"
	"github.com/desertthunder/a2yt/internal/models"
	"github.com/desertthunder/a2yt/internal/services"
	"github.com/desertthunder/a2yt/internal/shared"
)

const (
	DefaultExternalIDField = "AsanaID"
	DefaultDueDateField    = "Due Date"
	DefaultIssuePageSize   = 1000
	DefaultWorkers         = 4

	StateFixed     = "Fixed"
	StateSubmitted = "Submitted"

	SkipSummary    = "summary"
	SkipExternalID = "external_id"
)

// RunRecorder persists migration run history. Implemented by repositories.RunRepository.
type RunRecorder interface {
	Create(run *models.MigrationRun) error
	Update(run *models.MigrationRun) error
}

// MigratorOpts configures a [Migrator].
type MigratorOpts struct {
	Source services.Source
	Dest   services.Destination
	Cache  *cache.Cache // Required; holds raw task and story payloads
	Runs   RunRecorder  // Optional run history
	Logger *log.Logger

	ExternalIDField   string   // Custom field holding the source task GID (default: AsanaID)
	DueDateField      string   // Custom field receiving due_on (default: Due Date)
	IssuePageSize     int      // Page size for destination issue queries (default: 1000)
	Workers           int      // Concurrent detail fetches (default: 4)
	DryRun            bool     // Validate imports without writing
	ProjectOverride   string   // Destination project short name to use for every workspace
	Workspace         string   // Only migrate the workspace with this name or GID
	ExcludeWorkspaces []string // Workspace names never migrated
}

// CreatedIssue describes an issue built from a source task.
type CreatedIssue struct {
	TaskGID         string `json:"task_gid"`
	Summary         string `json:"summary"`
	NumberInProject int    `json:"number_in_project"`
	Assignee        string `json:"assignee"`
	Reporter        string `json:"reporter"`
	Subsystem       string `json:"subsystem,omitempty"`
	Comments        int    `json:"comments"`
}

// SkippedTask describes a source task that already had a destination counterpart.
type SkippedTask struct {
	TaskGID string `json:"task_gid"`
	Summary string `json:"summary"`
	Reason  string `json:"reason"`
}

// WorkspaceResult contains everything created or skipped for one workspace.
type WorkspaceResult struct {
	Workspace         services.AsanaWorkspace      `json:"workspace"`
	ProjectID         string                       `json:"project_id"`
	ProjectCreated    bool                         `json:"project_created"`
	DryRun            bool                         `json:"dry_run"`
	UsersCreated      []services.YouTrackUser      `json:"users_created"`
	SubsystemsCreated []services.YouTrackSubsystem `json:"subsystems_created"`
	IssuesCreated     []CreatedIssue               `json:"issues_created"`
	IssuesSkipped     []SkippedTask                `json:"issues_skipped"`
	StartedAt         time.Time                    `json:"started_at"`
	CompletedAt       time.Time                    `json:"completed_at"`
}

// RunResult contains the results of a full migration.
type RunResult struct {
	Workspaces []*WorkspaceResult `json:"workspaces"`
	Cache      cache.Stats        `json:"cache"`
}

// Migrator migrates source workspaces into destination projects.
type Migrator struct {
	source services.Source
	dest   services.Destination
	cache  *cache.Cache
	runs   RunRecorder
	logger *log.Logger
	opts   MigratorOpts
}

// NewMigrator creates a Migrator, filling in defaults for unset options.
func NewMigrator(opts MigratorOpts) (*Migrator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: source service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Dest == nil {
		return nil, fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("%w: cache", shared.ErrMissingConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.ExternalIDField == "" {
		opts.ExternalIDField = DefaultExternalIDField
	}
	if opts.DueDateField == "" {
		opts.DueDateField = DefaultDueDateField
	}
	if opts.IssuePageSize <= 0 {
		opts.IssuePageSize = DefaultIssuePageSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	return &Migrator{
		source: opts.Source,
		dest:   opts.Dest,
		cache:  opts.Cache,
		runs:   opts.Runs,
		logger: opts.Logger,
		opts:   opts,
	}, nil
}

// Workspaces lists the source workspaces selected for migration.
//
// Excluded workspaces are dropped unless explicitly selected with [MigratorOpts.Workspace].
func (m *Migrator) Workspaces(ctx context.Context) ([]services.AsanaWorkspace, error) {
	all, err := m.source.Workspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	var selected []services.AsanaWorkspace
	for _, ws := range all {
		if m.opts.Workspace != "" {
			if ws.Name == m.opts.Workspace || ws.GID == m.opts.Workspace {
				selected = append(selected, ws)
			}
			continue
		}
		if slices.Contains(m.opts.ExcludeWorkspaces, ws.Name) {
			m.logger.Info("skipping excluded workspace", "workspace", ws.Name)
			continue
		}
		selected = append(selected, ws)
	}

	if m.opts.Workspace != "" && len(selected) == 0 {
		return nil, fmt.Errorf("%w: workspace %q", shared.ErrNotFound, m.opts.Workspace)
	}
	return selected, nil
}

// Run migrates every selected workspace in order. It stops at the first failure and returns the results
// gathered so far alongside the error.
func (m *Migrator) Run(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	me, err := m.source.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Asana: %w", err)
	}
	m.logger.Info("authenticated", "asana", me.Email, "youtrack", m.dest.Login())

	workspaces, err := m.Workspaces(ctx)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, workspacesUpdate(len(workspaces)))

	result := &RunResult{}
	for i, ws := range workspaces {
		res, err := m.MigrateWorkspace(ctx, ws, i+1, len(workspaces), progress)
		if res != nil {
			result.Workspaces = append(result.Workspaces, res)
		}
		result.Cache = m.cache.Stats()
		if err != nil {
			return result, fmt.Errorf("workspace %s: %w", ws.Name, err)
		}
	}
	return result, nil
}

// MigrateWorkspace resolves the destination project for a workspace and runs the user, subsystem and
// task migrators against it.
func (m *Migrator) MigrateWorkspace(
	ctx context.Context,
	ws services.AsanaWorkspace,
	step, total int,
	progress chan<- ProgressUpdate,
) (*WorkspaceResult, error) {
	logger := shared.WithLogger(m.logger, "workspace", ws.Name)
	result := &WorkspaceResult{Workspace: ws, DryRun: m.opts.DryRun, StartedAt: time.Now()}

	run := models.NewMigrationRun(0, ws.GID, ws.Name, "", m.opts.DryRun)
	run.Start()
	m.record(run, true)

	err := m.migrateWorkspace(ctx, ws, result, logger, step, total, progress)

	result.CompletedAt = time.Now()
	run.SetProjectID(result.ProjectID)
	run.SetUsersCreated(len(result.UsersCreated))
	run.SetSubsystemsCreated(len(result.SubsystemsCreated))
	run.SetIssuesCreated(len(result.IssuesCreated))
	run.SetIssuesSkipped(len(result.IssuesSkipped))
	if err != nil {
		run.Fail(err)
	} else {
		run.Complete()
		sendProgress(progress, finishedUpdate(result))
	}
	m.record(run, false)

	return result, err
}

func (m *Migrator) migrateWorkspace(
	ctx context.Context,
	ws services.AsanaWorkspace,
	result *WorkspaceResult,
	logger *log.Logger,
	step, total int,
	progress chan<- ProgressUpdate,
) error {
	project, created, err := m.EnsureProject(ctx, ws)
	if err != nil {
		return err
	}
	result.ProjectID = project.Key()
	result.ProjectCreated = created
	sendProgress(progress, projectUpdate(step, total, ws.Name, result.ProjectID, created))

	state := NewRunState(result.ProjectID, m.opts.ExternalIDField, logger)
	state.ProjectExists = !(created && m.opts.DryRun)

	if state.ProjectExists {
		if err := m.EnsureCustomFields(ctx, result.ProjectID); err != nil {
			return err
		}
	}

	users, err := m.MigrateUsers(ctx, ws, state)
	if err != nil {
		return err
	}
	result.UsersCreated = users
	sendProgress(progress, usersUpdate(len(state.SourceUsers()), len(users)))

	subsystems, err := m.MigrateSubsystems(ctx, ws, state)
	if err != nil {
		return err
	}
	result.SubsystemsCreated = subsystems
	sendProgress(progress, subsystemsUpdate(state.Subsystems.Len(), len(subsystems)))

	return m.MigrateTasks(ctx, ws, state, result, progress)
}

// record writes run history. Failures are logged and never abort a migration.
func (m *Migrator) record(run *models.MigrationRun, create bool) {
	if m.runs == nil {
		return
	}

	var err error
	if create {
		err = m.runs.Create(run)
	} else {
		err = m.runs.Update(run)
	}
	if err != nil {
		m.logger.Warn("failed to record migration run", "workspace", run.WorkspaceName(), "error", err)
	}
}
