package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/a2yt/internal/models"
	"github.com/desertthunder/a2yt/internal/shared"
)

// RunRepository implements models.Repository[*models.MigrationRun] for run history.
//
// Handles run CRUD operations with soft delete support and status-based queries.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

var _ models.Repository[*models.MigrationRun] = (*RunRepository)(nil)

const runColumns = `
	id, sequence, workspace_gid, workspace_name, project_id, status, dry_run,
	users_created, subsystems_created, issues_created, issues_skipped,
	error_message, started_at, completed_at, created_at, updated_at, deleted_at
`

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.MigrationRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "migration_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO migration_runs (
			id, sequence, workspace_gid, workspace_name, project_id, status, dry_run,
			users_created, subsystems_created, issues_created, issues_skipped,
			error_message, started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.WorkspaceGID(),
		run.WorkspaceName(),
		run.ProjectID(),
		run.Status(),
		run.DryRun(),
		run.UsersCreated(),
		run.SubsystemsCreated(),
		run.IssuesCreated(),
		run.IssuesSkipped(),
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.MigrationRun, error) {
	query := `SELECT ` + runColumns + ` FROM migration_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: run %s", shared.ErrNotFound, id)
	}
	return run, err
}

// Update modifies an existing run in the database
func (r *RunRepository) Update(run *models.MigrationRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE migration_runs
		SET project_id = ?, status = ?, users_created = ?, subsystems_created = ?,
			issues_created = ?, issues_skipped = ?, error_message = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.ProjectID(),
		run.Status(),
		run.UsersCreated(),
		run.SubsystemsCreated(),
		run.IssuesCreated(),
		run.IssuesSkipped(),
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run not found or already deleted: %s", shared.ErrNotFound, run.ID())
	}

	return nil
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	query := `UPDATE migration_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run not found or already deleted: %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "status" (string), "workspace_gid" (string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.MigrationRun, error) {
	query := `SELECT ` + runColumns + ` FROM migration_runs WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if workspace, ok := criteria["workspace_gid"].(string); ok && workspace != "" {
		query += " AND workspace_gid = ?"
		args = append(args, workspace)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.MigrationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row from [sql.Row] or [sql.Rows] into a [models.MigrationRun]
func scanRun(row scanner) (*models.MigrationRun, error) {
	var (
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
		errorMessage      sql.NullString
		startedAt         sql.NullTime
		completedAt       sql.NullTime
		createdAt         time.Time
		updatedAt         time.Time
		deletedAt         sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &workspaceGID, &workspaceName, &projectID, &status, &dryRun,
		&usersCreated, &subsystemsCreated, &issuesCreated, &issuesSkipped,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewMigrationRun(sequence, workspaceGID, workspaceName, projectID, dryRun)
	run.SetID(id)
	run.SetStatus(status)
	run.SetUsersCreated(usersCreated)
	run.SetSubsystemsCreated(subsystemsCreated)
	run.SetIssuesCreated(issuesCreated)
	run.SetIssuesSkipped(issuesSkipped)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)

	if errorMessage.Valid {
		run.SetErrorMessage(errorMessage.String)
	}
	if startedAt.Valid {
		run.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
