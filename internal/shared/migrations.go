package shared

import (
	"cmp"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration is one versioned schema change with its up and down scripts.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// migrationFile matches names like 0000_create_tables_up.sql.
var migrationFile = regexp.MustCompile(`^(\d+)_(\w+?)_(up|down)\.sql$`)

const (
	createMigrationsTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	recordMigration = `INSERT INTO schema_migrations (version) VALUES (?)`
	removeMigration = `DELETE FROM schema_migrations WHERE version = ?`
)

// loadMigrations reads the embedded scripts and returns them sorted by version.
// Files that do not match the naming scheme are ignored; a version missing either script is an error.
func loadMigrations() ([]Migration, error) {
	paths, err := fs.Glob(migrationFiles, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, path := range paths {
		match := migrationFile.FindStringSubmatch(strings.TrimPrefix(path, "sql/"))
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		content, err := migrationFiles.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", path, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: match[2]}
			byVersion[version] = m
		}
		if match[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("incomplete migration for version %d", m.Version)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

// RunMigrations applies every migration not yet recorded in schema_migrations, in version order,
// and returns the versions it applied. Each migration runs in its own transaction.
func RunMigrations(db *sql.DB, logger *log.Logger) ([]int, error) {
	if logger == nil {
		logger = DiscardLogger()
	}

	migrations, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	done, err := appliedVersions(db)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		if err := execMigration(db, m.Up, recordMigration, m.Version); err != nil {
			return applied, fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}
		logger.Info("applied migration", "version", m.Version, "name", m.Name)
		applied = append(applied, m.Version)
	}

	if len(applied) == 0 {
		logger.Debug("database schema is up to date", "migrations", len(migrations))
	}
	return applied, nil
}

// RollbackMigration reverts the most recently applied migration and returns it.
// It fails with [ErrNothingToRollback] when no migration is recorded.
func RollbackMigration(db *sql.DB, logger *log.Logger) (Migration, error) {
	if logger == nil {
		logger = DiscardLogger()
	}

	migrations, err := loadMigrations()
	if err != nil {
		return Migration{}, fmt.Errorf("failed to load migrations: %w", err)
	}

	current, ok, err := CurrentVersion(db)
	if err != nil {
		return Migration{}, err
	}
	if !ok {
		return Migration{}, ErrNothingToRollback
	}

	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == current })
	if i < 0 {
		return Migration{}, fmt.Errorf("%w: migration version %d", ErrNotFound, current)
	}

	m := migrations[i]
	if err := execMigration(db, m.Down, removeMigration, m.Version); err != nil {
		return Migration{}, fmt.Errorf("failed to rollback migration %d: %w", m.Version, err)
	}
	logger.Info("rolled back migration", "version", m.Version, "name", m.Name)
	return m, nil
}

// CurrentVersion returns the highest applied migration version. ok is false on a fresh database.
func CurrentVersion(db *sql.DB) (version int, ok bool, err error) {
	if _, err := db.Exec(createMigrationsTable); err != nil {
		return 0, false, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}
	return int(v.Int64), v.Valid, nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	if _, err := db.Exec(createMigrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to check migration status: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

// execMigration runs script and the bookkeeping statement in one transaction.
func execMigration(db *sql.DB, script, bookkeeping string, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(script) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}

	if _, err := tx.Exec(bookkeeping, version); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements strips "--" comments and splits a script on semicolons, dropping empty statements.
func splitStatements(script string) []string {
	var b strings.Builder
	for line := range strings.Lines(script) {
		if i := strings.Index(line, "--"); i >= 0 {
			line = line[:i] + "\n"
		}
		b.WriteString(line)
	}

	var statements []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
