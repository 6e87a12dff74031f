package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/a2yt/internal/cache"
	"github.com/desertthunder/a2yt/internal/models"
	"github.com/desertthunder/a2yt/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// every connection to :memory: is a separate database
	shared.ConfigureDatabase(db, 1, 1)

	if _, err := shared.RunMigrations(db, nil); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "migration_runs")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without a sequence")
	}
}

func TestRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewMigrationRun(0, "ws1", "Acme", "ACME", false)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Create Validation Error", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewMigrationRun(0, "", "Acme", "ACME", false)

		if err := repo.Create(run); err == nil {
			t.Fatal("expected validation error for empty workspace gid")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewMigrationRun(0, "ws1", "Acme", "ACME", true)
		run.Start()

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		retrieved, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}

		if retrieved.WorkspaceName() != "Acme" || retrieved.ProjectID() != "ACME" {
			t.Errorf("unexpected run %s/%s", retrieved.WorkspaceName(), retrieved.ProjectID())
		}
		if !retrieved.DryRun() {
			t.Error("expected dry run flag to round-trip")
		}
		if retrieved.Status() != models.RunStatusRunning {
			t.Errorf("expected running status, got %s", retrieved.Status())
		}
		if retrieved.StartedAt() == nil {
			t.Error("expected started_at to be set")
		}
		if retrieved.CompletedAt() != nil {
			t.Error("expected completed_at to be empty")
		}
	})

	t.Run("Get Not Found", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, err := NewRunRepository(db).Get("nonexistent-id")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewMigrationRun(0, "ws1", "Acme", "ACME", false)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Start()
		run.SetUsersCreated(2)
		run.SetSubsystemsCreated(1)
		run.SetIssuesCreated(5)
		run.SetIssuesSkipped(3)
		run.Fail(fmt.Errorf("import rejected"))

		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		retrieved, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}

		if retrieved.Status() != models.RunStatusFailed {
			t.Errorf("expected failed status, got %s", retrieved.Status())
		}
		if retrieved.ErrorMessage() != "import rejected" {
			t.Errorf("expected error message, got %q", retrieved.ErrorMessage())
		}
		if retrieved.IssuesCreated() != 5 || retrieved.IssuesSkipped() != 3 || retrieved.UsersCreated() != 2 {
			t.Errorf("counts did not round-trip")
		}
		if retrieved.Duration() < 0 {
			t.Errorf("expected non-negative duration, got %v", retrieved.Duration())
		}
	})

	t.Run("Update Not Found", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		run := models.NewMigrationRun(0, "ws1", "Acme", "ACME", false)
		run.SetID("missing")
		if err := NewRunRepository(db).Update(run); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewMigrationRun(0, "ws1", "Acme", "ACME", false)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}

		if _, err := repo.Get(run.ID()); err == nil {
			t.Error("expected error when getting deleted run")
		}

		if err := repo.Delete(run.ID()); err == nil {
			t.Error("expected error when deleting twice")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		runs := []*models.MigrationRun{
			models.NewMigrationRun(0, "ws1", "Acme", "ACME", false),
			models.NewMigrationRun(0, "ws2", "Beta", "BETA", false),
			models.NewMigrationRun(0, "ws1", "Acme", "ACME", false),
		}
		runs[2].Complete()

		for _, run := range runs {
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(all))
		}
		if all[0].Sequence() != 3 {
			t.Errorf("expected newest run first, got sequence %d", all[0].Sequence())
		}

		byWorkspace, err := repo.List(map[string]any{"workspace_gid": "ws1"})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(byWorkspace) != 2 {
			t.Errorf("expected 2 runs for ws1, got %d", len(byWorkspace))
		}

		completed, err := repo.List(map[string]any{"status": models.RunStatusCompleted})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(completed) != 1 {
			t.Errorf("expected 1 completed run, got %d", len(completed))
		}

		limited, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 runs with limit, got %d", len(limited))
		}
	})
}

func TestCacheRepository(t *testing.T) {
	t.Run("Load Miss", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, err := NewCacheRepository(db).Load(cache.KindTask, "1")
		if !errors.Is(err, cache.ErrMiss) {
			t.Fatalf("expected ErrMiss, got %v", err)
		}
	})

	t.Run("Save And Load", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		stored := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
		repo := NewCacheRepository(db)
		repo.now = func() time.Time { return stored }

		if err := repo.Save(cache.KindTask, "1", []byte(`{"gid":"1"}`)); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		entry, err := repo.Load(cache.KindTask, "1")
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if string(entry.Data) != `{"gid":"1"}` {
			t.Errorf("unexpected payload %s", entry.Data)
		}
		if !entry.StoredAt.Equal(stored) {
			t.Errorf("expected stored_at %v, got %v", stored, entry.StoredAt)
		}

		if _, err := repo.Load(cache.KindStory, "1"); !errors.Is(err, cache.ErrMiss) {
			t.Errorf("kinds should not collide, got %v", err)
		}
	})

	t.Run("Save Replaces", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCacheRepository(db)
		if err := repo.Save(cache.KindTask, "1", []byte(`{"v":1}`)); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := repo.Save(cache.KindTask, "1", []byte(`{"v":2}`)); err != nil {
			t.Fatalf("failed to save again: %v", err)
		}

		entry, err := repo.Load(cache.KindTask, "1")
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if string(entry.Data) != `{"v":2}` {
			t.Errorf("expected replaced payload, got %s", entry.Data)
		}

		n, err := repo.Count()
		if err != nil || n != 1 {
			t.Errorf("expected 1 entry, got %d (%v)", n, err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCacheRepository(db)
		for _, id := range []string{"1", "2", "3"} {
			if err := repo.Save(cache.KindStory, id, []byte(`{}`)); err != nil {
				t.Fatalf("failed to save: %v", err)
			}
		}

		if err := repo.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		n, err := repo.Count()
		if err != nil || n != 0 {
			t.Errorf("expected empty cache, got %d (%v)", n, err)
		}
	})

	t.Run("Backs A Cache", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		c := cache.New(NewCacheRepository(db), nil, nil)
		calls := 0
		fetch := func() ([]byte, error) {
			calls++
			return []byte(`{"gid":"7"}`), nil
		}

		for range 2 {
			if _, err := c.GetOrFetch(t.Context(), cache.KindTask, "7", func(_ context.Context) ([]byte, error) { return fetch() }); err != nil {
				t.Fatalf("GetOrFetch failed: %v", err)
			}
		}
		if calls != 1 {
			t.Errorf("expected 1 fetch, got %d", calls)
		}
	})
}
