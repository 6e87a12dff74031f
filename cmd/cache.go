package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/a2yt/internal/cache"
)

// cacheStore opens the configured cache store. The database is only opened for the sqlite backend.
func (r *Runner) cacheStore() (cache.Store, func(), error) {
	var db *sql.DB
	closeFn := func() {}

	if r.config.Cache.Backend == "sqlite" {
		var err error
		if db, err = r.openDatabase(); err != nil {
			return nil, nil, err
		}
		closeFn = func() { db.Close() }
	}

	c, err := r.openCache(db, false)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return c.Store(), closeFn, nil
}

func (r *Runner) cacheLocation() string {
	if r.config.Cache.Backend == "sqlite" {
		return r.config.Database.Path
	}
	if r.config.Cache.Dir == "" {
		return "."
	}
	return r.config.Cache.Dir
}

// CacheStats prints the number of cached Asana payloads.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	store, closeFn, err := r.cacheStore()
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := store.Count()
	if err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}

	backend := r.config.Cache.Backend
	if backend == "" {
		backend = "file"
	}

	r.writePlainHeader("Cache")
	r.writePlain("  Backend:  %s\n", backend)
	r.writePlain("  Location: %s\n", r.cacheLocation())
	r.writePlain("  Entries:  %d\n", n)
	return nil
}

// CacheClear removes every cached Asana payload.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	store, closeFn, err := r.cacheStore()
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := store.Count()
	if err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	r.logger.Info("cache cleared", "entries", n, "location", r.cacheLocation())
	r.writePlain("%s Removed %d cache entries\n", r.palette.OK("✓"), n)
	return nil
}
