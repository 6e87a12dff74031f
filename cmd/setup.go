package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/a2yt/internal/shared"
)

// SetupConfig writes the example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s Config written to %s\n", r.palette.OK("✓"), path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set asana.token and the youtrack credentials (or ASANA_PAT and YOUTRACK_* in .env)\n")
	r.writePlain("2. Run 'a2yt workspaces' to check which workspaces will be migrated\n")
	r.writePlain("3. Run 'a2yt --dry-run' to validate the migration\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first. With --rollback the latest applied
// migration is reverted instead.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("rollback") {
		return r.rollbackDatabase()
	}

	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				r.config = config
				r.applyFlags(cmd)
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.connectDatabase()
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	applied, err := shared.RunMigrations(db, r.logger)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("%s Database ready at %s\n", r.palette.OK("✓"), r.config.Database.Path)
	for _, version := range applied {
		r.writePlain("   applied migration %04d\n", version)
	}
	return nil
}

func (r *Runner) rollbackDatabase() error {
	db, err := r.connectDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := shared.RollbackMigration(db, r.logger)
	if err != nil {
		return err
	}
	r.writePlain("%s Rolled back migration %04d_%s\n", r.palette.Warn("↺"), m.Version, m.Name)
	return nil
}
