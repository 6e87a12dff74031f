// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// rootFlags are shared by the migration action and every subcommand.
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:    "asana-token",
			Aliases: []string{"t"},
			Usage:   "Asana personal access token",
			Sources: cli.EnvVars("ASANA_PAT"),
		},
		&cli.StringFlag{
			Name:    "youtrack-url",
			Aliases: []string{"u"},
			Usage:   "YouTrack base URL",
			Sources: cli.EnvVars("YOUTRACK_URL"),
		},
		&cli.StringFlag{
			Name:    "youtrack-login",
			Aliases: []string{"l"},
			Usage:   "YouTrack login",
			Sources: cli.EnvVars("YOUTRACK_LOGIN"),
		},
		&cli.StringFlag{
			Name:    "youtrack-password",
			Aliases: []string{"p"},
			Usage:   "YouTrack password",
			Sources: cli.EnvVars("YOUTRACK_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "youtrack-token",
			Usage:   "YouTrack permanent token (used instead of login and password)",
			Sources: cli.EnvVars("YOUTRACK_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "youtrack-project",
			Aliases: []string{"r"},
			Usage:   "Destination project short name for every workspace",
			Sources: cli.EnvVars("YOUTRACK_PROJECT"),
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Directory for cached Asana payloads",
		},
		&cli.StringFlag{
			Name:  "cache-backend",
			Usage: "Cache backend (file or sqlite)",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

// migrateFlags apply to the root migration action.
func migrateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "workspace",
			Aliases: []string{"w"},
			Usage:   "Only migrate the workspace with this name or GID",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Validate the migration without writing to YouTrack",
		},
		&cli.BoolFlag{
			Name:  "refresh",
			Usage: "Ignore cached payloads and refetch everything",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a run report to this path",
		},
		&cli.StringFlag{
			Name:  "report-format",
			Usage: "Report format (json, csv, markdown or text)",
			Value: "text",
		},
	}
}

// workspacesCommand lists source workspaces and whether they are selected.
func workspacesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "workspaces",
		Aliases: []string{"ws"},
		Usage:   "List Asana workspaces and their migration status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Workspaces,
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recently applied migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// cacheCommand inspects and clears the local payload cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local Asana payload cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show the number of cached entries",
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached entry",
				Action: r.CacheClear,
			},
		},
	}
}

// historyCommand lists, shows and deletes recorded migration runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded migration runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show runs with this status",
			},
			&cli.StringFlag{
				Name:  "workspace-gid",
				Usage: "Only show runs for this workspace GID",
			},
			&cli.StringFlag{
				Name:  "show",
				Usage: "Show a single run by ID",
			},
			&cli.StringFlag{
				Name:  "delete",
				Usage: "Remove a run by ID from the history",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}
