package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/a2yt/internal/shared"
)

const version = "0.1.0"

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "a2yt",
		Usage:    "Migrate Asana workspaces, projects and tasks into YouTrack",
		Version:  version,
		Flags:    append(rootFlags(), migrateFlags()...),
		Before:   r.Before,
		Action:   r.Migrate,
		Commands: r.register(),
		Writer:   r.output,
	}
}

func main() {
	logger := shared.NewLogger(nil)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := newApp(NewRunner(RunnerOpts{Logger: logger}))
	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
