package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/a2yt/internal/cache"
	"github.com/desertthunder/a2yt/internal/repositories"
	"github.com/desertthunder/a2yt/internal/services"
	"github.com/desertthunder/a2yt/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	source     services.Source
	dest       services.Destination
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	palette    *Palette
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Source and Dest are built from the configuration on first use when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Source     services.Source
	Dest       services.Destination
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		dest:       opts.Dest,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    DefaultPalette(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		workspacesCommand, setupCommand, cacheCommand, historyCommand,
	} {
		commands = append(commands, r.withBefore(fn(r)))
	}

	return commands
}

// withBefore reloads configuration in every subcommand so flags given after the command name apply.
func (r *Runner) withBefore(cmd *cli.Command) *cli.Command {
	if cmd.Before == nil {
		cmd.Before = r.Before
	}
	for _, sub := range cmd.Commands {
		r.withBefore(sub)
	}
	return cmd
}

// Before loads the configuration file and applies flag and environment overrides.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.logger.Debug("loaded config", "path", r.configPath)
	}

	r.applyFlags(cmd)

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// applyFlags copies explicitly set flags (or their environment sources) over the loaded configuration.
func (r *Runner) applyFlags(cmd *cli.Command) {
	set := func(name string, target *string) {
		if cmd.IsSet(name) {
			*target = cmd.String(name)
		}
	}

	set("asana-token", &r.config.Asana.Token)
	set("youtrack-url", &r.config.YouTrack.URL)
	set("youtrack-login", &r.config.YouTrack.Login)
	set("youtrack-password", &r.config.YouTrack.Password)
	set("youtrack-token", &r.config.YouTrack.Token)
	set("youtrack-project", &r.config.YouTrack.Project)
	set("cache-dir", &r.config.Cache.Dir)
	set("cache-backend", &r.config.Cache.Backend)

	if cmd.IsSet("dry-run") {
		r.config.Migration.DryRun = cmd.Bool("dry-run")
	}
}

func (r *Runner) clientOptions() (services.ClientOptions, error) {
	timeout, err := r.config.HTTP.TimeoutDuration()
	if err != nil {
		return services.ClientOptions{}, err
	}
	return services.ClientOptions{
		Timeout:    timeout,
		MaxRetries: r.config.HTTP.MaxRetries,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	}, nil
}

// connectSource builds the Asana client unless one was injected.
func (r *Runner) connectSource() (services.Source, error) {
	if r.source != nil {
		return r.source, nil
	}

	opts, err := r.clientOptions()
	if err != nil {
		return nil, err
	}
	opts.BaseURL = r.config.Asana.BaseURL
	opts.RequestsPerSecond = r.config.Asana.RequestsPerSecond

	source, err := services.NewAsanaService(r.config.Asana.Token, opts)
	if err != nil {
		return nil, err
	}
	r.source = source
	return source, nil
}

// connectDest builds and authenticates the YouTrack client unless one was injected.
func (r *Runner) connectDest(ctx context.Context) (services.Destination, error) {
	if r.dest != nil {
		return r.dest, nil
	}

	opts, err := r.clientOptions()
	if err != nil {
		return nil, err
	}
	opts.BaseURL = r.config.YouTrack.URL

	dest, err := services.NewYouTrackService(services.YouTrackCredentials{
		Login:    r.config.YouTrack.Login,
		Password: r.config.YouTrack.Password,
		Token:    r.config.YouTrack.Token,
	}, opts)
	if err != nil {
		return nil, err
	}
	if err := dest.Authenticate(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("authenticated with YouTrack", "login", dest.Login())

	r.dest = dest
	return dest, nil
}

// connectDatabase opens the configured SQLite database without touching its schema.
func (r *Runner) connectDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// openDatabase opens the SQLite database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := r.connectDatabase()
	if err != nil {
		return nil, err
	}

	if _, err := shared.RunMigrations(db, r.logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// openCache builds the local cache from the configured backend. db is only used by the sqlite backend.
func (r *Runner) openCache(db *sql.DB, refresh bool) (*cache.Cache, error) {
	var policy cache.Policy
	if refresh {
		policy = cache.Refresh()
	} else {
		maxAge, err := r.config.Cache.MaxAgeDuration()
		if err != nil {
			return nil, err
		}
		if maxAge > 0 {
			policy = cache.MaxAge(maxAge, nil)
		}
	}

	var store cache.Store
	switch r.config.Cache.Backend {
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite cache backend needs a database", shared.ErrInvalidConfig)
		}
		store = repositories.NewCacheRepository(db)
	case "", "file":
		store = cache.NewFileStore(r.config.Cache.Dir)
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", shared.ErrInvalidConfig, r.config.Cache.Backend)
	}

	return cache.New(store, policy, shared.WithLogger(r.logger, "component", "cache")), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("%s\n", r.palette.Title(title))
}
