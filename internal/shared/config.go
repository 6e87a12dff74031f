package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Asana     AsanaConfig     `toml:"asana"`
	YouTrack  YouTrackConfig  `toml:"youtrack"`
	Migration MigrationConfig `toml:"migration"`
	Cache     CacheConfig     `toml:"cache"`
	Database  DatabaseConfig  `toml:"database"`
	HTTP      HTTPConfig      `toml:"http"`
}

// AsanaConfig contains source API settings.
type AsanaConfig struct {
	Token             string   `toml:"token"`
	BaseURL           string   `toml:"base_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	ExcludeWorkspaces []string `toml:"exclude_workspaces"`
}

// YouTrackConfig contains destination API settings.
//
// Either Token or Login + Password must be set. Project overrides the destination project short name.
type YouTrackConfig struct {
	URL      string `toml:"url"`
	Login    string `toml:"login"`
	Password string `toml:"password"`
	Token    string `toml:"token"`
	Project  string `toml:"project"`
}

// MigrationConfig controls how tasks become issues.
type MigrationConfig struct {
	ExternalIDField string `toml:"external_id_field"`
	DueDateField    string `toml:"due_date_field"`
	IssuePageSize   int    `toml:"issue_page_size"`
	Workers         int    `toml:"workers"`
	DryRun          bool   `toml:"dry_run"`
}

// CacheConfig selects the local cache backend ("file" or "sqlite") and its expiry.
type CacheConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	MaxAge  string `toml:"max_age"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// HTTPConfig bounds every remote call.
type HTTPConfig struct {
	Timeout    string `toml:"timeout"`
	MaxRetries int    `toml:"max_retries"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that both services have enough configuration to authenticate.
func (c *Config) Validate() error {
	if c.Asana.Token == "" {
		return fmt.Errorf("%w: asana token", ErrMissingCredentials)
	}
	if c.YouTrack.URL == "" {
		return fmt.Errorf("%w: youtrack url", ErrMissingCredentials)
	}
	if c.YouTrack.Token == "" && (c.YouTrack.Login == "" || c.YouTrack.Password == "") {
		return fmt.Errorf("%w: youtrack token or login and password", ErrMissingCredentials)
	}
	if c.Migration.ExternalIDField == "" {
		return fmt.Errorf("%w: migration.external_id_field is empty", ErrInvalidConfig)
	}
	if _, err := c.HTTP.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Cache.MaxAgeDuration(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	return nil
}

// TimeoutDuration parses the per-request timeout. Empty means 30 seconds.
func (h HTTPConfig) TimeoutDuration() (time.Duration, error) {
	if h.Timeout == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(h.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: http.timeout: %v", ErrInvalidConfig, err)
	}
	return d, nil
}

// MaxAgeDuration parses the cache expiry. Zero means entries never expire.
func (c CacheConfig) MaxAgeDuration() (time.Duration, error) {
	if c.MaxAge == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return 0, fmt.Errorf("%w: cache.max_age: %v", ErrInvalidConfig, err)
	}
	return d, nil
}
