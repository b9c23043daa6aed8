package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/viper"

	"github.com/livemirror/livemirror/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".livemirror", "config.json")
	DefaultCursorFile = filepath.Join(home, ".livemirror", "last_updated.txt")

	// DefaultSparqlEndpoint is the stock Virtuoso SPARQL endpoint.
	DefaultSparqlEndpoint = "http://localhost:8890/sparql"

	// DefaultRetryWait is the single tunable interval: how long to wait
	// between fetch retries and between published-marker polls.
	DefaultRetryWait = 5 * time.Second
)

// Config carries everything the mirror needs, resolved once at startup and
// passed by reference into the components. There is no ambient global state.
type Config struct {
	ServerURL      string        `json:"server_url" mapstructure:"server_url"`
	SparqlEndpoint string        `json:"sparql_endpoint" mapstructure:"sparql_endpoint"`
	SparqlGraph    string        `json:"sparql_graph" mapstructure:"sparql_graph"`
	SparqlUsername string        `json:"sparql_username" mapstructure:"sparql_username"`
	SparqlPassword string        `json:"sparql_password" mapstructure:"sparql_password"`
	CursorFile     string        `json:"cursor_file" mapstructure:"cursor_file"`
	TempDir        string        `json:"temp_dir" mapstructure:"temp_dir"`
	ClearTempFiles bool          `json:"clear_temp_files" mapstructure:"clear_temp_files"`
	PingURL        string        `json:"ping_url" mapstructure:"ping_url"`
	PingPassword   string        `json:"ping_password" mapstructure:"ping_password"`
	PingPattern    string        `json:"ping_pattern" mapstructure:"ping_pattern"`
	RetryWait      time.Duration `json:"retry_wait" mapstructure:"retry_wait"`
}

// Load resolves the configuration: built-in defaults, then the default
// config file if present, then the local override file (when given) merged on
// top, then LIVEMIRROR_* environment variables.
func Load(overridePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	v.SetDefault("sparql_endpoint", DefaultSparqlEndpoint)
	v.SetDefault("cursor_file", DefaultCursorFile)
	v.SetDefault("clear_temp_files", true)
	v.SetDefault("ping_pattern", ".*")
	v.SetDefault("retry_wait", DefaultRetryWait)

	if utils.FileExists(DefaultConfigPath) {
		v.SetConfigFile(DefaultConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read %q: %w", DefaultConfigPath, err)
		}
	}

	if overridePath != "" {
		v.SetConfigFile(overridePath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config merge %q: %w", overridePath, err)
		}
	}

	v.SetEnvPrefix("LIVEMIRROR")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	return &cfg, nil
}

// Validate normalizes paths and rejects configurations the mirror cannot run
// with.
func (c *Config) Validate() error {
	if err := validHTTPURL("server url", c.ServerURL); err != nil {
		return err
	}
	if err := validHTTPURL("sparql endpoint", c.SparqlEndpoint); err != nil {
		return err
	}
	if c.PingURL != "" {
		if err := validHTTPURL("ping url", c.PingURL); err != nil {
			return err
		}
	}
	if c.PingPattern != "" {
		if _, err := regexp.Compile(c.PingPattern); err != nil {
			return fmt.Errorf("ping pattern: %w", err)
		}
	}
	if c.CursorFile == "" {
		return errors.New("cursor file path is required")
	}
	if c.RetryWait <= 0 {
		c.RetryWait = DefaultRetryWait
	}

	cursorFile, err := utils.ResolvePath(c.CursorFile)
	if err != nil {
		return fmt.Errorf("cursor file: %w", err)
	}
	c.CursorFile = cursorFile

	if c.TempDir != "" {
		tempDir, err := utils.ResolvePath(c.TempDir)
		if err != nil {
			return fmt.Errorf("temp dir: %w", err)
		}
		c.TempDir = tempDir
	}

	return nil
}

func validHTTPURL(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: unsupported scheme %q", name, u.Scheme)
	}
	return nil
}
