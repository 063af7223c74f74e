package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file created by tally init.
const FileName = "tally.yaml"

// Environment variables that override the config file.
const (
	EnvDatabaseURL  = "TALLY_DATABASE_URL"
	EnvFeedClientID = "TALLY_FEED_CLIENT_ID"
	EnvFeedSecret   = "TALLY_FEED_SECRET"
	EnvFeedEnv      = "TALLY_FEED_ENV"
)

// Config represents the top-level tally.yaml configuration.
type Config struct {
	Owner    string         `yaml:"owner"`
	DataDir  string         `yaml:"data_dir"`
	Database DatabaseConfig `yaml:"database"`
	Feed     FeedConfig     `yaml:"feed"`
	Import   ImportConfig   `yaml:"import"`
	Sync     SyncConfig     `yaml:"sync"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	History  HistoryConfig  `yaml:"history"`
}

// DatabaseConfig selects PostgreSQL storage. An empty URL means the CSV
// ledger under DataDir.
type DatabaseConfig struct {
	URL string `yaml:"url,omitempty"`
}

// FeedConfig holds the bank-data provider settings. Credentials usually
// come from the environment rather than the file.
type FeedConfig struct {
	Environment string `yaml:"environment"`
	BaseURL     string `yaml:"base_url,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
	Secret      string `yaml:"secret,omitempty"`
}

// ImportConfig controls statement imports from the drop folder.
type ImportConfig struct {
	Dir           string `yaml:"dir"`
	DefaultFormat string `yaml:"default_format"`
	AccountName   string `yaml:"account_name"`
}

// SyncConfig controls scheduled syncs in serve mode.
type SyncConfig struct {
	Schedule string `yaml:"schedule"` // cron spec; empty disables
	TimeZone string `yaml:"time_zone"`
	LogDir   string `yaml:"log_dir"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// HistoryConfig controls git commits of the CSV ledger. Commits only
// happen when the project directory is a git repository.
type HistoryConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a tally.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(owner string) *Config {
	return &Config{
		Owner:   owner,
		DataDir: "data",
		Feed: FeedConfig{
			Environment: "sandbox",
		},
		Import: ImportConfig{
			Dir:           "import",
			DefaultFormat: "generic",
			AccountName:   "Uploaded statement",
		},
		Sync: SyncConfig{
			Schedule: "0 */6 * * *",
			TimeZone: "UTC",
			LogDir:   "logs",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
		History: HistoryConfig{
			AutoCommit:  true,
			AuthorName:  "tally",
			AuthorEmail: "tally@localhost",
		},
	}
}

// LoadDotEnv loads the .env files that exist. Variables already present in
// the environment are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides file settings with TALLY_* environment variables.
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Database.URL, EnvDatabaseURL)
	override(&c.Feed.ClientID, EnvFeedClientID)
	override(&c.Feed.Secret, EnvFeedSecret)
	override(&c.Feed.Environment, EnvFeedEnv)
}
