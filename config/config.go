// Package config loads and saves the kongress-cli YAML configuration file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultLogLevel = "info"
	defaultDatabase = "kongress.db"
)

// Config is the top-level application configuration.
type Config struct {
	// DataDir holds the database and the user conference catalog.
	DataDir string `yaml:"data_dir"`

	// LogLevel is one of the logrus level names (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// BundledCatalog, if set, replaces the embedded conference data with a
	// JSON file on disk.
	BundledCatalog string `yaml:"bundled_catalog,omitempty"`

	// Database is the SQLite file name, relative to DataDir unless absolute.
	Database string `yaml:"database"`
}

// DefaultDir returns the per-user configuration directory for kongress-cli.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".kongress")
	}
	return filepath.Join(base, "kongress")
}

// DefaultDataDir returns the per-user application data directory.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "kongress")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".kongress")
	}
	return filepath.Join(home, ".local", "share", "kongress")
}

// DefaultPath returns the default location of the configuration file.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  DefaultDataDir(),
		LogLevel: defaultLogLevel,
		Database: defaultDatabase,
	}
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
}

// DatabasePath returns the absolute or DataDir-relative database path.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(c.DataDir, c.Database)
}

// UserCatalogPath returns the path of the user-writable conference catalog.
func (c *Config) UserCatalogPath() string {
	return filepath.Join(c.DataDir, "ConferenceUserData.json")
}

// Load loads configuration from the given YAML path.
//
// A missing file is a first run: the default config is written to path and
// returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".kongress-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
