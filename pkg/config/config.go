// Package config loads herd settings.
//
// Settings are read from $XDG_CONFIG_HOME/herd/config.yaml (defaults to
// ~/.config/herd/config.yaml). A missing file yields the defaults; command
// line flags override whatever the file sets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/herd/pkg/log"
	"github.com/cuemby/herd/pkg/naming"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultDriver       = "virtualbox"
	DefaultPollInterval = 10 * time.Second
)

// SSH configures the native SSH executor
type SSH struct {
	// Native dials hosts directly instead of shelling out to docker-machine ssh
	Native bool   `yaml:"native"`
	User   string `yaml:"user,omitempty"`
	KeyDir string `yaml:"key-dir,omitempty"`
}

// Poll bounds the wait for a stopped node to be reported down
type Poll struct {
	Interval time.Duration `yaml:"interval"`
	// Timeout 0 waits until the node is down or the command is interrupted
	Timeout time.Duration `yaml:"timeout"`
}

// Log configures pkg/log
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config holds every herd setting
type Config struct {
	Driver          string   `yaml:"driver"`
	Prefix          string   `yaml:"prefix"`
	DriverOptions   []string `yaml:"driver-options,omitempty"`
	SSH             SSH      `yaml:"ssh"`
	Poll            Poll     `yaml:"poll"`
	StateDir        string   `yaml:"state-dir"`
	Log             Log      `yaml:"log"`
	MetricsTextfile string   `yaml:"metrics-textfile,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Driver:   DefaultDriver,
		Poll:     Poll{Interval: DefaultPollInterval},
		StateDir: DefaultStateDir(),
		Log:      Log{Level: string(log.InfoLevel)},
	}
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/herd/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "herd", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "herd", "config.yaml")
}

// DefaultStateDir returns $XDG_STATE_HOME/herd, falling back to
// ~/.local/state/herd
func DefaultStateDir() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "state", "herd")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "herd")
}

// Load reads the config file at path, or at Path() when path is empty.
// A missing file is not an error. Fields the file leaves out keep their
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings no command can run with
func (c *Config) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("driver must not be empty")
	}
	if err := naming.NewScheme(c.Prefix).Validate(); err != nil {
		return err
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.Timeout < 0 {
		return fmt.Errorf("poll timeout must not be negative, got %s", c.Poll.Timeout)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state directory must not be empty")
	}
	switch log.Level(c.Log.Level) {
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel:
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}
