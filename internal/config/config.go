// Package config handles configuration loading and management for Squad.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/squad/internal/state"
)

// Config holds all configuration for Squad.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Log    LogConfig    `mapstructure:"log"`
	Plans  PlansConfig  `mapstructure:"plans"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableCORS   bool          `mapstructure:"enable_cors"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means the XDG data default.
	Path string `mapstructure:"path"`
}

// LogConfig holds debug logging settings.
type LogConfig struct {
	// DebugPath is the coordinator debug log file. Empty disables debug logging.
	DebugPath string `mapstructure:"debug_path"`
}

// PlansConfig holds plan drop-directory settings.
type PlansConfig struct {
	// WatchDir is the directory watched for plan files. Empty disables watching.
	WatchDir string `mapstructure:"watch_dir"`
	// PollInterval bounds how often stale files are rescanned.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (SQUAD_ADDR, SQUAD_DB, SQUAD_DEBUG_LOG, SQUAD_PLAN_DIR)
// 2. Project config (.squad.yaml in current directory or parent)
// 3. User config (~/.config/squad/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("")

	// Map specific environment variables
	v.BindEnv("server.address", "SQUAD_ADDR")
	v.BindEnv("store.path", "SQUAD_DB")
	v.BindEnv("log.debug_path", "SQUAD_DEBUG_LOG")
	v.BindEnv("plans.watch_dir", "SQUAD_PLAN_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Store.Path = expandEnv(cfg.Store.Path)
	cfg.Log.DebugPath = expandEnv(cfg.Log.DebugPath)
	cfg.Plans.WatchDir = expandEnv(cfg.Plans.WatchDir)

	if cfg.Store.Path == "" {
		cfg.Store.Path = state.DefaultDBPath()
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Store.Path = expandEnv(cfg.Store.Path)
	cfg.Log.DebugPath = expandEnv(cfg.Log.DebugPath)
	cfg.Plans.WatchDir = expandEnv(cfg.Plans.WatchDir)

	if cfg.Store.Path == "" {
		cfg.Store.Path = state.DefaultDBPath()
	}

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("server.address", cfg.Server.Address)
	v.Set("server.read_timeout", cfg.Server.ReadTimeout.String())
	v.Set("server.write_timeout", cfg.Server.WriteTimeout.String())
	v.Set("server.enable_cors", cfg.Server.EnableCORS)
	v.Set("store.path", cfg.Store.Path)
	v.Set("log.debug_path", cfg.Log.DebugPath)
	v.Set("plans.watch_dir", cfg.Plans.WatchDir)
	v.Set("plans.poll_interval", cfg.Plans.PollInterval.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.enable_cors", true)

	// Store defaults: empty path resolves to the XDG data dir at load time
	v.SetDefault("store.path", "")

	// Log defaults
	v.SetDefault("log.debug_path", "")

	// Plan watcher defaults
	v.SetDefault("plans.watch_dir", "")
	v.SetDefault("plans.poll_interval", "30s")
}

// getUserConfigDir returns the XDG config directory for Squad.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "squad")
	}

	// Fall back to ~/.config/squad
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "squad")
	}
	return filepath.Join(home, ".config", "squad")
}

// findProjectConfig searches for .squad.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".squad.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
		},
		Store: StoreConfig{
			Path: state.DefaultDBPath(),
		},
		Log: LogConfig{
			DebugPath: "",
		},
		Plans: PlansConfig{
			WatchDir:     "",
			PollInterval: 30 * time.Second,
		},
	}
}
