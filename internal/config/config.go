// Package config handles configuration loading and management for triage.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for triage.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Store        StoreConfig        `mapstructure:"store"`
	Watch        WatchConfig        `mapstructure:"watch"`
}

// OrchestratorConfig holds agent concurrency settings.
type OrchestratorConfig struct {
	// MaxConcurrentAgents is the global ceiling on running agents.
	MaxConcurrentAgents int `mapstructure:"max_concurrent_agents"`
	// AgentLimits overrides the built-in per-type limits, keyed by agent
	// type name.
	AgentLimits map[string]AgentLimitConfig `mapstructure:"agent_limits"`
}

// AgentLimitConfig overrides instance count and timeout for one agent type.
// Zero fields keep the built-in value.
type AgentLimitConfig struct {
	MaxInstances int           `mapstructure:"max_instances"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// WorkerConfig holds settings for the worker wrapper command.
type WorkerConfig struct {
	// Command is the wrapper executable spawned per agent.
	Command string `mapstructure:"command"`
	// AutoMode passes --auto-mode to workers.
	AutoMode bool `mapstructure:"auto_mode"`
	// WorkDir is the working directory for workers. Empty means inherit.
	WorkDir string `mapstructure:"work_dir"`
}

// StoreConfig holds pattern store settings.
type StoreConfig struct {
	// Path overrides the default database location.
	Path string `mapstructure:"path"`
}

// WatchConfig holds spool watcher settings.
type WatchConfig struct {
	// SpoolDir is the directory watched for incoming issue files.
	SpoolDir string `mapstructure:"spool_dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (TRIAGE_*)
// 2. Project config (.triage.yaml in current directory or parent)
// 3. User config (~/.config/triage/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

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

	v.BindEnv("orchestrator.max_concurrent_agents", "TRIAGE_MAX_CONCURRENT_AGENTS")
	v.BindEnv("worker.command", "TRIAGE_WORKER_COMMAND")
	v.BindEnv("worker.auto_mode", "TRIAGE_AUTO_MODE")
	v.BindEnv("store.path", "TRIAGE_STORE_PATH")
	v.BindEnv("watch.spool_dir", "TRIAGE_SPOOL_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Worker.Command = os.ExpandEnv(cfg.Worker.Command)
	cfg.Store.Path = os.ExpandEnv(cfg.Store.Path)

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

	cfg.Worker.Command = os.ExpandEnv(cfg.Worker.Command)
	cfg.Store.Path = os.ExpandEnv(cfg.Store.Path)

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

	v.Set("orchestrator.max_concurrent_agents", cfg.Orchestrator.MaxConcurrentAgents)
	for name, l := range cfg.Orchestrator.AgentLimits {
		v.Set("orchestrator.agent_limits."+name+".max_instances", l.MaxInstances)
		v.Set("orchestrator.agent_limits."+name+".timeout", l.Timeout.String())
	}
	v.Set("worker.command", cfg.Worker.Command)
	v.Set("worker.auto_mode", cfg.Worker.AutoMode)
	v.Set("worker.work_dir", cfg.Worker.WorkDir)
	v.Set("store.path", cfg.Store.Path)
	v.Set("watch.spool_dir", cfg.Watch.SpoolDir)

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
	v.SetDefault("orchestrator.max_concurrent_agents", 10)

	v.SetDefault("worker.command", "swarm-agent")
	v.SetDefault("worker.auto_mode", false)
	v.SetDefault("worker.work_dir", "")

	v.SetDefault("store.path", "")

	v.SetDefault("watch.spool_dir", ".triage/spool")
}

// getUserConfigDir returns the XDG config directory for triage.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "triage")
	}

	// Fall back to ~/.config/triage
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "triage")
	}
	return filepath.Join(home, ".config", "triage")
}

// findProjectConfig searches for .triage.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".triage.yaml")
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

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxConcurrentAgents: 10,
		},
		Worker: WorkerConfig{
			Command:  "swarm-agent",
			AutoMode: false,
		},
		Watch: WatchConfig{
			SpoolDir: ".triage/spool",
		},
	}
}
