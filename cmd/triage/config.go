package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/avialdo/triage/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify triage configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/triage/config.yaml
Project-specific overrides can be placed in .triage.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("orchestrator.max_concurrent_agents: %d\n", cfg.Orchestrator.MaxConcurrentAgents)
	for name, l := range cfg.Orchestrator.AgentLimits {
		fmt.Printf("orchestrator.agent_limits.%s: max_instances=%d timeout=%s\n", name, l.MaxInstances, l.Timeout)
	}
	fmt.Printf("worker.command: %s\n", cfg.Worker.Command)
	fmt.Printf("worker.auto_mode: %t\n", cfg.Worker.AutoMode)
	fmt.Printf("worker.work_dir: %s\n", orEmpty(cfg.Worker.WorkDir))
	fmt.Printf("store.path: %s\n", orEmpty(cfg.Store.Path))
	fmt.Printf("watch.spool_dir: %s\n", cfg.Watch.SpoolDir)
}

func orEmpty(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "orchestrator.max_concurrent_agents":
		return strconv.Itoa(cfg.Orchestrator.MaxConcurrentAgents), nil
	case "worker.command":
		return cfg.Worker.Command, nil
	case "worker.auto_mode":
		return strconv.FormatBool(cfg.Worker.AutoMode), nil
	case "worker.work_dir":
		return orEmpty(cfg.Worker.WorkDir), nil
	case "store.path":
		return orEmpty(cfg.Store.Path), nil
	case "watch.spool_dir":
		return cfg.Watch.SpoolDir, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "orchestrator.max_concurrent_agents":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_concurrent_agents: %w", err)
		}
		if n <= 0 {
			return fmt.Errorf("max_concurrent_agents must be positive")
		}
		cfg.Orchestrator.MaxConcurrentAgents = n
	case "worker.command":
		cfg.Worker.Command = value
	case "worker.auto_mode":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for auto_mode: %w", err)
		}
		cfg.Worker.AutoMode = b
	case "worker.work_dir":
		cfg.Worker.WorkDir = value
	case "store.path":
		cfg.Store.Path = value
	case "watch.spool_dir":
		cfg.Watch.SpoolDir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
