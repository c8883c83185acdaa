package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Issue classification and agent orchestration",
	Long: `Triage classifies incoming issues and dispatches worker agents to
resolve them.

An issue is analyzed for category, complexity, languages, and frameworks,
then the right mix of agents is spawned under global and per-type
concurrency ceilings. Outcomes feed a pattern store so future
classifications get better.

Core capabilities:
- Classifies issues by pattern matching over title, body, and labels
- Estimates effort and picks the agent types a resolution needs
- Spawns worker processes with timeouts and live log capture
- Scores every run and learns from the accumulated history`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
