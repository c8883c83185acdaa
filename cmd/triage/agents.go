package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avialdo/triage/internal/config"
	"github.com/avialdo/triage/pkg/models"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Show agent performance history",
	Long: `Display per-type agent performance accumulated in the pattern store.

Shows run counts, success rates, average quality, and average duration
for every agent type that has finished at least one run.`,
	RunE: runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.StatsByType()
	if err != nil {
		return fmt.Errorf("load agent stats: %w", err)
	}

	if len(stats) == 0 {
		fmt.Println("No finished agent runs yet. Run 'triage dispatch' to start.")
		return nil
	}

	types := make([]models.AgentType, 0, len(stats))
	for typ := range stats {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	fmt.Println("Agent Performance:")
	for _, typ := range types {
		st := stats[typ]
		rate := st.SuccessRate() * 100

		rateStr := fmt.Sprintf("%.0f%%", rate)
		switch {
		case rate >= 80:
			rateStr = color.GreenString(rateStr)
		case rate >= 50:
			rateStr = color.YellowString(rateStr)
		default:
			rateStr = color.RedString(rateStr)
		}

		fmt.Printf("  %-12s %3d runs  %s success  quality %.2f  avg %s\n",
			typ, st.Runs, rateStr, st.AvgQuality, formatDuration(st.AvgDuration))
	}

	return nil
}
