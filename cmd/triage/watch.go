package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avialdo/triage/internal/classifier"
	"github.com/avialdo/triage/internal/config"
	"github.com/avialdo/triage/internal/orchestrator"
	"github.com/avialdo/triage/internal/watch"
)

var watchSpoolDir string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a spool directory and dispatch incoming issues",
	Long: `Watch the spool directory for issue files and dispatch agents for
each one as it arrives.

Issue files are JSON documents named *.json. Files already present when
the watcher starts are processed first. Malformed files are skipped and
left in place. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSpoolDir, "spool", "", "Spool directory (overrides config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	spoolDir := cfg.Watch.SpoolDir
	if watchSpoolDir != "" {
		spoolDir = watchSpoolDir
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cwd, _ := os.Getwd()
	logger := orchestrator.NewDebugLoggerForProject(cwd)
	defer logger.Close()

	watcher, err := watch.New(spoolDir, logger.Log)
	if err != nil {
		return fmt.Errorf("start spool watcher: %w", err)
	}
	defer watcher.Close()

	cls := classifier.New(db)
	orch := newOrchestrator(cfg, db)
	defer orch.Stop()

	fmt.Printf("Watching %s for issues (Ctrl-C to stop)\n", spoolDir)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	for {
		select {
		case <-interrupt:
			fmt.Printf("\n%s interrupted, terminating agents\n", color.YellowString("⚠"))
			return orch.Stop()

		case issue, ok := <-watcher.Issues():
			if !ok {
				return nil
			}

			analysis, err := cls.Classify(issue)
			if err != nil {
				fmt.Fprintf(os.Stderr, "classify issue #%d: %v\n", issue.Number, err)
				continue
			}

			sessionID := orchestrator.NewSessionID()
			results, err := orch.SpawnAgentsForIssue(cmd.Context(), analysis, issue, sessionID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "spawn agents for issue #%d: %v\n", issue.Number, err)
				continue
			}

			fmt.Printf("Issue #%d (%s/%s): session %s, %d agent(s) requested\n",
				issue.Number, analysis.Category, analysis.Complexity, sessionID, len(results))

		case ev, ok := <-orch.Events():
			if !ok {
				return nil
			}
			if ev.Type == orchestrator.EventAgentLog {
				continue
			}
			printEvent(ev)
		}
	}
}
