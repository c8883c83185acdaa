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
)

var dispatchQuiet bool

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [issue.json]",
	Short: "Classify an issue and spawn the agents it needs",
	Long: `Classify an issue, then spawn the required worker agents under the
configured concurrency ceilings.

The command streams agent output and lifecycle events until every agent
reaches a terminal state. Ctrl-C terminates all running agents before
exiting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDispatch,
}

func init() {
	addIssueFlags(dispatchCmd.Flags())
	dispatchCmd.Flags().BoolVar(&dispatchQuiet, "quiet", false, "Suppress per-line agent output")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	issue, err := loadIssue(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	analysis, err := classifier.New(db).Classify(issue)
	if err != nil {
		return fmt.Errorf("classify issue: %w", err)
	}
	printAnalysis(issue, analysis)
	fmt.Println()

	orch := newOrchestrator(cfg, db)
	defer orch.Stop()

	sessionID := orchestrator.NewSessionID()
	results, err := orch.SpawnAgentsForIssue(cmd.Context(), analysis, issue, sessionID)
	if err != nil {
		return fmt.Errorf("spawn agents: %w", err)
	}

	fmt.Printf("Session %s: %d agent(s) requested\n", sessionID, len(results))

	return streamEvents(orch, len(results))
}

// streamEvents consumes orchestrator events until the given number of
// agents reaches a terminal state, or the user interrupts.
func streamEvents(orch *orchestrator.Orchestrator, outstanding int) error {
	if outstanding == 0 {
		return nil
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	for {
		select {
		case <-interrupt:
			fmt.Printf("\n%s interrupted, terminating agents\n", color.YellowString("⚠"))
			return orch.Stop()

		case ev, ok := <-orch.Events():
			if !ok {
				return nil
			}
			if ev.Type == orchestrator.EventAgentLog && dispatchQuiet {
				continue
			}
			printEvent(ev)
			if terminalEvent(ev.Type) {
				outstanding--
				if outstanding == 0 {
					return nil
				}
			}
		}
	}
}
