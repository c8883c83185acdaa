package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/avialdo/triage/internal/config"
	"github.com/avialdo/triage/internal/orchestrator"
	"github.com/avialdo/triage/internal/store"
	"github.com/avialdo/triage/pkg/models"
)

var (
	issueNumber int
	issueTitle  string
	issueBody   string
	issueLabels []string
)

// addIssueFlags registers the inline issue flags shared by classify and
// dispatch.
func addIssueFlags(flags *pflag.FlagSet) {
	flags.IntVar(&issueNumber, "number", 0, "Issue number")
	flags.StringVar(&issueTitle, "title", "", "Issue title")
	flags.StringVar(&issueBody, "body", "", "Issue body")
	flags.StringSliceVar(&issueLabels, "label", nil, "Issue label (repeatable)")
}

// loadIssue builds the issue from a JSON file argument, stdin ("-"), or the
// inline flags.
func loadIssue(args []string) (*models.Issue, error) {
	if len(args) > 0 {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return nil, fmt.Errorf("read issue: %w", err)
		}

		issue := &models.Issue{}
		if err := json.Unmarshal(data, issue); err != nil {
			return nil, fmt.Errorf("parse issue: %w", err)
		}
		if issue.Number <= 0 {
			return nil, fmt.Errorf("issue is missing a number")
		}
		return issue, nil
	}

	if issueTitle == "" {
		return nil, fmt.Errorf("provide an issue file or --title")
	}
	if issueNumber <= 0 {
		return nil, fmt.Errorf("provide --number for the issue")
	}

	return &models.Issue{
		Number: issueNumber,
		Title:  issueTitle,
		Body:   issueBody,
		Labels: issueLabels,
	}, nil
}

// openStore opens the pattern store, preferring an explicit configured
// path, then the project database, then the global one.
func openStore(cfg *config.Config) (*store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		path = store.ProjectPath(cwd)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = store.GlobalPath()
		}
	}

	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pattern store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate pattern store: %w", err)
	}
	return db, nil
}

// orchestratorLimits merges per-type overrides from the config onto the
// built-in table. Unknown type names are ignored.
func orchestratorLimits(cfg *config.Config) map[models.AgentType]orchestrator.Limits {
	limits := orchestrator.DefaultLimits()
	for name, override := range cfg.Orchestrator.AgentLimits {
		typ := models.AgentType(name)
		base, ok := limits[typ]
		if !ok {
			continue
		}
		if override.MaxInstances > 0 {
			base.MaxInstances = override.MaxInstances
		}
		if override.Timeout > 0 {
			base.Timeout = override.Timeout
		}
		limits[typ] = base
	}
	return limits
}

// newOrchestrator wires an orchestrator from the loaded config.
func newOrchestrator(cfg *config.Config, db *store.Store) *orchestrator.Orchestrator {
	cwd, _ := os.Getwd()
	return orchestrator.New(orchestrator.Config{
		MaxConcurrentAgents: cfg.Orchestrator.MaxConcurrentAgents,
		Limits:              orchestratorLimits(cfg),
		WorkerCommand:       cfg.Worker.Command,
		AutoMode:            cfg.Worker.AutoMode,
		WorkDir:             cfg.Worker.WorkDir,
		Recorder:            db,
		Logger:              orchestrator.NewDebugLoggerForProject(cwd),
	})
}

// printEvent renders one orchestrator event for the terminal.
func printEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventAgentSpawned:
		fmt.Printf("%s %s agent %s started\n", color.GreenString("▶"), ev.AgentType, ev.AgentID)
	case orchestrator.EventAgentQueued:
		fmt.Printf("%s %s agent %s queued\n", color.YellowString("…"), ev.AgentType, ev.AgentID)
	case orchestrator.EventAgentLog:
		if ev.Line != nil {
			prefix := fmt.Sprintf("[%s]", ev.AgentID)
			if ev.Line.Stream == models.LogStreamStderr {
				prefix = color.RedString(prefix)
			}
			fmt.Printf("%s %s\n", prefix, ev.Line.Text)
		}
	case orchestrator.EventAgentCompleted:
		fmt.Printf("%s %s agent %s completed in %s (quality %.2f)\n",
			color.GreenString("✓"), ev.AgentType, ev.AgentID, formatDuration(ev.Duration), ev.Quality)
	case orchestrator.EventAgentFailed:
		fmt.Printf("%s %s agent %s failed after %s (quality %.2f)\n",
			color.RedString("✗"), ev.AgentType, ev.AgentID, formatDuration(ev.Duration), ev.Quality)
	case orchestrator.EventAgentTerminated:
		fmt.Printf("%s %s agent %s terminated (%s)\n",
			color.YellowString("⚠"), ev.AgentType, ev.AgentID, ev.Message)
	case orchestrator.EventAgentError:
		fmt.Printf("%s %s agent %s error: %s\n",
			color.RedString("✗"), ev.AgentType, ev.AgentID, ev.Message)
	}
}

// terminalEvent reports whether the event ends an agent's lifecycle.
func terminalEvent(t orchestrator.EventType) bool {
	switch t {
	case orchestrator.EventAgentCompleted,
		orchestrator.EventAgentFailed,
		orchestrator.EventAgentError,
		orchestrator.EventAgentTerminated:
		return true
	}
	return false
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if m > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dh", h)
}
