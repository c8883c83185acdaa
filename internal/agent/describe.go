package agent

import (
	"fmt"
	"strings"

	"github.com/avialdo/triage/pkg/models"
)

// TaskDescription builds the free-text task description handed to a worker,
// templated per agent type from the analysis and the issue.
func TaskDescription(typ models.AgentType, analysis *models.Analysis, issue *models.Issue) string {
	langs := strings.Join(analysis.Languages, ", ")
	fws := strings.Join(analysis.Frameworks, ", ")
	if fws == "" {
		fws = "no specific frameworks"
	}

	switch typ {
	case models.AgentCoordinator:
		return fmt.Sprintf(
			"Coordinate the overall resolution strategy for issue #%d (%s): break down the work, sequence the other agents, and track completion.",
			issue.Number, issue.Title)
	case models.AgentArchitect:
		return fmt.Sprintf(
			"Design the solution architecture for issue #%d (%s): define component boundaries and interfaces before implementation starts.",
			issue.Number, issue.Title)
	case models.AgentCoder:
		return fmt.Sprintf(
			"Implement the solution for issue #%d (%s) using %s with %s.",
			issue.Number, issue.Title, langs, fws)
	case models.AgentTester:
		return fmt.Sprintf(
			"Write and run tests covering the changes for issue #%d (%s); report failures with reproduction steps.",
			issue.Number, issue.Title)
	case models.AgentSecurity:
		return fmt.Sprintf(
			"Audit the changes for issue #%d (%s) for security problems: injection, authentication, secrets handling, dependency risk.",
			issue.Number, issue.Title)
	case models.AgentDocumenter:
		return fmt.Sprintf(
			"Update documentation affected by issue #%d (%s): user-facing docs, API references, and changelogs.",
			issue.Number, issue.Title)
	case models.AgentDebugger:
		return fmt.Sprintf(
			"Find the root cause of issue #%d (%s): reproduce the failure, isolate it, and propose the minimal fix.",
			issue.Number, issue.Title)
	case models.AgentOptimizer:
		return fmt.Sprintf(
			"Profile and optimize the code paths involved in issue #%d (%s); verify improvements with benchmarks.",
			issue.Number, issue.Title)
	default:
		return fmt.Sprintf("Work on issue #%d (%s).", issue.Number, issue.Title)
	}
}
