package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/avialdo/triage/internal/classifier"
	"github.com/avialdo/triage/internal/config"
	"github.com/avialdo/triage/pkg/models"
)

var classifyYAML bool

var classifyCmd = &cobra.Command{
	Use:   "classify [issue.json]",
	Short: "Classify an issue without spawning agents",
	Long: `Analyze an issue and print the classification.

The issue is read from a JSON file argument, from stdin when the argument
is '-', or from the --number/--title/--body/--label flags. The analysis is
saved to the pattern store so future classifications benefit from it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	addIssueFlags(classifyCmd.Flags())
	classifyCmd.Flags().BoolVar(&classifyYAML, "yaml", false, "Print the analysis as YAML")
}

func runClassify(cmd *cobra.Command, args []string) error {
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

	if classifyYAML {
		return printAnalysisYAML(analysis)
	}
	printAnalysis(issue, analysis)
	return nil
}

// analysisView is the YAML shape for a classification result.
type analysisView struct {
	IssueNumber       int         `yaml:"issue_number"`
	Category          string      `yaml:"category"`
	Complexity        string      `yaml:"complexity"`
	Priority          string      `yaml:"priority"`
	Languages         []string    `yaml:"languages"`
	Frameworks        []string    `yaml:"frameworks,omitempty"`
	EstimatedDuration string      `yaml:"estimated_duration"`
	Confidence        int         `yaml:"confidence"`
	Agents            []agentView `yaml:"agents"`
	Tools             []string    `yaml:"tools"`
}

type agentView struct {
	Type         string   `yaml:"type"`
	Priority     string   `yaml:"priority"`
	Count        int      `yaml:"count,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty"`
}

func printAnalysisYAML(a *models.Analysis) error {
	view := analysisView{
		IssueNumber:       a.IssueNumber,
		Category:          string(a.Category),
		Complexity:        string(a.Complexity),
		Priority:          string(a.Priority),
		Languages:         a.Languages,
		Frameworks:        a.Frameworks,
		EstimatedDuration: a.EstimatedDuration.String(),
		Confidence:        a.Confidence,
		Tools:             a.RequiredTools,
	}
	for _, spec := range a.RequiredAgents {
		view.Agents = append(view.Agents, agentView{
			Type:         string(spec.Type),
			Priority:     string(spec.Priority),
			Count:        spec.Count,
			Capabilities: spec.Capabilities,
		})
	}

	out, err := yaml.Marshal(&view)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func printAnalysis(issue *models.Issue, a *models.Analysis) {
	fmt.Printf("Issue #%d: %s\n\n", issue.Number, issue.Title)

	fmt.Printf("  Category:   %s\n", color.CyanString(string(a.Category)))
	fmt.Printf("  Complexity: %s\n", complexityColor(a.Complexity))
	fmt.Printf("  Priority:   %s\n", priorityColor(a.Priority))
	fmt.Printf("  Languages:  %s\n", strings.Join(a.Languages, ", "))
	if len(a.Frameworks) > 0 {
		fmt.Printf("  Frameworks: %s\n", strings.Join(a.Frameworks, ", "))
	}
	fmt.Printf("  Estimate:   %s\n", formatDuration(a.EstimatedDuration))
	fmt.Printf("  Confidence: %d%%\n", a.Confidence)

	fmt.Println("\n  Agents:")
	for _, spec := range a.RequiredAgents {
		line := fmt.Sprintf("    - %s (%s priority)", spec.Type, spec.Priority)
		if spec.Instances() > 1 {
			line += fmt.Sprintf(" x%d", spec.Instances())
		}
		fmt.Println(line)
	}

	if len(a.RequiredTools) > 0 {
		fmt.Printf("\n  Tools: %s\n", strings.Join(a.RequiredTools, ", "))
	}
}

func complexityColor(c models.Complexity) string {
	switch c {
	case models.ComplexityHigh:
		return color.RedString(string(c))
	case models.ComplexityMedium:
		return color.YellowString(string(c))
	default:
		return color.GreenString(string(c))
	}
}

func priorityColor(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return color.RedString(string(p))
	case models.PriorityLow:
		return color.GreenString(string(p))
	default:
		return color.YellowString(string(p))
	}
}
