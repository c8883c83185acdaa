package classifier

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/avialdo/triage/pkg/models"
)

// Recorder persists classification output for later reuse. Implemented by
// the store package; a nil Recorder disables persistence.
type Recorder interface {
	// SaveAnalysis writes one analysis row.
	SaveAnalysis(a *models.Analysis) error
	// RecordPattern upserts the learning pattern derived from an analysis.
	RecordPattern(a *models.Analysis) error
	// PatternHint returns the best historical confidence (0-1) and usage
	// count for a (category, complexity) pair. Usage 0 means no history.
	PatternHint(category models.Category, complexity models.Complexity) (float64, int, error)
}

// Base durations per complexity tier.
const (
	baseDurationLow    = 5 * time.Minute
	baseDurationMedium = 30 * time.Minute
	baseDurationHigh   = 60 * time.Minute
)

// categoryDurationMultipliers scales the base duration per category.
var categoryDurationMultipliers = map[models.Category]float64{
	models.CategoryBug:           0.7,
	models.CategoryFeature:       1.5,
	models.CategoryDocumentation: 0.5,
	models.CategoryQuestion:      0.3,
	models.CategorySecurity:      2.0,
	models.CategoryPerformance:   1.8,
	models.CategoryTesting:       1.0,
	models.CategoryRefactoring:   2.2,
	models.CategoryGeneral:       1.0,
}

// Classifier converts issues into analyses. Stateless per call; an optional
// Recorder receives one analysis row and one pattern upsert per call.
type Classifier struct {
	recorder Recorder
}

// New creates a Classifier. The recorder may be nil.
func New(recorder Recorder) *Classifier {
	return &Classifier{recorder: recorder}
}

// Classify analyzes one issue. It never fails on malformed input; absence of
// signal degrades confidence and falls through to defaults. The only error
// source is the recorder.
func (c *Classifier) Classify(issue *models.Issue) (*models.Analysis, error) {
	text := combineText(issue)

	complexity := detectComplexity(text)
	languages := detectLanguages(text)
	frameworks := detectFrameworks(text)
	category := detectCategory(issue.Labels, text)
	priority := detectPriority(issue.Labels, text)

	analysis := &models.Analysis{
		IssueID:           issue.ID,
		IssueNumber:       issue.Number,
		Category:          category,
		Complexity:        complexity,
		Languages:         languages,
		Frameworks:        frameworks,
		Priority:          priority,
		EstimatedDuration: estimateDuration(complexity, category, len(languages), len(frameworks)),
	}
	analysis.RequiredAgents = requiredAgents(analysis)
	analysis.RequiredTools = requiredTools(analysis)
	analysis.Confidence = c.confidence(analysis)

	if c.recorder != nil {
		if err := c.recorder.SaveAnalysis(analysis); err != nil {
			return nil, fmt.Errorf("save analysis: %w", err)
		}
		if err := c.recorder.RecordPattern(analysis); err != nil {
			return nil, fmt.Errorf("record pattern: %w", err)
		}
	}

	return analysis, nil
}

// combineText builds the lowercased matching corpus from title, body, and
// label names.
func combineText(issue *models.Issue) string {
	parts := make([]string, 0, 2+len(issue.Labels))
	parts = append(parts, issue.Title, issue.Body)
	parts = append(parts, issue.Labels...)
	return strings.ToLower(strings.Join(parts, "\n"))
}

// detectComplexity scans the indicator tiers highest-first. If nothing
// matches, a structural heuristic decides between medium and low.
func detectComplexity(text string) models.Complexity {
	for _, tier := range complexityTiers {
		for _, p := range tier.Patterns {
			if p.MatchString(text) {
				return tier.Complexity
			}
		}
	}

	// Structural fallback: long or heavily structured issues are at least
	// medium even without indicator matches.
	fencedBlocks := len(fencedBlockPattern.FindAllString(text, -1)) / 2
	numberedSteps := len(numberedStepPattern.FindAllString(text, -1))
	if len(text) > 1000 || fencedBlocks >= 3 || numberedSteps >= 6 {
		return models.ComplexityMedium
	}
	return models.ComplexityLow
}

// detectLanguages returns every matching language tag, normalized to
// {general} when nothing matched. The result is never empty.
func detectLanguages(text string) []string {
	var langs []string
	for _, entry := range languagePatterns {
		if entry.Pattern.MatchString(text) {
			langs = append(langs, entry.Tag)
		}
	}
	if len(langs) == 0 {
		return []string{"general"}
	}
	return langs
}

// detectFrameworks returns every matching framework tag. May be empty.
func detectFrameworks(text string) []string {
	var fws []string
	for _, entry := range frameworkPatterns {
		if entry.Pattern.MatchString(text) {
			fws = append(fws, entry.Tag)
		}
	}
	return fws
}

// detectCategory resolves the category with labels taking precedence over
// text, both in fixed priority order.
func detectCategory(labels []string, text string) models.Category {
	lowered := make([]string, len(labels))
	for i, l := range labels {
		lowered[i] = strings.ToLower(l)
	}

	for _, rule := range categoryRules {
		for _, want := range rule.Labels {
			for _, label := range lowered {
				if strings.Contains(label, want) {
					return rule.Category
				}
			}
		}
	}

	for _, rule := range categoryRules {
		if rule.Text.MatchString(text) {
			return rule.Category
		}
	}

	return models.CategoryGeneral
}

// detectPriority resolves the priority: forcing labels first, then urgency
// language in the text, defaulting to medium.
func detectPriority(labels []string, text string) models.Priority {
	for _, label := range labels {
		l := strings.ToLower(label)
		for _, want := range highPriorityLabels {
			if strings.Contains(l, want) {
				return models.PriorityHigh
			}
		}
		for _, want := range lowPriorityLabels {
			if strings.Contains(l, want) {
				return models.PriorityLow
			}
		}
	}

	if highPriorityText.MatchString(text) {
		return models.PriorityHigh
	}
	if lowPriorityText.MatchString(text) {
		return models.PriorityLow
	}
	return models.PriorityMedium
}

// estimateDuration derives the duration estimate from the complexity base,
// the category multiplier, and breadth adjustments for multi-language and
// multi-framework issues.
func estimateDuration(complexity models.Complexity, category models.Category, languageCount, frameworkCount int) time.Duration {
	base := baseDurationLow
	switch complexity {
	case models.ComplexityMedium:
		base = baseDurationMedium
	case models.ComplexityHigh:
		base = baseDurationHigh
	}

	multiplier := categoryDurationMultipliers[category]
	if multiplier == 0 {
		multiplier = 1.0
	}
	if languageCount > 1 {
		multiplier *= 1.3
	}
	if frameworkCount > 1 {
		multiplier *= 1.2
	}

	ms := math.Round(float64(base.Milliseconds()) * multiplier)
	return time.Duration(ms) * time.Millisecond
}

// requiredAgents applies the agent rule table to the analysis. Rules are
// evaluated top to bottom; the output order is the spawn order.
func requiredAgents(a *models.Analysis) []models.AgentSpec {
	var specs []models.AgentSpec

	if a.Complexity == models.ComplexityHigh {
		specs = append(specs, models.AgentSpec{
			Type:         models.AgentCoordinator,
			Priority:     a.Priority,
			Capabilities: []string{"coordination", "planning"},
		})
	}

	if a.Category == models.CategoryFeature && a.Complexity != models.ComplexityLow {
		specs = append(specs, models.AgentSpec{
			Type:         models.AgentArchitect,
			Priority:     a.Priority,
			Capabilities: []string{"system-design", "api-design"},
		})
	}

	if !isGeneralOnly(a.Languages) {
		count := len(a.Languages)
		if count > 3 {
			count = 3
		}
		specs = append(specs, models.AgentSpec{
			Type:         models.AgentCoder,
			Priority:     a.Priority,
			Capabilities: append([]string{}, a.Languages...),
			Count:        count,
		})
	}

	switch a.Category {
	case models.CategoryFeature, models.CategoryBug, models.CategoryTesting:
		specs = append(specs, models.AgentSpec{
			Type:         models.AgentTester,
			Priority:     a.Priority,
			Capabilities: []string{"unit-testing", "integration-testing"},
		})
	}

	if a.Category == models.CategorySecurity || a.Priority == models.PriorityHigh {
		specs = append(specs, models.AgentSpec{
			Type:         models.AgentSecurity,
			Priority:     models.PriorityHigh,
			Capabilities: []string{"security-audit", "vulnerability-scan"},
		})
	}

	if a.Category == models.CategoryDocumentation || a.Complexity == models.ComplexityHigh {
		specs = append(specs, models.AgentSpec{
			Type:         models.AgentDocumenter,
			Priority:     a.Priority,
			Capabilities: []string{"technical-writing"},
		})
	}

	if a.Category == models.CategoryBug {
		specs = append(specs, models.AgentSpec{
			Type:         models.AgentDebugger,
			Priority:     a.Priority,
			Capabilities: []string{"root-cause-analysis"},
		})
	}

	if a.Category == models.CategoryPerformance {
		specs = append(specs, models.AgentSpec{
			Type:         models.AgentOptimizer,
			Priority:     a.Priority,
			Capabilities: []string{"profiling", "optimization"},
		})
	}

	return specs
}

// languageTools maps language tags to their toolchain tool identifiers.
var languageTools = map[string][]string{
	"javascript": {"node", "npm"},
	"typescript": {"node", "npm", "tsc"},
	"python":     {"python", "pip"},
	"go":         {"go-toolchain"},
	"rust":       {"cargo"},
	"java":       {"maven"},
	"ruby":       {"bundler"},
	"php":        {"composer"},
	"csharp":     {"dotnet-cli"},
	"cpp":        {"cmake"},
	"sql":        {"sql-client"},
	"shell":      {"shell"},
}

// categoryTools maps categories to additional tool identifiers.
var categoryTools = map[models.Category][]string{
	models.CategoryTesting:     {"test-runner", "coverage"},
	models.CategorySecurity:    {"security-scanner", "dependency-audit"},
	models.CategoryPerformance: {"profiler", "benchmark"},
}

// githubTools is the fixed integration triplet consumed by the source
// control layer. Declared here, never invoked by the core.
var githubTools = []string{"github-create-pr", "github-commit", "github-update-issue"}

// requiredTools builds the deduplicated tool set: generic file I/O, then
// per-language toolchains, then per-category tools, then the GitHub triplet.
func requiredTools(a *models.Analysis) []string {
	seen := make(map[string]bool)
	var tools []string
	add := func(ids ...string) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				tools = append(tools, id)
			}
		}
	}

	add("file-read", "file-write")
	for _, lang := range a.Languages {
		add(languageTools[lang]...)
	}
	add(categoryTools[a.Category]...)
	add(githubTools...)

	return tools
}

// confidence computes the 0-100 classification confidence, including the
// historical bump from the pattern store when available.
func (c *Classifier) confidence(a *models.Analysis) int {
	score := 50

	if !isGeneralOnly(a.Languages) {
		score += 20
	}
	if len(a.Frameworks) > 0 {
		score += 15
	}
	if a.Category != models.CategoryGeneral {
		score += 15
	}
	if a.Complexity == models.ComplexityHigh {
		score -= 10
	}
	if len(a.Languages) > 3 {
		score -= 5
	}

	if c.recorder != nil {
		hint, usage, err := c.recorder.PatternHint(a.Category, a.Complexity)
		if err == nil && usage >= 3 && hint >= 0.75 {
			score += 10
		}
	}

	return clampInt(score, 0, 100)
}

// isGeneralOnly reports whether the language set is the {general} fallback.
func isGeneralOnly(langs []string) bool {
	return len(langs) == 1 && langs[0] == "general"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SortedCopy returns a sorted copy of a tag set, for stable serialization.
func SortedCopy(tags []string) []string {
	out := append([]string{}, tags...)
	sort.Strings(out)
	return out
}
