// Package classifier turns free-text issues into structured task analyses
// using prioritized keyword and pattern tables.
package classifier

import (
	"regexp"

	"github.com/avialdo/triage/pkg/models"
)

// complexityTier is one priority tier of complexity indicators.
// Tiers are evaluated in order; the first tier with a match wins.
type complexityTier struct {
	// Complexity assigned when any pattern in this tier matches.
	Complexity models.Complexity
	// Patterns are matched against the lowercased issue text.
	Patterns []*regexp.Regexp
}

// complexityTiers holds the indicator tiers, highest first. The ordering is
// behaviorally significant: text matching both a high and a low pattern
// classifies as high.
var complexityTiers = []complexityTier{
	{
		Complexity: models.ComplexityHigh,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\barchitect(ure|ural)\b`),
			regexp.MustCompile(`\brewrite\b`),
			regexp.MustCompile(`\bbreaking change`),
			regexp.MustCompile(`\bmigrat(e|ion)\b`),
			regexp.MustCompile(`\bredesign\b`),
			regexp.MustCompile(`\bdistributed\b`),
			regexp.MustCompile(`\bscalab(le|ility)\b`),
			regexp.MustCompile(`\bcross[- ]cutting\b`),
			regexp.MustCompile(`\bmultiple (modules|services|components)\b`),
		},
	},
	{
		Complexity: models.ComplexityMedium,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\brefactor`),
			regexp.MustCompile(`\bnew feature\b`),
			regexp.MustCompile(`\bintegrat(e|ion)\b`),
			regexp.MustCompile(`\bapi change`),
			regexp.MustCompile(`\bendpoint\b`),
			regexp.MustCompile(`\bdatabase\b`),
			regexp.MustCompile(`\boptimiz(e|ation)\b`),
			regexp.MustCompile(`\bconcurren(t|cy)\b`),
		},
	},
	{
		Complexity: models.ComplexityLow,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\btypo\b`),
			regexp.MustCompile(`\bsimple\b`),
			regexp.MustCompile(`\btrivial\b`),
			regexp.MustCompile(`\bone[- ]lin(e|er)\b`),
			regexp.MustCompile(`\brename\b`),
			regexp.MustCompile(`\bsmall fix\b`),
		},
	},
}

// languagePatterns maps language tags to detection patterns. Entries are
// independent; every match is included.
var languagePatterns = []struct {
	Tag     string
	Pattern *regexp.Regexp
}{
	{"javascript", regexp.MustCompile(`\b(javascript|\.js\b|node(js)?)\b`)},
	{"typescript", regexp.MustCompile(`\b(typescript|\.ts\b|tsx)\b`)},
	{"python", regexp.MustCompile(`\b(python|\.py\b|pip\b)\b`)},
	{"go", regexp.MustCompile(`\b(golang|\.go\b|go mod|goroutine)\b`)},
	{"rust", regexp.MustCompile(`\b(rust|cargo|\.rs\b)\b`)},
	{"java", regexp.MustCompile(`\b(java\b|maven|gradle|\.jar\b)\b`)},
	{"ruby", regexp.MustCompile(`\b(ruby|rails|gemfile|\.rb\b)\b`)},
	{"php", regexp.MustCompile(`\b(php|composer\.json|laravel)\b`)},
	{"csharp", regexp.MustCompile(`c#|\b(csharp|dotnet)\b|\.cs\b`)},
	{"cpp", regexp.MustCompile(`c\+\+|\b(cpp|cmake)\b`)},
	{"sql", regexp.MustCompile(`\b(sql|postgres(ql)?|mysql|sqlite)\b`)},
	{"shell", regexp.MustCompile(`\b(bash|shell script|\.sh\b|zsh)\b`)},
}

// frameworkPatterns maps framework tags to detection patterns.
var frameworkPatterns = []struct {
	Tag     string
	Pattern *regexp.Regexp
}{
	{"react", regexp.MustCompile(`\breact(\.js)?\b`)},
	{"vue", regexp.MustCompile(`\bvue(\.js)?\b`)},
	{"angular", regexp.MustCompile(`\bangular\b`)},
	{"nextjs", regexp.MustCompile(`\bnext\.?js\b`)},
	{"express", regexp.MustCompile(`\bexpress(\.js)?\b`)},
	{"django", regexp.MustCompile(`\bdjango\b`)},
	{"flask", regexp.MustCompile(`\bflask\b`)},
	{"spring", regexp.MustCompile(`\bspring( boot)?\b`)},
	{"rails", regexp.MustCompile(`\b(ruby on )?rails\b`)},
	{"gin", regexp.MustCompile(`\bgin-gonic\b|\bgin framework\b`)},
	{"kubernetes", regexp.MustCompile(`\b(kubernetes|k8s|kubectl)\b`)},
	{"docker", regexp.MustCompile(`\bdocker(file)?\b`)},
}

// categoryRule pairs a category with its label and text triggers.
type categoryRule struct {
	Category models.Category
	// Labels match against issue label names (substring, lowercased).
	Labels []string
	// Text matches against the combined issue text.
	Text *regexp.Regexp
}

// categoryRules is a fixed priority list. Labels are checked first for every
// rule in order; only if no label matches anywhere is text matching applied,
// again in order.
var categoryRules = []categoryRule{
	{
		Category: models.CategoryBug,
		Labels:   []string{"bug", "defect", "regression"},
		Text:     regexp.MustCompile(`\b(bug|broken|crash|error|fails?|not working|regression)\b`),
	},
	{
		Category: models.CategoryFeature,
		Labels:   []string{"feature", "enhancement"},
		Text:     regexp.MustCompile(`\b(feature|implement|add support|enhancement|would be (nice|great))\b`),
	},
	{
		Category: models.CategoryDocumentation,
		Labels:   []string{"documentation", "docs"},
		Text:     regexp.MustCompile(`\b(documentation|docs|readme|document(ing)?)\b`),
	},
	{
		Category: models.CategoryQuestion,
		Labels:   []string{"question", "help wanted"},
		Text:     regexp.MustCompile(`\b(how (do|to|can)|question|clarif(y|ication))\b`),
	},
	{
		Category: models.CategorySecurity,
		Labels:   []string{"security", "vulnerability"},
		Text:     regexp.MustCompile(`\b(security|vulnerab(le|ility)|exploit|cve-|injection|xss)\b`),
	},
	{
		Category: models.CategoryPerformance,
		Labels:   []string{"performance", "perf"},
		Text:     regexp.MustCompile(`\b(performance|slow|latency|memory leak|cpu usage|bottleneck)\b`),
	},
	{
		Category: models.CategoryTesting,
		Labels:   []string{"testing", "tests"},
		Text:     regexp.MustCompile(`\b(test coverage|flaky test|unit test|integration test)\b`),
	},
	{
		Category: models.CategoryRefactoring,
		Labels:   []string{"refactor", "refactoring", "tech debt"},
		Text:     regexp.MustCompile(`\b(refactor|clean ?up|technical debt|restructure)\b`),
	},
}

// Priority detection. Label checks run before text checks.
var (
	highPriorityLabels = []string{"critical", "urgent", "high"}
	lowPriorityLabels  = []string{"low"}

	highPriorityText = regexp.MustCompile(`\b(urgent|critical|blocker|blocking|asap|production (down|outage)|security vulnerab|data loss)\b`)
	lowPriorityText  = regexp.MustCompile(`\b(nice to have|minor|cosmetic|low priority|when you get a chance)\b`)
)

// Structural fallback heuristics used when no complexity indicator matches.
var (
	numberedStepPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s`)
	fencedBlockPattern  = regexp.MustCompile("```")
)
