package models

import "time"

// Category is the broad class of work an issue calls for.
type Category string

const (
	CategoryBug           Category = "bug"
	CategoryFeature       Category = "feature"
	CategoryDocumentation Category = "documentation"
	CategoryQuestion      Category = "question"
	CategorySecurity      Category = "security"
	CategoryPerformance   Category = "performance"
	CategoryTesting       Category = "testing"
	CategoryRefactoring   Category = "refactoring"
	CategoryGeneral       Category = "general"
)

// Valid returns true if the category is a known value.
func (c Category) Valid() bool {
	switch c {
	case CategoryBug, CategoryFeature, CategoryDocumentation, CategoryQuestion,
		CategorySecurity, CategoryPerformance, CategoryTesting,
		CategoryRefactoring, CategoryGeneral:
		return true
	default:
		return false
	}
}

// Complexity is the estimated difficulty tier of an issue.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	default:
		return false
	}
}

// Priority is the urgency tier of an issue or agent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Analysis is the structured classification output for one issue.
type Analysis struct {
	// IssueID is the ID of the issue this analysis describes.
	IssueID string `json:"issue_id"`
	// IssueNumber is the issue number within its repository.
	IssueNumber int `json:"issue_number"`
	// Category is the detected work category.
	Category Category `json:"category"`
	// Complexity is the detected complexity tier.
	Complexity Complexity `json:"complexity"`
	// Languages are the detected language tags. Never empty; contains
	// "general" when nothing matched.
	Languages []string `json:"languages"`
	// Frameworks are the detected framework tags. May be empty.
	Frameworks []string `json:"frameworks"`
	// Priority is the resolved urgency.
	Priority Priority `json:"priority"`
	// EstimatedDuration is the projected resolution time. Always positive.
	EstimatedDuration time.Duration `json:"estimated_duration"`
	// RequiredAgents lists the agent specs needed, in spawn order.
	RequiredAgents []AgentSpec `json:"required_agents"`
	// RequiredTools lists tool identifiers the agents will need.
	RequiredTools []string `json:"required_tools"`
	// Confidence is the classification confidence, 0-100.
	Confidence int `json:"confidence"`
}
