package orchestrator

import (
	"time"

	"github.com/avialdo/triage/pkg/models"
)

// Limits caps one agent type: how many instances may run at once and how
// long each gets before forced termination.
type Limits struct {
	MaxInstances int
	Timeout      time.Duration
}

// DefaultLimits returns the fixed per-type capacity table.
func DefaultLimits() map[models.AgentType]Limits {
	return map[models.AgentType]Limits{
		models.AgentCoordinator: {MaxInstances: 1, Timeout: 60 * time.Minute},
		models.AgentArchitect:   {MaxInstances: 2, Timeout: 30 * time.Minute},
		models.AgentCoder:       {MaxInstances: 3, Timeout: 45 * time.Minute},
		models.AgentTester:      {MaxInstances: 2, Timeout: 20 * time.Minute},
		models.AgentSecurity:    {MaxInstances: 1, Timeout: 30 * time.Minute},
		models.AgentDocumenter:  {MaxInstances: 1, Timeout: 15 * time.Minute},
		models.AgentDebugger:    {MaxInstances: 2, Timeout: 30 * time.Minute},
		models.AgentOptimizer:   {MaxInstances: 1, Timeout: 45 * time.Minute},
	}
}

// limitsFor returns the limits for a type, falling back to a conservative
// default for unknown types.
func (o *Orchestrator) limitsFor(typ models.AgentType) Limits {
	if l, ok := o.cfg.Limits[typ]; ok {
		return l
	}
	return Limits{MaxInstances: 1, Timeout: 30 * time.Minute}
}
