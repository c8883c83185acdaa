package models

import "time"

// AgentType identifies the specialization of a worker agent.
type AgentType string

const (
	AgentCoordinator AgentType = "coordinator"
	AgentArchitect   AgentType = "architect"
	AgentCoder       AgentType = "coder"
	AgentTester      AgentType = "tester"
	AgentSecurity    AgentType = "security"
	AgentDocumenter  AgentType = "documenter"
	AgentDebugger    AgentType = "debugger"
	AgentOptimizer   AgentType = "optimizer"
)

// Valid returns true if the agent type is a known value.
func (t AgentType) Valid() bool {
	switch t {
	case AgentCoordinator, AgentArchitect, AgentCoder, AgentTester,
		AgentSecurity, AgentDocumenter, AgentDebugger, AgentOptimizer:
		return true
	default:
		return false
	}
}

// AgentTypes lists all known agent types in a stable order.
func AgentTypes() []AgentType {
	return []AgentType{
		AgentCoordinator, AgentArchitect, AgentCoder, AgentTester,
		AgentSecurity, AgentDocumenter, AgentDebugger, AgentOptimizer,
	}
}

// AgentSpec declares a needed worker, not yet a running instance.
type AgentSpec struct {
	// Type is the agent specialization.
	Type AgentType `json:"type"`
	// Priority is the urgency inherited from the analysis.
	Priority Priority `json:"priority"`
	// Capabilities are free-form capability tags passed to the worker.
	Capabilities []string `json:"capabilities"`
	// Count is the desired instance count. Zero means one.
	Count int `json:"count,omitempty"`
}

// Instances returns the effective instance count for the spec.
func (s AgentSpec) Instances() int {
	if s.Count <= 0 {
		return 1
	}
	return s.Count
}

// AgentStatus represents the current state of a spawned agent.
type AgentStatus string

const (
	// AgentStatusQueued indicates the agent is waiting for capacity.
	AgentStatusQueued AgentStatus = "queued"
	// AgentStatusRunning indicates the worker process is executing.
	AgentStatusRunning AgentStatus = "running"
	// AgentStatusCompleted indicates the process exited with status 0.
	AgentStatusCompleted AgentStatus = "completed"
	// AgentStatusFailed indicates the process exited non-zero.
	AgentStatusFailed AgentStatus = "failed"
	// AgentStatusError indicates the process failed to start or hit a
	// process-level error.
	AgentStatusError AgentStatus = "error"
	// AgentStatusTerminated indicates a timeout or explicit termination.
	AgentStatusTerminated AgentStatus = "terminated"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusQueued, AgentStatusRunning, AgentStatusCompleted,
		AgentStatusFailed, AgentStatusError, AgentStatusTerminated:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions can leave this status.
func (s AgentStatus) Terminal() bool {
	switch s {
	case AgentStatusCompleted, AgentStatusFailed, AgentStatusError, AgentStatusTerminated:
		return true
	default:
		return false
	}
}

// LogStream identifies which output stream a log line came from.
type LogStream string

const (
	// LogStreamStdout is the worker's standard output.
	LogStreamStdout LogStream = "stdout"
	// LogStreamStderr is the worker's standard error.
	LogStreamStderr LogStream = "stderr"
)

// LogLine is one line of worker output.
type LogLine struct {
	Stream    LogStream `json:"stream"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentRecord tracks one spawned worker instance from admission through a
// terminal state. It is mutated only by the orchestrator's event handlers.
type AgentRecord struct {
	// ID is the unique identifier assigned at admission.
	ID string `json:"id"`
	// Type is the agent specialization.
	Type AgentType `json:"type"`
	// SessionID groups agents spawned for the same dispatch session.
	SessionID string `json:"session_id"`
	// IssueNumber is the issue the agent is working on.
	IssueNumber int `json:"issue_number"`
	// Capabilities are the capability tags the worker was started with.
	Capabilities []string `json:"capabilities"`
	// Priority is the urgency inherited from the spec.
	Priority Priority `json:"priority"`
	// Timeout is the supervision deadline for the worker process.
	Timeout time.Duration `json:"timeout"`
	// Status is the current lifecycle state.
	Status AgentStatus `json:"status"`
	// StartTime is when the worker process started.
	StartTime time.Time `json:"start_time"`
	// EndTime is when the agent reached a terminal state. Nil until then.
	EndTime *time.Time `json:"end_time,omitempty"`
	// ExitCode is the process exit code. Nil until the process exits.
	ExitCode *int `json:"exit_code,omitempty"`
	// Logs holds worker output lines in delivery order.
	Logs []LogLine `json:"logs,omitempty"`
	// Error holds the process-level error message for error status.
	Error string `json:"error,omitempty"`
}

// Duration returns the elapsed run time, or 0 if the agent never started
// or has not finished.
func (r *AgentRecord) Duration() time.Duration {
	if r.StartTime.IsZero() || r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// SpawnOutcome describes how a single spec fared at admission.
type SpawnOutcome string

const (
	// SpawnOutcomeSpawned means the agent was admitted and started.
	SpawnOutcomeSpawned SpawnOutcome = "spawned"
	// SpawnOutcomeQueued means the agent is waiting for capacity.
	SpawnOutcomeQueued SpawnOutcome = "queued"
)

// SpawnResult is the per-spec outcome of a dispatch call.
type SpawnResult struct {
	// AgentID is the admission-assigned identifier.
	AgentID string `json:"agent_id"`
	// Type is the agent specialization.
	Type AgentType `json:"type"`
	// Outcome is spawned or queued.
	Outcome SpawnOutcome `json:"outcome"`
}
