package orchestrator

import (
	"time"

	"github.com/avialdo/triage/pkg/models"
)

// EventType identifies what happened to an agent.
type EventType string

const (
	// EventAgentSpawned fires when an agent is admitted and its process starts.
	EventAgentSpawned EventType = "agent_spawned"
	// EventAgentQueued fires when an agent is held back for capacity.
	EventAgentQueued EventType = "agent_queued"
	// EventAgentLog fires for every worker output line.
	EventAgentLog EventType = "agent_log"
	// EventAgentCompleted fires when a worker exits with status 0.
	EventAgentCompleted EventType = "agent_completed"
	// EventAgentFailed fires when a worker exits non-zero.
	EventAgentFailed EventType = "agent_failed"
	// EventAgentError fires when a worker cannot start or hits a
	// process-level error.
	EventAgentError EventType = "agent_error"
	// EventAgentTerminated fires on timeout or explicit termination.
	EventAgentTerminated EventType = "agent_terminated"
)

// Event is one observation from the orchestrator's event stream.
type Event struct {
	Type        EventType
	AgentID     string
	AgentType   models.AgentType
	SessionID   string
	IssueNumber int
	// Message carries reason or error text for terminal events.
	Message string
	// Line is set for EventAgentLog.
	Line *models.LogLine
	// Quality is set on terminal events, in [0,1].
	Quality float64
	// Duration is set on terminal events.
	Duration  time.Duration
	Timestamp time.Time
}

// Events returns the channel for receiving orchestrator events.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// DroppedEventCount returns how many events were dropped because the event
// channel was full.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.dropped.Load()
}

// emit delivers an event without blocking; slow consumers lose events
// rather than stalling supervision.
func (o *Orchestrator) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case o.events <- ev:
	default:
		o.dropped.Add(1)
	}
}
