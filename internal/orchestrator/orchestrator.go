package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/avialdo/triage/internal/agent"
	"github.com/avialdo/triage/pkg/models"
)

// Recorder persists agent lifecycle outcomes. Implemented by the store
// package; a nil Recorder disables persistence.
type Recorder interface {
	// RecordAgentStart inserts the performance row for an admitted agent.
	RecordAgentStart(rec *models.AgentRecord) error
	// RecordAgentResult updates the row with the terminal outcome.
	RecordAgentResult(rec *models.AgentRecord, quality float64) error
}

// Config contains configuration options for the Orchestrator.
type Config struct {
	// MaxConcurrentAgents is the global ceiling on running agents.
	MaxConcurrentAgents int
	// Limits caps instances and timeout per agent type.
	Limits map[models.AgentType]Limits
	// WorkerCommand is the wrapper executable spawned per agent.
	WorkerCommand string
	// AutoMode is passed through to workers.
	AutoMode bool
	// WorkDir is the working directory for workers. Empty means inherit.
	WorkDir string
	// Launcher starts worker processes. Defaults to ExecLauncher.
	Launcher agent.Launcher
	// Recorder persists outcomes. May be nil.
	Recorder Recorder
	// Logger receives debug output. May be nil.
	Logger *DebugLogger
}

// defaultMaxConcurrentAgents is the global ceiling when none is configured.
const defaultMaxConcurrentAgents = 10

// agentRun is the supervision state for one running agent.
type agentRun struct {
	record      *models.AgentRecord
	handle      agent.Handle
	timer       *time.Timer
	stderrLines int
	termReason  string
}

// queuedAgent is an admission request waiting for capacity.
type queuedAgent struct {
	record   *models.AgentRecord
	analysis *models.Analysis
	issue    *models.Issue
}

// Orchestrator tracks running agents and enforces concurrency ceilings.
// All mutable state is owned by the orchestrator and guarded by a single
// mutex; mutation happens only in its own event handlers.
type Orchestrator struct {
	cfg Config

	mu         sync.Mutex
	active     map[string]*agentRun
	typeCounts map[models.AgentType]int
	queue      []*queuedAgent
	stopped    bool

	events  chan Event
	dropped atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Orchestrator. Zero-value config fields get defaults.
func New(cfg Config) *Orchestrator {
	if cfg.MaxConcurrentAgents <= 0 {
		cfg.MaxConcurrentAgents = defaultMaxConcurrentAgents
	}
	if cfg.Limits == nil {
		cfg.Limits = DefaultLimits()
	}
	if cfg.WorkerCommand == "" {
		cfg.WorkerCommand = "swarm-agent"
	}
	if cfg.Launcher == nil {
		cfg.Launcher = agent.NewExecLauncher()
	}
	if cfg.Logger != nil {
		setPackageLogger(cfg.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		cfg:        cfg,
		active:     make(map[string]*agentRun),
		typeCounts: make(map[models.AgentType]int),
		events:     make(chan Event, 100),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// NewSessionID returns a fresh short session identifier.
func NewSessionID() string {
	return uuid.New().String()[:8]
}

// SpawnAgentsForIssue attempts admission for every spec in the analysis, in
// order, expanding multi-instance specs. It returns one SpawnResult per
// instance. Spawn failures do not surface here; they are visible as
// terminal error status on the agent record. The context bounds the
// admission call only; started workers run under the orchestrator's own
// lifetime.
func (o *Orchestrator) SpawnAgentsForIssue(ctx context.Context, analysis *models.Analysis, issue *models.Issue, sessionID string) ([]models.SpawnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return nil, fmt.Errorf("orchestrator is stopped")
	}

	var results []models.SpawnResult

	// Once the global ceiling is hit, the entire remaining batch queues.
	globalFull := false

	for _, spec := range analysis.RequiredAgents {
		for i := 0; i < spec.Instances(); i++ {
			rec := o.newRecord(spec, sessionID, issue)

			if globalFull || len(o.active) >= o.cfg.MaxConcurrentAgents {
				globalFull = true
				o.enqueueLocked(rec, analysis, issue)
				results = append(results, models.SpawnResult{
					AgentID: rec.ID, Type: rec.Type, Outcome: models.SpawnOutcomeQueued,
				})
				continue
			}

			if o.typeCounts[spec.Type] >= o.limitsFor(spec.Type).MaxInstances {
				o.enqueueLocked(rec, analysis, issue)
				results = append(results, models.SpawnResult{
					AgentID: rec.ID, Type: rec.Type, Outcome: models.SpawnOutcomeQueued,
				})
				continue
			}

			o.admitLocked(rec, analysis, issue)
			results = append(results, models.SpawnResult{
				AgentID: rec.ID, Type: rec.Type, Outcome: models.SpawnOutcomeSpawned,
			})
		}
	}

	return results, nil
}

// newRecord builds the tracking record for one admission attempt.
func (o *Orchestrator) newRecord(spec models.AgentSpec, sessionID string, issue *models.Issue) *models.AgentRecord {
	return &models.AgentRecord{
		ID:           uuid.New().String()[:8],
		Type:         spec.Type,
		SessionID:    sessionID,
		IssueNumber:  issue.Number,
		Capabilities: append([]string{}, spec.Capabilities...),
		Priority:     spec.Priority,
		Timeout:      o.limitsFor(spec.Type).Timeout,
		Status:       models.AgentStatusQueued,
	}
}

// enqueueLocked appends an admission request to the queue.
// Caller must hold o.mu.
func (o *Orchestrator) enqueueLocked(rec *models.AgentRecord, analysis *models.Analysis, issue *models.Issue) {
	o.queue = append(o.queue, &queuedAgent{record: rec, analysis: analysis, issue: issue})
	debugLog("[orchestrator] queued agent %s (%s), queue depth %d", rec.ID, rec.Type, len(o.queue))
	o.emit(Event{
		Type: EventAgentQueued, AgentID: rec.ID, AgentType: rec.Type,
		SessionID: rec.SessionID, IssueNumber: rec.IssueNumber,
	})
}

// admitLocked starts the worker process for an admitted record and begins
// supervision. Start failures become terminal error status.
// Caller must hold o.mu.
func (o *Orchestrator) admitLocked(rec *models.AgentRecord, analysis *models.Analysis, issue *models.Issue) {
	spec := agent.LaunchSpec{
		Command:      o.cfg.WorkerCommand,
		Type:         rec.Type,
		Description:  agent.TaskDescription(rec.Type, analysis, issue),
		Capabilities: rec.Capabilities,
		SessionID:    rec.SessionID,
		AgentID:      rec.ID,
		IssueNumber:  rec.IssueNumber,
		AutoMode:     o.cfg.AutoMode,
		Dir:          o.cfg.WorkDir,
	}

	handle, err := o.cfg.Launcher.Launch(o.ctx, spec)
	if err != nil {
		now := time.Now()
		rec.Status = models.AgentStatusError
		rec.Error = err.Error()
		rec.EndTime = &now
		debugLog("[orchestrator] agent %s (%s) failed to start: %v", rec.ID, rec.Type, err)

		o.recordStart(rec)
		o.recordResult(rec, computeQuality(rec, 0))
		o.emit(Event{
			Type: EventAgentError, AgentID: rec.ID, AgentType: rec.Type,
			SessionID: rec.SessionID, IssueNumber: rec.IssueNumber,
			Message: rec.Error,
		})
		return
	}

	rec.Status = models.AgentStatusRunning
	rec.StartTime = time.Now()

	run := &agentRun{record: rec, handle: handle}
	o.active[rec.ID] = run
	o.typeCounts[rec.Type]++

	o.recordStart(rec)

	timeout := rec.Timeout
	run.timer = time.AfterFunc(timeout, func() {
		o.Terminate(rec.ID, "timeout")
	})

	o.wg.Add(1)
	go o.supervise(run)

	debugLog("[orchestrator] spawned agent %s (%s) pid=%d timeout=%s",
		rec.ID, rec.Type, handle.PID(), timeout)
	o.emit(Event{
		Type: EventAgentSpawned, AgentID: rec.ID, AgentType: rec.Type,
		SessionID: rec.SessionID, IssueNumber: rec.IssueNumber,
	})
}

// supervise pumps the worker's output and handles its exit.
func (o *Orchestrator) supervise(run *agentRun) {
	defer o.wg.Done()

	for line := range run.handle.Lines() {
		o.appendLog(run, line)
	}

	code, err := run.handle.Wait()
	o.finish(run.record.ID, code, err)
}

// appendLog records one output line in delivery order. Pure bookkeeping,
// never blocking.
func (o *Orchestrator) appendLog(run *agentRun, line models.LogLine) {
	o.mu.Lock()
	run.record.Logs = append(run.record.Logs, line)
	if line.Stream == models.LogStreamStderr {
		run.stderrLines++
	}
	rec := run.record
	o.mu.Unlock()

	o.emit(Event{
		Type: EventAgentLog, AgentID: rec.ID, AgentType: rec.Type,
		SessionID: rec.SessionID, IssueNumber: rec.IssueNumber,
		Line: &line,
	})
}

// finish moves a run to its terminal state, scores it, persists the
// outcome, and tries to admit queued agents into the freed capacity.
func (o *Orchestrator) finish(agentID string, code int, waitErr error) {
	o.mu.Lock()

	run, ok := o.active[agentID]
	if !ok {
		o.mu.Unlock()
		return
	}
	delete(o.active, agentID)
	o.typeCounts[run.record.Type]--
	if run.timer != nil {
		run.timer.Stop()
	}

	rec := run.record
	if rec.EndTime == nil {
		now := time.Now()
		rec.EndTime = &now
	}

	if rec.Status.Terminal() {
		// A termination raced the natural exit and wins; keep the exit
		// code for the record.
		if waitErr == nil {
			rec.ExitCode = &code
		}
	} else {
		switch {
		case waitErr != nil:
			rec.Status = models.AgentStatusError
			rec.Error = waitErr.Error()
		case code == 0:
			rec.Status = models.AgentStatusCompleted
			rec.ExitCode = &code
		default:
			rec.Status = models.AgentStatusFailed
			rec.ExitCode = &code
		}
	}

	quality := computeQuality(rec, run.stderrLines)
	termReason := run.termReason
	o.mu.Unlock()

	o.recordResult(rec, quality)

	ev := Event{
		AgentID: rec.ID, AgentType: rec.Type,
		SessionID: rec.SessionID, IssueNumber: rec.IssueNumber,
		Quality: quality, Duration: rec.Duration(),
	}
	switch rec.Status {
	case models.AgentStatusCompleted:
		ev.Type = EventAgentCompleted
	case models.AgentStatusFailed:
		ev.Type = EventAgentFailed
	case models.AgentStatusTerminated:
		ev.Type = EventAgentTerminated
		ev.Message = termReason
	default:
		ev.Type = EventAgentError
		ev.Message = rec.Error
	}
	debugLog("[orchestrator] agent %s (%s) finished: status=%s quality=%.2f duration=%s",
		rec.ID, rec.Type, rec.Status, quality, rec.Duration())
	o.emit(ev)

	o.fillFromQueue()
}

// Terminate stops a running agent. The reason is recorded on the terminal
// event; "timeout" is used by the supervision timer. Returns false if the
// agent is not active.
func (o *Orchestrator) Terminate(agentID, reason string) bool {
	o.mu.Lock()
	run, ok := o.active[agentID]
	if !ok || run.record.Status.Terminal() {
		o.mu.Unlock()
		return false
	}

	now := time.Now()
	run.record.Status = models.AgentStatusTerminated
	run.record.EndTime = &now
	run.termReason = reason
	handle := run.handle
	o.mu.Unlock()

	debugLog("[orchestrator] terminating agent %s: %s", agentID, reason)

	// Output from the dying process is still logged by the supervisor;
	// cleanup happens when its Wait returns.
	_ = handle.Kill()
	return true
}

// fillFromQueue admits queued agents while capacity allows, skipping
// entries whose type is still at its ceiling. Called after every terminal
// event; there is no periodic sweep.
func (o *Orchestrator) fillFromQueue() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return
	}

	i := 0
	for i < len(o.queue) {
		if len(o.active) >= o.cfg.MaxConcurrentAgents {
			break
		}

		qa := o.queue[i]
		if o.typeCounts[qa.record.Type] >= o.limitsFor(qa.record.Type).MaxInstances {
			i++
			continue
		}

		o.queue = append(o.queue[:i], o.queue[i+1:]...)
		o.admitLocked(qa.record, qa.analysis, qa.issue)
	}
}

// Agents returns a snapshot of all active agent records.
func (o *Orchestrator) Agents() []models.AgentRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.AgentRecord, 0, len(o.active))
	for _, run := range o.active {
		out = append(out, *run.record)
	}
	return out
}

// Agent returns a snapshot of one active agent record.
func (o *Orchestrator) Agent(agentID string) (models.AgentRecord, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	run, ok := o.active[agentID]
	if !ok {
		return models.AgentRecord{}, false
	}
	return *run.record, true
}

// ActiveCount returns the number of currently running agents.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// QueuedCount returns the number of agents waiting for capacity.
func (o *Orchestrator) QueuedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Stop terminates all active agents, waits for supervision to drain, and
// closes the event channel. The orchestrator cannot be reused afterwards.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true

	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		o.Terminate(id, "shutdown")
	}

	o.cancel()
	o.wg.Wait()
	close(o.events)

	return nil
}

// recordStart persists the admission row. Persistence failures are logged,
// not raised; supervision must not stall on the store.
func (o *Orchestrator) recordStart(rec *models.AgentRecord) {
	if o.cfg.Recorder == nil {
		return
	}
	if err := o.cfg.Recorder.RecordAgentStart(rec); err != nil {
		debugLog("[orchestrator] record start %s: %v", rec.ID, err)
	}
}

// recordResult persists the terminal outcome.
func (o *Orchestrator) recordResult(rec *models.AgentRecord, quality float64) {
	if o.cfg.Recorder == nil {
		return
	}
	if err := o.cfg.Recorder.RecordAgentResult(rec, quality); err != nil {
		debugLog("[orchestrator] record result %s: %v", rec.ID, err)
	}
}
