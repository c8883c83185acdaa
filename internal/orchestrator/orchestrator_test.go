package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avialdo/triage/internal/agent"
	"github.com/avialdo/triage/pkg/models"
)

// fakeHandle is a controllable stand-in for a worker process.
type fakeHandle struct {
	spec  agent.LaunchSpec
	lines chan models.LogLine
	done  chan struct{}
	code  int
	err   error
	once  sync.Once
}

func newFakeHandle(spec agent.LaunchSpec) *fakeHandle {
	return &fakeHandle{
		spec:  spec,
		lines: make(chan models.LogLine, 16),
		done:  make(chan struct{}),
	}
}

func (h *fakeHandle) Lines() <-chan models.LogLine { return h.lines }

func (h *fakeHandle) Wait() (int, error) {
	<-h.done
	return h.code, h.err
}

func (h *fakeHandle) Kill() error {
	h.exit(137, nil)
	return nil
}

func (h *fakeHandle) PID() int { return 1234 }

func (h *fakeHandle) emit(stream models.LogStream, text string) {
	h.lines <- models.LogLine{Stream: stream, Text: text, Timestamp: time.Now()}
}

func (h *fakeHandle) exit(code int, err error) {
	h.once.Do(func() {
		h.code = code
		h.err = err
		close(h.lines)
		close(h.done)
	})
}

// fakeLauncher hands out fakeHandles and records every launch.
type fakeLauncher struct {
	mu       sync.Mutex
	launchErr error
	launched chan *fakeHandle
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: make(chan *fakeHandle, 32)}
}

func (l *fakeLauncher) Launch(_ context.Context, spec agent.LaunchSpec) (agent.Handle, error) {
	l.mu.Lock()
	err := l.launchErr
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	h := newFakeHandle(spec)
	l.launched <- h
	return h, nil
}

func (l *fakeLauncher) next(t *testing.T) *fakeHandle {
	t.Helper()
	select {
	case h := <-l.launched:
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a launch")
		return nil
	}
}

func newTestOrchestrator(t *testing.T, cfg Config) (*Orchestrator, *fakeLauncher) {
	t.Helper()
	l := newFakeLauncher()
	cfg.Launcher = l
	cfg.Logger = NopLogger()
	o := New(cfg)
	t.Cleanup(func() { o.Stop() })
	return o, l
}

func waitEvent(t *testing.T, o *Orchestrator, typ EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-o.Events():
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}

func analysisWith(specs ...models.AgentSpec) *models.Analysis {
	return &models.Analysis{
		Category:       models.CategoryBug,
		Complexity:     models.ComplexityLow,
		Languages:      []string{"go"},
		RequiredAgents: specs,
	}
}

var testIssue = &models.Issue{Number: 42, Title: "Fix the parser"}

func TestSpawn_PerTypeCeiling(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{})

	analysis := analysisWith(models.AgentSpec{Type: models.AgentCoder, Count: 4})
	results, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess")
	if err != nil {
		t.Fatalf("SpawnAgentsForIssue: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	spawned, queued := 0, 0
	for _, r := range results {
		switch r.Outcome {
		case models.SpawnOutcomeSpawned:
			spawned++
		case models.SpawnOutcomeQueued:
			queued++
		}
	}
	if spawned != 3 || queued != 1 {
		t.Errorf("spawned=%d queued=%d, want 3 spawned 1 queued", spawned, queued)
	}
	if o.ActiveCount() != 3 {
		t.Errorf("ActiveCount = %d, want 3", o.ActiveCount())
	}
	if o.QueuedCount() != 1 {
		t.Errorf("QueuedCount = %d, want 1", o.QueuedCount())
	}
}

func TestSpawn_PerTypeFullQueuesOnlyThatSpec(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{})

	analysis := analysisWith(
		models.AgentSpec{Type: models.AgentCoordinator, Count: 2},
		models.AgentSpec{Type: models.AgentCoder},
	)
	results, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess")
	if err != nil {
		t.Fatalf("SpawnAgentsForIssue: %v", err)
	}

	// Coordinator allows one instance; the second queues but the coder
	// behind it still starts.
	want := []models.SpawnOutcome{
		models.SpawnOutcomeSpawned,
		models.SpawnOutcomeQueued,
		models.SpawnOutcomeSpawned,
	}
	for i, r := range results {
		if r.Outcome != want[i] {
			t.Errorf("results[%d].Outcome = %s, want %s", i, r.Outcome, want[i])
		}
	}
}

func TestSpawn_GlobalCeilingQueuesRemainingBatch(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{MaxConcurrentAgents: 1})

	analysis := analysisWith(
		models.AgentSpec{Type: models.AgentCoder},
		models.AgentSpec{Type: models.AgentTester},
		models.AgentSpec{Type: models.AgentDocumenter},
	)
	results, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess")
	if err != nil {
		t.Fatalf("SpawnAgentsForIssue: %v", err)
	}

	if results[0].Outcome != models.SpawnOutcomeSpawned {
		t.Errorf("first agent outcome = %s, want spawned", results[0].Outcome)
	}
	for _, r := range results[1:] {
		if r.Outcome != models.SpawnOutcomeQueued {
			t.Errorf("%s outcome = %s, want queued", r.Type, r.Outcome)
		}
	}
	if o.QueuedCount() != 2 {
		t.Errorf("QueuedCount = %d, want 2", o.QueuedCount())
	}
}

func TestQueuePromotionOnCompletion(t *testing.T) {
	o, l := newTestOrchestrator(t, Config{MaxConcurrentAgents: 1})

	analysis := analysisWith(
		models.AgentSpec{Type: models.AgentCoder},
		models.AgentSpec{Type: models.AgentTester},
	)
	if _, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess"); err != nil {
		t.Fatalf("SpawnAgentsForIssue: %v", err)
	}

	first := l.next(t)
	if first.spec.Type != models.AgentCoder {
		t.Fatalf("first launch type = %s, want coder", first.spec.Type)
	}

	first.exit(0, nil)

	ev := waitEvent(t, o, EventAgentCompleted)
	if ev.AgentType != models.AgentCoder {
		t.Errorf("completed agent type = %s, want coder", ev.AgentType)
	}

	second := l.next(t)
	if second.spec.Type != models.AgentTester {
		t.Errorf("promoted launch type = %s, want tester", second.spec.Type)
	}
	if o.QueuedCount() != 0 {
		t.Errorf("QueuedCount = %d, want 0 after promotion", o.QueuedCount())
	}
}

func TestTimeoutTerminatesAgent(t *testing.T) {
	o, l := newTestOrchestrator(t, Config{
		Limits: map[models.AgentType]Limits{
			models.AgentCoder: {MaxInstances: 1, Timeout: 30 * time.Millisecond},
		},
	})

	analysis := analysisWith(models.AgentSpec{Type: models.AgentCoder})
	if _, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess"); err != nil {
		t.Fatalf("SpawnAgentsForIssue: %v", err)
	}
	l.next(t)

	ev := waitEvent(t, o, EventAgentTerminated)
	if ev.Message != "timeout" {
		t.Errorf("termination reason = %q, want timeout", ev.Message)
	}
	if o.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0 after termination", o.ActiveCount())
	}
}

func TestExplicitTerminate(t *testing.T) {
	o, l := newTestOrchestrator(t, Config{})

	analysis := analysisWith(models.AgentSpec{Type: models.AgentCoder})
	results, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess")
	if err != nil {
		t.Fatalf("SpawnAgentsForIssue: %v", err)
	}
	l.next(t)

	if !o.Terminate(results[0].AgentID, "operator request") {
		t.Fatal("Terminate returned false for an active agent")
	}

	ev := waitEvent(t, o, EventAgentTerminated)
	if ev.Message != "operator request" {
		t.Errorf("termination reason = %q, want operator request", ev.Message)
	}

	if o.Terminate(results[0].AgentID, "again") {
		t.Error("Terminate should return false once the agent is gone")
	}
}

func TestLogCaptureAndOrder(t *testing.T) {
	o, l := newTestOrchestrator(t, Config{})

	analysis := analysisWith(models.AgentSpec{Type: models.AgentCoder})
	results, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess")
	if err != nil {
		t.Fatalf("SpawnAgentsForIssue: %v", err)
	}
	h := l.next(t)

	h.emit(models.LogStreamStdout, "starting")
	h.emit(models.LogStreamStderr, "warning")
	h.emit(models.LogStreamStdout, "done")

	// Wait until all three lines flow through the supervisor.
	for i := 0; i < 3; i++ {
		waitEvent(t, o, EventAgentLog)
	}

	rec, ok := o.Agent(results[0].AgentID)
	if !ok {
		t.Fatal("agent record missing while running")
	}
	if len(rec.Logs) != 3 {
		t.Fatalf("got %d log lines, want 3", len(rec.Logs))
	}
	wantText := []string{"starting", "warning", "done"}
	for i, line := range rec.Logs {
		if line.Text != wantText[i] {
			t.Errorf("Logs[%d].Text = %q, want %q", i, line.Text, wantText[i])
		}
	}

	h.exit(0, nil)
}

func TestSpawn_StartFailureIsTerminalError(t *testing.T) {
	o, l := newTestOrchestrator(t, Config{})
	l.launchErr = errors.New("exec: no such file")

	analysis := analysisWith(models.AgentSpec{Type: models.AgentCoder})
	results, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess")
	if err != nil {
		t.Fatalf("SpawnAgentsForIssue: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	ev := waitEvent(t, o, EventAgentError)
	if ev.AgentID != results[0].AgentID {
		t.Errorf("error event agent = %s, want %s", ev.AgentID, results[0].AgentID)
	}
	if o.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0 after a start failure", o.ActiveCount())
	}
}

func TestSpawnAfterStopFails(t *testing.T) {
	l := newFakeLauncher()
	o := New(Config{Launcher: l, Logger: NopLogger()})
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	analysis := analysisWith(models.AgentSpec{Type: models.AgentCoder})
	if _, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess"); err == nil {
		t.Fatal("SpawnAgentsForIssue should fail after Stop")
	}
}

func TestResultsPersisted(t *testing.T) {
	rec := &captureRecorder{}
	o, l := newTestOrchestrator(t, Config{Recorder: rec})

	analysis := analysisWith(models.AgentSpec{Type: models.AgentCoder})
	if _, err := o.SpawnAgentsForIssue(context.Background(), analysis, testIssue, "sess"); err != nil {
		t.Fatalf("SpawnAgentsForIssue: %v", err)
	}
	h := l.next(t)
	h.exit(0, nil)
	waitEvent(t, o, EventAgentCompleted)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.starts != 1 {
		t.Errorf("starts = %d, want 1", rec.starts)
	}
	if rec.results != 1 {
		t.Errorf("results = %d, want 1", rec.results)
	}
	if rec.lastQuality < 0.8 {
		t.Errorf("quality = %.2f, want at least 0.8 for a fast clean run", rec.lastQuality)
	}
	if rec.lastStatus != models.AgentStatusCompleted {
		t.Errorf("status = %s, want completed", rec.lastStatus)
	}
}

type captureRecorder struct {
	mu          sync.Mutex
	starts      int
	results     int
	lastQuality float64
	lastStatus  models.AgentStatus
}

func (r *captureRecorder) RecordAgentStart(*models.AgentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	return nil
}

func (r *captureRecorder) RecordAgentResult(rec *models.AgentRecord, quality float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results++
	r.lastQuality = quality
	r.lastStatus = rec.Status
	return nil
}

func TestComputeQuality(t *testing.T) {
	now := time.Now()
	end := func(d time.Duration) *time.Time {
		e := now.Add(d)
		return &e
	}

	tests := []struct {
		name        string
		status      models.AgentStatus
		dur         time.Duration
		timeout     time.Duration
		stderrLines int
		want        float64
	}{
		{"fast clean success", models.AgentStatusCompleted, time.Minute, time.Hour, 0, 0.9},
		{"slow success", models.AgentStatusCompleted, 55 * time.Minute, time.Hour, 0, 0.7},
		{"midrange success", models.AgentStatusCompleted, 40 * time.Minute, time.Hour, 0, 0.8},
		{"failure stays low", models.AgentStatusFailed, 40 * time.Minute, time.Hour, 0, 0.2},
		{"fast failure capped", models.AgentStatusFailed, time.Minute, time.Hour, 0, 0.3},
		{"stderr penalty", models.AgentStatusCompleted, 40 * time.Minute, time.Hour, 2, 0.7},
		{"stderr penalty capped", models.AgentStatusCompleted, 40 * time.Minute, time.Hour, 50, 0.6},
		{"floor at zero", models.AgentStatusTerminated, 59 * time.Minute, time.Hour, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &models.AgentRecord{
				Status:    tt.status,
				StartTime: now,
				EndTime:   end(tt.dur),
				Timeout:   tt.timeout,
			}
			got := computeQuality(rec, tt.stderrLines)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("computeQuality = %.3f, want %.3f", got, tt.want)
			}
		})
	}
}

// A run that did not complete never scores above 0.3 regardless of speed.
func TestComputeQuality_FailureCeiling(t *testing.T) {
	now := time.Now()
	for _, status := range []models.AgentStatus{
		models.AgentStatusFailed,
		models.AgentStatusError,
		models.AgentStatusTerminated,
	} {
		end := now.Add(time.Second)
		rec := &models.AgentRecord{
			Status:    status,
			StartTime: now,
			EndTime:   &end,
			Timeout:   time.Hour,
		}
		if q := computeQuality(rec, 0); q > 0.3 {
			t.Errorf("%s quality = %.2f, want at most 0.3", status, q)
		}
	}
}
