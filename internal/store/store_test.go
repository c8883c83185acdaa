package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/avialdo/triage/pkg/models"
)

// testStore opens a migrated store in a temp directory.
func testStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "triage.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func testAnalysis() *models.Analysis {
	return &models.Analysis{
		IssueID:           "issue-1",
		IssueNumber:       42,
		Category:          models.CategoryBug,
		Complexity:        models.ComplexityLow,
		Languages:         []string{"go"},
		Frameworks:        nil,
		Priority:          models.PriorityMedium,
		EstimatedDuration: 210 * time.Second,
		RequiredAgents: []models.AgentSpec{
			{Type: models.AgentCoder, Priority: models.PriorityMedium, Capabilities: []string{"go"}},
		},
		RequiredTools: []string{"file-read", "file-write"},
		Confidence:    85,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := testStore(t)
	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestSaveAnalysis_AndCount(t *testing.T) {
	s := testStore(t)

	if err := s.SaveAnalysis(testAnalysis()); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if err := s.SaveAnalysis(testAnalysis()); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	total, err := s.AnalysisCount("")
	if err != nil {
		t.Fatalf("AnalysisCount: %v", err)
	}
	if total != 2 {
		t.Errorf("total analyses = %d, want 2", total)
	}

	bugs, err := s.AnalysisCount(models.CategoryBug)
	if err != nil {
		t.Fatalf("AnalysisCount(bug): %v", err)
	}
	if bugs != 2 {
		t.Errorf("bug analyses = %d, want 2", bugs)
	}

	features, err := s.AnalysisCount(models.CategoryFeature)
	if err != nil {
		t.Fatalf("AnalysisCount(feature): %v", err)
	}
	if features != 0 {
		t.Errorf("feature analyses = %d, want 0", features)
	}
}

func TestRecordAgent_StartAndResult(t *testing.T) {
	s := testStore(t)

	start := time.Now().Add(-90 * time.Second)
	end := time.Now()
	exit := 0

	rec := &models.AgentRecord{
		ID:          "agent-1",
		Type:        models.AgentCoder,
		SessionID:   "sess-1",
		IssueNumber: 42,
		Status:      models.AgentStatusRunning,
		StartTime:   start,
	}

	if err := s.RecordAgentStart(rec); err != nil {
		t.Fatalf("RecordAgentStart: %v", err)
	}

	status, err := s.AgentStatus("agent-1")
	if err != nil {
		t.Fatalf("AgentStatus: %v", err)
	}
	if status != models.AgentStatusRunning {
		t.Errorf("status = %q, want running", status)
	}

	rec.Status = models.AgentStatusCompleted
	rec.EndTime = &end
	rec.ExitCode = &exit
	if err := s.RecordAgentResult(rec, 0.85); err != nil {
		t.Fatalf("RecordAgentResult: %v", err)
	}

	status, err = s.AgentStatus("agent-1")
	if err != nil {
		t.Fatalf("AgentStatus: %v", err)
	}
	if status != models.AgentStatusCompleted {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestRecordAgentResult_MissingRow(t *testing.T) {
	s := testStore(t)

	end := time.Now()
	exit := 1
	rec := &models.AgentRecord{
		ID:       "nope",
		Status:   models.AgentStatusFailed,
		EndTime:  &end,
		ExitCode: &exit,
	}

	if err := s.RecordAgentResult(rec, 0.2); err == nil {
		t.Error("RecordAgentResult should fail for a missing row")
	}
}

func TestAgentStatus_Missing(t *testing.T) {
	s := testStore(t)

	status, err := s.AgentStatus("ghost")
	if err != nil {
		t.Fatalf("AgentStatus: %v", err)
	}
	if status != "" {
		t.Errorf("status = %q, want empty for missing row", status)
	}
}

func TestStatsByType(t *testing.T) {
	s := testStore(t)

	add := func(id string, exit int, quality float64, dur time.Duration) {
		t.Helper()
		start := time.Now().Add(-dur)
		end := time.Now()
		rec := &models.AgentRecord{
			ID:          id,
			Type:        models.AgentCoder,
			SessionID:   "sess",
			IssueNumber: 1,
			Status:      models.AgentStatusRunning,
			StartTime:   start,
		}
		if err := s.RecordAgentStart(rec); err != nil {
			t.Fatalf("RecordAgentStart: %v", err)
		}
		rec.EndTime = &end
		rec.ExitCode = &exit
		if exit == 0 {
			rec.Status = models.AgentStatusCompleted
		} else {
			rec.Status = models.AgentStatusFailed
		}
		if err := s.RecordAgentResult(rec, quality); err != nil {
			t.Fatalf("RecordAgentResult: %v", err)
		}
	}

	add("a1", 0, 0.9, time.Minute)
	add("a2", 0, 0.8, time.Minute)
	add("a3", 1, 0.2, time.Minute)

	stats, err := s.StatsByType()
	if err != nil {
		t.Fatalf("StatsByType: %v", err)
	}

	coder, ok := stats[models.AgentCoder]
	if !ok {
		t.Fatal("coder stats missing")
	}
	if coder.Runs != 3 {
		t.Errorf("runs = %d, want 3", coder.Runs)
	}
	if coder.Successes != 2 {
		t.Errorf("successes = %d, want 2", coder.Successes)
	}
	if rate := coder.SuccessRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("success rate = %f, want ~0.667", rate)
	}
	if coder.AvgQuality < 0.6 || coder.AvgQuality > 0.65 {
		t.Errorf("avg quality = %f, want ~0.633", coder.AvgQuality)
	}
}

func TestRecordPattern_UpsertCounts(t *testing.T) {
	s := testStore(t)
	a := testAnalysis()

	if err := s.RecordPattern(a); err != nil {
		t.Fatalf("RecordPattern: %v", err)
	}
	if err := s.RecordPattern(a); err != nil {
		t.Fatalf("RecordPattern: %v", err)
	}
	if err := s.RecordPattern(a); err != nil {
		t.Fatalf("RecordPattern: %v", err)
	}

	patterns, err := s.SimilarPatterns(a.Category, a.Complexity)
	if err != nil {
		t.Fatalf("SimilarPatterns: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("patterns = %d, want 1 (upsert, not insert)", len(patterns))
	}
	if patterns[0].UsageCount != 3 {
		t.Errorf("usage count = %d, want 3", patterns[0].UsageCount)
	}
	if patterns[0].Characteristics.Category != models.CategoryBug {
		t.Errorf("characteristics category = %q, want bug", patterns[0].Characteristics.Category)
	}
	if patterns[0].Confidence <= 0 || patterns[0].Confidence > 1 {
		t.Errorf("confidence = %f, want in (0,1]", patterns[0].Confidence)
	}
}

func TestPatternHint(t *testing.T) {
	s := testStore(t)

	// No history yet.
	conf, usage, err := s.PatternHint(models.CategoryBug, models.ComplexityLow)
	if err != nil {
		t.Fatalf("PatternHint: %v", err)
	}
	if usage != 0 || conf != 0 {
		t.Errorf("empty store hint = (%f, %d), want (0, 0)", conf, usage)
	}

	a := testAnalysis()
	for i := 0; i < 4; i++ {
		if err := s.RecordPattern(a); err != nil {
			t.Fatalf("RecordPattern: %v", err)
		}
	}

	conf, usage, err = s.PatternHint(models.CategoryBug, models.ComplexityLow)
	if err != nil {
		t.Fatalf("PatternHint: %v", err)
	}
	if usage != 4 {
		t.Errorf("usage = %d, want 4", usage)
	}
	if conf <= 0 || conf > 1 {
		t.Errorf("confidence = %f, want in (0,1]", conf)
	}

	// Different pair stays empty.
	_, usage, err = s.PatternHint(models.CategorySecurity, models.ComplexityHigh)
	if err != nil {
		t.Fatalf("PatternHint: %v", err)
	}
	if usage != 0 {
		t.Errorf("unrelated pair usage = %d, want 0", usage)
	}
}
