package models

import (
	"testing"
	"time"
)

func TestAgentType_Valid(t *testing.T) {
	for _, typ := range AgentTypes() {
		if !typ.Valid() {
			t.Errorf("AgentType %q should be valid", typ)
		}
	}

	if AgentType("manager").Valid() {
		t.Error("unknown agent type should not be valid")
	}
	if AgentType("").Valid() {
		t.Error("empty agent type should not be valid")
	}
}

func TestAgentStatus_Valid(t *testing.T) {
	valid := []AgentStatus{
		AgentStatusQueued, AgentStatusRunning, AgentStatusCompleted,
		AgentStatusFailed, AgentStatusError, AgentStatusTerminated,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("status %q should be valid", s)
		}
	}

	if AgentStatus("paused").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestAgentStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   AgentStatus
		terminal bool
	}{
		{AgentStatusQueued, false},
		{AgentStatusRunning, false},
		{AgentStatusCompleted, true},
		{AgentStatusFailed, true},
		{AgentStatusError, true},
		{AgentStatusTerminated, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestAgentSpec_Instances(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  int
	}{
		{"zero defaults to one", 0, 1},
		{"negative defaults to one", -2, 1},
		{"explicit count", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := AgentSpec{Type: AgentCoder, Count: tt.count}
			if got := spec.Instances(); got != tt.want {
				t.Errorf("Instances() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAgentRecord_Duration(t *testing.T) {
	start := time.Now()
	end := start.Add(90 * time.Second)

	rec := &AgentRecord{StartTime: start, EndTime: &end}
	if got := rec.Duration(); got != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", got)
	}

	// No end time yet
	running := &AgentRecord{StartTime: start}
	if got := running.Duration(); got != 0 {
		t.Errorf("Duration() before end = %v, want 0", got)
	}

	// Never started
	queued := &AgentRecord{EndTime: &end}
	if got := queued.Duration(); got != 0 {
		t.Errorf("Duration() without start = %v, want 0", got)
	}
}
