package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/avialdo/triage/pkg/models"
)

// RecordAgentStart inserts the performance row for a newly admitted agent.
// The row is completed later by RecordAgentResult; the orchestrator
// guarantees a single writer per agent id.
func (s *Store) RecordAgentStart(rec *models.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var startedAt *string
	if !rec.StartTime.IsZero() {
		t := formatTime(rec.StartTime)
		startedAt = &t
	}

	_, err := s.conn.Exec(`
		INSERT INTO agent_performance (
			agent_id, session_id, issue_number, agent_type, status,
			started_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.SessionID,
		rec.IssueNumber,
		string(rec.Type),
		string(rec.Status),
		startedAt,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert agent performance: %w", err)
	}

	return nil
}

// RecordAgentResult updates the performance row with the terminal outcome.
func (s *Store) RecordAgentResult(rec *models.AgentRecord, quality float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endedAt *string
	if rec.EndTime != nil {
		t := formatTime(*rec.EndTime)
		endedAt = &t
	}

	var exitCode *int
	if rec.ExitCode != nil {
		exitCode = rec.ExitCode
	}

	success := 0
	if rec.ExitCode != nil && *rec.ExitCode == 0 {
		success = 1
	}

	result, err := s.conn.Exec(`
		UPDATE agent_performance SET
			status = ?,
			ended_at = ?,
			duration_ms = ?,
			exit_code = ?,
			success = ?,
			quality = ?,
			error = ?
		WHERE agent_id = ?
	`,
		string(rec.Status),
		endedAt,
		rec.Duration().Milliseconds(),
		exitCode,
		success,
		quality,
		nullString(rec.Error),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update agent performance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("agent performance row not found: %s", rec.ID)
	}

	return nil
}

// AgentStats summarizes stored runs for one agent type.
type AgentStats struct {
	Type        models.AgentType
	Runs        int
	Successes   int
	AvgQuality  float64
	AvgDuration time.Duration
}

// SuccessRate returns the success ratio in [0,1], or 0 for no runs.
func (st AgentStats) SuccessRate() float64 {
	if st.Runs == 0 {
		return 0
	}
	return float64(st.Successes) / float64(st.Runs)
}

// StatsByType returns aggregate stats for every agent type with at least one
// terminal run, keyed by type.
func (s *Store) StatsByType() (map[models.AgentType]AgentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`
		SELECT agent_type,
		       COUNT(*),
		       COALESCE(SUM(success), 0),
		       COALESCE(AVG(quality), 0),
		       COALESCE(AVG(duration_ms), 0)
		FROM agent_performance
		WHERE ended_at IS NOT NULL
		GROUP BY agent_type
	`)
	if err != nil {
		return nil, fmt.Errorf("query agent stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[models.AgentType]AgentStats)
	for rows.Next() {
		var (
			typ   string
			st    AgentStats
			avgMs float64
		)
		if err := rows.Scan(&typ, &st.Runs, &st.Successes, &st.AvgQuality, &avgMs); err != nil {
			return nil, fmt.Errorf("scan agent stats: %w", err)
		}
		st.Type = models.AgentType(typ)
		st.AvgDuration = time.Duration(avgMs) * time.Millisecond
		stats[st.Type] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent stats: %w", err)
	}

	return stats, nil
}

// AgentStatus returns the stored status for an agent id, or empty string if
// the row does not exist.
func (s *Store) AgentStatus(agentID string) (models.AgentStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var status string
	err := s.conn.QueryRow(
		"SELECT status FROM agent_performance WHERE agent_id = ?", agentID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query agent status: %w", err)
	}

	return models.AgentStatus(status), nil
}
