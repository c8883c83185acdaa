package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/avialdo/triage/pkg/models"
)

// SaveAnalysis writes one analysis row.
func (s *Store) SaveAnalysis(a *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		INSERT INTO analyses (
			issue_id, issue_number, category, complexity, languages,
			frameworks, priority, estimated_ms, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.IssueID,
		a.IssueNumber,
		string(a.Category),
		string(a.Complexity),
		strings.Join(a.Languages, ","),
		strings.Join(a.Frameworks, ","),
		string(a.Priority),
		a.EstimatedDuration.Milliseconds(),
		a.Confidence,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	return nil
}

// AnalysisCount returns the number of stored analyses, optionally filtered
// by category (empty category counts everything).
func (s *Store) AnalysisCount(category models.Category) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	var err error
	if category == "" {
		err = s.conn.QueryRow("SELECT COUNT(*) FROM analyses").Scan(&count)
	} else {
		err = s.conn.QueryRow("SELECT COUNT(*) FROM analyses WHERE category = ?", string(category)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}

	return count, nil
}
