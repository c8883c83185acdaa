package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avialdo/triage/pkg/models"
)

// Confidence smoothing factor for repeated pattern observations. New
// observations move the stored confidence by this fraction.
const patternSmoothing = 0.2

// PatternCharacteristics is the serialized shape of what a pattern matched.
type PatternCharacteristics struct {
	Category   models.Category   `json:"category"`
	Complexity models.Complexity `json:"complexity"`
	Languages  []string          `json:"languages"`
	Frameworks []string          `json:"frameworks"`
}

// PatternApproach is the serialized solution approach of a pattern.
type PatternApproach struct {
	Agents     []models.AgentSpec `json:"agents"`
	Tools      []string           `json:"tools"`
	DurationMs int64              `json:"duration_ms"`
}

// Pattern is one learning pattern row. Patterns are never deleted by the
// core; retention is an external concern.
type Pattern struct {
	ID              int64
	Key             string
	Type            string
	Characteristics PatternCharacteristics
	Confidence      float64
	Approach        PatternApproach
	UsageCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// patternKey builds the upsert key for an analysis: category, complexity,
// and the sorted language set.
func patternKey(a *models.Analysis) string {
	langs := append([]string{}, a.Languages...)
	sort.Strings(langs)
	return fmt.Sprintf("%s/%s/%s", a.Category, a.Complexity, strings.Join(langs, ","))
}

// RecordPattern upserts the learning pattern for an analysis: the first
// observation inserts a row, later ones bump usage_count and move the
// stored confidence toward the new observation.
func (s *Store) RecordPattern(a *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chars, err := json.Marshal(PatternCharacteristics{
		Category:   a.Category,
		Complexity: a.Complexity,
		Languages:  a.Languages,
		Frameworks: a.Frameworks,
	})
	if err != nil {
		return fmt.Errorf("marshal characteristics: %w", err)
	}

	approach, err := json.Marshal(PatternApproach{
		Agents:     a.RequiredAgents,
		Tools:      a.RequiredTools,
		DurationMs: a.EstimatedDuration.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("marshal approach: %w", err)
	}

	observed := float64(a.Confidence) / 100.0
	now := formatTime(time.Now())

	_, err = s.conn.Exec(`
		INSERT INTO learning_patterns (
			pattern_key, pattern_type, characteristics, confidence,
			approach, usage_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(pattern_key) DO UPDATE SET
			confidence = confidence + (excluded.confidence - confidence) * ?,
			approach = excluded.approach,
			usage_count = usage_count + 1,
			updated_at = excluded.updated_at
	`,
		patternKey(a),
		"issue_classification",
		string(chars),
		observed,
		string(approach),
		now,
		now,
		patternSmoothing,
	)
	if err != nil {
		return fmt.Errorf("upsert learning pattern: %w", err)
	}

	return nil
}

// PatternHint returns the highest stored confidence and its usage count for
// a (category, complexity) pair. Usage 0 means no history.
func (s *Store) PatternHint(category models.Category, complexity models.Complexity) (float64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		confidence float64
		usage      int
	)
	err := s.conn.QueryRow(`
		SELECT confidence, usage_count
		FROM learning_patterns
		WHERE pattern_key LIKE ? || '/' || ? || '/%'
		ORDER BY confidence DESC
		LIMIT 1
	`, string(category), string(complexity)).Scan(&confidence, &usage)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("query pattern hint: %w", err)
	}

	return confidence, usage, nil
}

// SimilarPatterns returns stored patterns for a (category, complexity) pair,
// most used first.
func (s *Store) SimilarPatterns(category models.Category, complexity models.Complexity) ([]Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`
		SELECT id, pattern_key, pattern_type, characteristics, confidence,
		       approach, usage_count, created_at, updated_at
		FROM learning_patterns
		WHERE pattern_key LIKE ? || '/' || ? || '/%'
		ORDER BY usage_count DESC, confidence DESC
	`, string(category), string(complexity))
	if err != nil {
		return nil, fmt.Errorf("query similar patterns: %w", err)
	}
	defer rows.Close()

	var patterns []Pattern
	for rows.Next() {
		var (
			p         Pattern
			chars     string
			approach  string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.Key, &p.Type, &chars, &p.Confidence,
			&approach, &p.UsageCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}

		if err := json.Unmarshal([]byte(chars), &p.Characteristics); err != nil {
			return nil, fmt.Errorf("unmarshal characteristics: %w", err)
		}
		if err := json.Unmarshal([]byte(approach), &p.Approach); err != nil {
			return nil, fmt.Errorf("unmarshal approach: %w", err)
		}

		p.CreatedAt, _ = parseTime(createdAt)
		p.UpdatedAt, _ = parseTime(updatedAt)
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}

	return patterns, nil
}
