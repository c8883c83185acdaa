package orchestrator

import "github.com/avialdo/triage/pkg/models"

// computeQuality scores a finished run in [0,1]. Successful completion
// starts at 0.8, everything else at 0.2. Finishing inside half the timeout
// earns a bonus; brushing against the timeout or spilling stderr costs.
func computeQuality(rec *models.AgentRecord, stderrLines int) float64 {
	q := 0.2
	if rec.Status == models.AgentStatusCompleted {
		q = 0.8
	}

	if rec.Timeout > 0 {
		d := rec.Duration()
		if d < rec.Timeout/2 {
			q += 0.1
		} else if d > rec.Timeout*9/10 {
			q -= 0.1
		}
	}

	penalty := 0.05 * float64(stderrLines)
	if penalty > 0.2 {
		penalty = 0.2
	}
	q -= penalty

	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return q
}
