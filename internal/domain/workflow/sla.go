package workflow

import "time"

// SLAResult is the outcome of evaluating one completed dwell in a state.
type SLAResult struct {
	DurationMinutes int
	Breached        bool
	// EscalationLevel counts consecutive breaching transitions for the
	// claim. It increments from the prior level while breaches continue
	// and resets to zero on the first non-breaching transition.
	EscalationLevel int
}

// EvaluateSLA computes the dwell spent in prevState between enteredAt and
// now, compares it against prevState's threshold, and derives the new
// escalation level from the prior record's level. States without a
// threshold never breach.
func EvaluateSLA(prevState State, enteredAt, now time.Time, priorEscalation int) SLAResult {
	dwell := now.Sub(enteredAt)
	if dwell < 0 {
		dwell = 0
	}

	res := SLAResult{DurationMinutes: int(dwell / time.Minute)}

	threshold, ok := SLAThreshold(prevState)
	if !ok || dwell <= threshold {
		return res
	}

	res.Breached = true
	res.EscalationLevel = priorEscalation + 1
	return res
}
