package workflow

import (
	"testing"
	"time"
)

func TestEvaluateSLA(t *testing.T) {
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		prevState       State
		dwell           time.Duration
		priorEscalation int
		wantMinutes     int
		wantBreached    bool
		wantLevel       int
	}{
		{
			name:      "within threshold",
			prevState: StateRegistered, dwell: 2 * time.Hour,
			wantMinutes: 120, wantBreached: false, wantLevel: 0,
		},
		{
			name:      "exactly at threshold is not a breach",
			prevState: StateRegistered, dwell: 4 * time.Hour,
			wantMinutes: 240, wantBreached: false, wantLevel: 0,
		},
		{
			name:      "one minute over threshold",
			prevState: StateRegistered, dwell: 4*time.Hour + time.Minute,
			wantMinutes: 241, wantBreached: true, wantLevel: 1,
		},
		{
			name:      "consecutive breach escalates",
			prevState: StateInfoSubmitted, dwell: 10 * time.Hour, priorEscalation: 2,
			wantMinutes: 600, wantBreached: true, wantLevel: 3,
		},
		{
			name:      "on-time transition resets escalation",
			prevState: StateNeedMoreInfo, dwell: time.Hour, priorEscalation: 3,
			wantMinutes: 60, wantBreached: false, wantLevel: 0,
		},
		{
			name:      "state without threshold never breaches",
			prevState: StateRejected, dwell: 1000 * time.Hour, priorEscalation: 1,
			wantMinutes: 60000, wantBreached: false, wantLevel: 0,
		},
		{
			name:      "clock skew clamps to zero",
			prevState: StateRegistered, dwell: -30 * time.Minute,
			wantMinutes: 0, wantBreached: false, wantLevel: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateSLA(tt.prevState, base, base.Add(tt.dwell), tt.priorEscalation)
			if got.DurationMinutes != tt.wantMinutes {
				t.Errorf("DurationMinutes = %d, want %d", got.DurationMinutes, tt.wantMinutes)
			}
			if got.Breached != tt.wantBreached {
				t.Errorf("Breached = %v, want %v", got.Breached, tt.wantBreached)
			}
			if got.EscalationLevel != tt.wantLevel {
				t.Errorf("EscalationLevel = %d, want %d", got.EscalationLevel, tt.wantLevel)
			}
		})
	}
}
