package workflow

import (
	"testing"
	"time"
)

func TestEdgeDefined(t *testing.T) {
	tests := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{"registered to need more info", StateRegistered, StateNeedMoreInfo, true},
		{"registered to approved", StateRegistered, StateApproved, true},
		{"registered to rejected", StateRegistered, StateRejected, true},
		{"registered to cancelled", StateRegistered, StateCancelled, true},
		{"need more info to info submitted", StateNeedMoreInfo, StateInfoSubmitted, true},
		{"info submitted to approved", StateInfoSubmitted, StateApproved, true},
		{"info submitted back to need more info", StateInfoSubmitted, StateNeedMoreInfo, true},
		{"approved to discharge submitted", StateApproved, StateDischargeSubmitted, true},
		{"discharge submitted to discharge approved", StateDischargeSubmitted, StateDischargeApproved, true},
		{"discharge submitted to discharge rejected", StateDischargeSubmitted, StateDischargeRejected, true},
		{"skip straight to discharge", StateRegistered, StateDischargeSubmitted, false},
		{"approved back to need more info", StateApproved, StateNeedMoreInfo, false},
		{"self transition", StateRegistered, StateRegistered, false},
		{"out of rejected", StateRejected, StateRegistered, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EdgeDefined(tt.from, tt.to); got != tt.expected {
				t.Errorf("EdgeDefined(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestTerminalStatesHaveNoOutboundEdges(t *testing.T) {
	for _, from := range States() {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range States() {
			if EdgeDefined(from, to) {
				t.Errorf("terminal state %s has outbound edge to %s", from, to)
			}
		}
	}
}

func TestAdminAllowedOnEveryEdge(t *testing.T) {
	for edge, roles := range transitionTable {
		found := false
		for _, r := range roles {
			if r == RoleAdmin {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("edge %s -> %s does not permit admin", edge.From, edge.To)
		}
	}
}

func TestTransitionsFrom(t *testing.T) {
	tests := []struct {
		name     string
		from     State
		role     Role
		expected []State
	}{
		{
			name:     "processor from registered",
			from:     StateRegistered,
			role:     RoleProcessor,
			expected: []State{StateNeedMoreInfo, StateApproved, StateRejected},
		},
		{
			name:     "preauth executive from registered",
			from:     StateRegistered,
			role:     RolePreauthExecutive,
			expected: []State{StateNeedMoreInfo, StateCancelled},
		},
		{
			name:     "preauth executive from discharge submitted",
			from:     StateDischargeSubmitted,
			role:     RolePreauthExecutive,
			expected: nil,
		},
		{
			name:     "admin from approved",
			from:     StateApproved,
			role:     RoleAdmin,
			expected: []State{StateDischargeSubmitted, StateCancelled},
		},
		{
			name:     "terminal state has nothing",
			from:     StateRejected,
			role:     RoleAdmin,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransitionsFrom(tt.from, tt.role)
			if len(got) != len(tt.expected) {
				t.Fatalf("TransitionsFrom(%s, %s) = %v, want %v", tt.from, tt.role, got, tt.expected)
			}
			seen := make(map[State]bool, len(got))
			for _, s := range got {
				seen[s] = true
			}
			for _, s := range tt.expected {
				if !seen[s] {
					t.Errorf("TransitionsFrom(%s, %s) missing %s, got %v", tt.from, tt.role, s, got)
				}
			}
		})
	}
}

func TestSLAThreshold(t *testing.T) {
	tests := []struct {
		state    State
		expected time.Duration
		defined  bool
	}{
		{StateRegistered, 4 * time.Hour, true},
		{StateNeedMoreInfo, 24 * time.Hour, true},
		{StateInfoSubmitted, 8 * time.Hour, true},
		{StateApproved, 72 * time.Hour, true},
		{StateDischargeSubmitted, 12 * time.Hour, true},
		{StateRejected, 0, false},
		{StateCancelled, 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			got, ok := SLAThreshold(tt.state)
			if ok != tt.defined {
				t.Fatalf("SLAThreshold(%s) defined = %v, want %v", tt.state, ok, tt.defined)
			}
			if ok && got != tt.expected {
				t.Errorf("SLAThreshold(%s) = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}
