package workflow

import "time"

// Edge identifies a directed transition between two states.
type Edge struct {
	From State
	To   State
}

// transitionTable is the single source of truth for the preauth workflow:
// which state moves are defined at all, and which roles may perform each.
// Changing workflow rules means changing this table only. Admin is permitted
// on every edge.
var transitionTable = map[Edge][]Role{
	{StateRegistered, StateNeedMoreInfo}:              {RolePreauthExecutive, RoleProcessor, RoleAdmin},
	{StateRegistered, StateApproved}:                  {RoleProcessor, RoleAdmin},
	{StateRegistered, StateRejected}:                  {RoleProcessor, RoleAdmin},
	{StateRegistered, StateCancelled}:                 {RolePreauthExecutive, RoleAdmin},
	{StateNeedMoreInfo, StateInfoSubmitted}:           {RolePreauthExecutive, RoleAdmin},
	{StateNeedMoreInfo, StateCancelled}:               {RolePreauthExecutive, RoleAdmin},
	{StateInfoSubmitted, StateApproved}:               {RoleProcessor, RoleAdmin},
	{StateInfoSubmitted, StateRejected}:               {RoleProcessor, RoleAdmin},
	{StateInfoSubmitted, StateNeedMoreInfo}:           {RoleProcessor, RoleAdmin},
	{StateInfoSubmitted, StateCancelled}:              {RolePreauthExecutive, RoleAdmin},
	{StateApproved, StateDischargeSubmitted}:          {RolePreauthExecutive, RoleAdmin},
	{StateApproved, StateCancelled}:                   {RolePreauthExecutive, RoleAdmin},
	{StateDischargeSubmitted, StateDischargeApproved}: {RoleProcessor, RoleAdmin},
	{StateDischargeSubmitted, StateDischargeRejected}: {RoleProcessor, RoleAdmin},
}

// slaThresholds is the maximum dwell time allowed in each state before a
// transition out of it counts as an SLA breach. Terminal states have no
// threshold: nothing ever leaves them.
var slaThresholds = map[State]time.Duration{
	StateRegistered:         4 * time.Hour,
	StateNeedMoreInfo:       24 * time.Hour,
	StateInfoSubmitted:      8 * time.Hour,
	StateApproved:           72 * time.Hour,
	StateDischargeSubmitted: 12 * time.Hour,
}

// AllowedRoles returns the roles permitted on the edge, or nil if the edge
// is not defined in the table.
func AllowedRoles(from, to State) []Role {
	roles, ok := transitionTable[Edge{From: from, To: to}]
	if !ok {
		return nil
	}
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// EdgeDefined returns true if the table defines a transition from -> to
// for any role.
func EdgeDefined(from, to State) bool {
	_, ok := transitionTable[Edge{From: from, To: to}]
	return ok
}

// TransitionsFrom returns the target states reachable from the given state
// by the given role, in stable state order.
func TransitionsFrom(from State, role Role) []State {
	var out []State
	for _, to := range States() {
		for _, r := range transitionTable[Edge{From: from, To: to}] {
			if r == role {
				out = append(out, to)
				break
			}
		}
	}
	return out
}

// SLAThreshold returns the maximum dwell time for the state. ok is false
// when the state carries no threshold (terminal states).
func SLAThreshold(s State) (time.Duration, bool) {
	d, ok := slaThresholds[s]
	return d, ok
}
