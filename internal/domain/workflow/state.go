package workflow

// State represents a preauth state in the claim lifecycle
type State string

const (
	StateRegistered         State = "Registered"
	StateNeedMoreInfo       State = "NeedMoreInfo"
	StateInfoSubmitted      State = "InfoSubmitted"
	StateApproved           State = "Approved"
	StateRejected           State = "Rejected"
	StateDischargeSubmitted State = "DischargeSubmitted"
	StateDischargeApproved  State = "DischargeApproved"
	StateDischargeRejected  State = "DischargeRejected"
	StateCancelled          State = "Cancelled"
)

var validStates = map[State]bool{
	StateRegistered:         true,
	StateNeedMoreInfo:       true,
	StateInfoSubmitted:      true,
	StateApproved:           true,
	StateRejected:           true,
	StateDischargeSubmitted: true,
	StateDischargeApproved:  true,
	StateDischargeRejected:  true,
	StateCancelled:          true,
}

var terminalStates = map[State]bool{
	StateRejected:          true,
	StateCancelled:         true,
	StateDischargeApproved: true,
	StateDischargeRejected: true,
}

// States returns every valid state in declaration order.
func States() []State {
	return []State{
		StateRegistered,
		StateNeedMoreInfo,
		StateInfoSubmitted,
		StateApproved,
		StateRejected,
		StateDischargeSubmitted,
		StateDischargeApproved,
		StateDischargeRejected,
		StateCancelled,
	}
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid preauth state
func (s State) IsValid() bool {
	return validStates[s]
}
