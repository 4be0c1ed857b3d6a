package radio

// State is the radio operational state. Exactly one state is active at
// any time; every transition is a total function of (current state,
// requested operation).
type State int

const (
	StateDisabled State = iota
	StateSleep
	StateIdle
	StateReceive
	StateTransmit
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "Disabled"
	case StateSleep:
		return "Sleep"
	case StateIdle:
		return "Idle"
	case StateReceive:
		return "Receive"
	case StateTransmit:
		return "Transmit"
	default:
		return "INVALID"
	}
}
