package session

// State is a step of the session lifecycle.
type State int32

const (
	Connecting State = iota
	Registering
	Active
	Terminating
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Registering:
		return "registering"
	case Active:
		return "active"
	case Terminating:
		return "terminating"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
