package voice

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

var validNext = map[State]map[State]bool{
	StateDisconnected: {StateConnecting: true},
	StateConnecting:   {StateConnected: true, StateDisconnected: true},
	StateConnected:    {StateDisconnected: true},
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}
