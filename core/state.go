package core

// ConnectionState is the lifecycle of an agent's link to its substrate.
//
//	Disconnected -> Connecting -> Connected <-> Reconnecting
//	      any state -> Stopped (terminal for automatic reconnects)
//
// An explicit Start moves Stopped back to Connecting.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateStopped
)

// String returns the lower-case state name used in logs and metrics.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// AllStates lists every state in declaration order.
func AllStates() []ConnectionState {
	return []ConnectionState{StateDisconnected, StateConnecting, StateConnected, StateReconnecting, StateStopped}
}
