package domain

// ConnectionState is the lifecycle state of a managed connection.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnStatus is a human-readable status notification from a connection.
type ConnStatus struct {
	State   ConnectionState `json:"state"`
	URL     string          `json:"url,omitempty"`
	Message string          `json:"message"`
}

// MutationResult is the outcome of delivering one payload variant.
type MutationResult struct {
	Index      int    `json:"index"`
	Payload    string `json:"payload"`
	Sent       bool   `json:"sent"`
	Frame      string `json:"frame,omitempty"`      // exact text transmitted
	Diagnostic string `json:"diagnostic,omitempty"` // failure reason, empty on success
}
