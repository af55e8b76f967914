package session

// Status is the lifecycle state of a voice session as observed by the server.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusSpeaking     Status = "speaking"
	StatusListening    Status = "listening"
)

// ParseStatus maps a wire status string onto the lifecycle enum.
// Unknown strings are reported as not ok and must be ignored by callers.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusDisconnected, StatusConnecting, StatusConnected, StatusSpeaking, StatusListening:
		return Status(s), true
	default:
		return "", false
	}
}

// Active reports whether the status counts as an established conversation.
// Only a drop from an active status to disconnected is treated as a
// terminated call; connecting->disconnected is a failed setup.
func (s Status) Active() bool {
	switch s {
	case StatusConnected, StatusSpeaking, StatusListening:
		return true
	default:
		return false
	}
}
