package game

import "fmt"

// StateError reports an event that is not legal in the current phase, or an
// admin action attempted by a non-admin sender. The engine's state is
// unchanged when one is returned.
type StateError struct {
	Phase  Phase
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal in phase %s: %s", e.Phase, e.Reason)
}

// ProtocolError reports an event naming a player or entity the lobby does
// not know about.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return e.Reason
}

func stateErrf(phase Phase, format string, args ...any) *StateError {
	return &StateError{Phase: phase, Reason: fmt.Sprintf(format, args...)}
}

func protocolErrf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}
