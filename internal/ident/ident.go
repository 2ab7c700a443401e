// Package ident provides the opaque identifiers and the monotonic clock
// used throughout the lobby runtime. Ids are UUIDv4 under the hood but
// callers treat them as opaque tokens.
package ident

import (
	"time"

	"github.com/google/uuid"
)

// LobbyID identifies one game lobby.
type LobbyID string

// PlayerID identifies a player within a lobby. The admin's PlayerID doubles
// as the admin credential issued at lobby creation.
type PlayerID string

// SessionID identifies one websocket session. Before a session joins a
// lobby it carries a temporary SessionID; after a join it adopts the
// player's id.
type SessionID string

// NewLobbyID returns a fresh random lobby id.
func NewLobbyID() LobbyID {
	return LobbyID(uuid.NewString())
}

// NewPlayerID returns a fresh random player id.
func NewPlayerID() PlayerID {
	return PlayerID(uuid.NewString())
}

// NewSessionID returns a fresh random session id.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// ParseLobbyID validates that s is a well-formed lobby id.
func ParseLobbyID(s string) (LobbyID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return LobbyID(id.String()), nil
}

// ParsePlayerID validates that s is a well-formed player id.
func ParsePlayerID(s string) (PlayerID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return PlayerID(id.String()), nil
}

// Clock abstracts time for round timing so the engine can be tested with a
// fixed clock. Now must be monotonic between calls on the same Clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now, which carries a
// monotonic reading on all supported platforms.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
