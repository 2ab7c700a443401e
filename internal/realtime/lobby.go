// Package realtime connects websocket sessions to lobby engines: it owns
// the per-lobby connection multiplexer and the session protocol adapter
// that translates wire frames to engine events and back.
package realtime

import (
	"github.com/kottz/spektrum-sub000/internal/game"
	"github.com/kottz/spektrum-sub000/internal/ident"
)

// Lobby pairs one engine with its connection multiplexer. It is the handle
// the registry stores and the session adapter operates on.
type Lobby struct {
	Engine *game.Engine
	Mux    *Mux
}

// Broadcast delivers one engine call's responses through the multiplexer.
func (l *Lobby) Broadcast(responses []game.Response) {
	l.Mux.Broadcast(responses)
}

// Resolver is the subset of the lobby registry a session needs. Lookups are
// read-only; Remove tears a lobby down after an admin CloseGame.
type Resolver interface {
	ByJoinCode(code string) (*Lobby, bool)
	ByID(id ident.LobbyID) (*Lobby, bool)
	Remove(id ident.LobbyID)
}
