// Package game implements the per-lobby state machine: phases, event
// handling, scoring and response fan-out descriptions. The engine is pure
// over (state, event): it performs no I/O and answers protocol misuse with
// an Error response instead of mutating state or panicking.
package game

import (
	"time"

	"github.com/kottz/spektrum-sub000/internal/ident"
)

// Event is one decoded client interaction handed to the engine.
type Event struct {
	LobbyID ident.LobbyID
	Sender  ident.PlayerID
	At      time.Time
	Action  Action
}

// Action is the closed set of things an event can ask for.
type Action interface {
	isAction()
}

// Join adds the sender to the lobby under a display name.
type Join struct {
	Name string
}

// Leave removes the sender from the lobby.
type Leave struct{}

// Disconnect records a lost connection. The session adapter synthesizes it
// on teardown; the player keeps their roster entry and may Reconnect later.
type Disconnect struct{}

// Answer submits the sender's answer for the current round.
type Answer struct {
	Answer string
}

// Reconnect asks for a full state snapshot for a returning player.
type Reconnect struct{}

// StartGame fixes the question order and moves the lobby into play.
// Admin only.
type StartGame struct{}

// StartRound begins the next round. SpecifiedAlternatives, when non-empty,
// overrides the correct answers for the round. Admin only.
type StartRound struct {
	SpecifiedAlternatives []string
}

// EndRound closes the current round and shows the scoreboard. Admin only.
type EndRound struct{}

// SkipQuestion advances past the upcoming question without playing it.
// Admin only.
type SkipQuestion struct{}

// EndGame finishes the game and shows the final scoreboard. Admin only.
type EndGame struct {
	Reason string
}

// CloseGame tears the lobby down. Admin only.
type CloseGame struct {
	Reason string
}

func (Join) isAction()         {}
func (Leave) isAction()        {}
func (Disconnect) isAction()   {}
func (Answer) isAction()       {}
func (Reconnect) isAction()    {}
func (StartGame) isAction()    {}
func (StartRound) isAction()   {}
func (EndRound) isAction()     {}
func (SkipQuestion) isAction() {}
func (EndGame) isAction()      {}
func (CloseGame) isAction()    {}
