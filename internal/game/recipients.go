package game

import (
	"github.com/kottz/spektrum-sub000/internal/ident"
	"github.com/kottz/spektrum-sub000/internal/protocol"
)

// RecipientsKind discriminates how a response's recipient set is resolved.
type RecipientsKind int

const (
	// RecipientsSingle targets exactly one session.
	RecipientsSingle RecipientsKind = iota
	// RecipientsMultiple targets the listed sessions, de-duplicated,
	// in order.
	RecipientsMultiple
	// RecipientsAllExcept targets every attached session not listed.
	RecipientsAllExcept
	// RecipientsAll targets every attached session.
	RecipientsAll
)

// Recipients describes who receives a response. Resolution against the set
// of currently attached sessions happens in the multiplexer.
type Recipients struct {
	Kind RecipientsKind
	IDs  []ident.PlayerID
}

// Single targets one player.
func Single(id ident.PlayerID) Recipients {
	return Recipients{Kind: RecipientsSingle, IDs: []ident.PlayerID{id}}
}

// Multiple targets the listed players.
func Multiple(ids ...ident.PlayerID) Recipients {
	return Recipients{Kind: RecipientsMultiple, IDs: ids}
}

// AllExcept targets everyone but the listed players.
func AllExcept(ids ...ident.PlayerID) Recipients {
	return Recipients{Kind: RecipientsAllExcept, IDs: ids}
}

// All targets every attached session.
func All() Recipients {
	return Recipients{Kind: RecipientsAll}
}

// Response pairs an outbound frame with its recipient set.
type Response struct {
	To  Recipients
	Msg protocol.ServerMessage
}

func respond(to Recipients, msg protocol.ServerMessage) Response {
	return Response{To: to, Msg: msg}
}
