// Package protocol defines the JSON text-frame wire protocol spoken between
// clients and the server. Every frame is a flat JSON object discriminated by
// a "type" field.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client → server frame types.
const (
	TypeJoinLobby   = "JoinLobby"
	TypeReconnect   = "Reconnect"
	TypeLeave       = "Leave"
	TypeAnswer      = "Answer"
	TypeAdminAction = "AdminAction"
)

// Admin action types carried inside an AdminAction frame.
const (
	ActionStartGame    = "StartGame"
	ActionStartRound   = "StartRound"
	ActionEndRound     = "EndRound"
	ActionSkipQuestion = "SkipQuestion"
	ActionEndGame      = "EndGame"
	ActionCloseGame    = "CloseGame"
)

// ClientMessage is a decoded inbound frame. Exactly one of the payload
// pointers is set, matching Type.
type ClientMessage struct {
	Type        string
	JoinLobby   *JoinLobby
	Reconnect   *Reconnect
	Leave       *Leave
	Answer      *Answer
	AdminAction *AdminAction
}

// JoinLobby is the initial attach frame. AdminID is present iff the session
// is the lobby administrator.
type JoinLobby struct {
	JoinCode string `json:"join_code"`
	AdminID  string `json:"admin_id,omitempty"`
	Name     string `json:"name"`
}

// Reconnect rebinds a prior player id to a fresh session.
type Reconnect struct {
	LobbyID  string `json:"lobby_id"`
	PlayerID string `json:"player_id"`
}

// Leave announces a voluntary departure.
type Leave struct {
	LobbyID string `json:"lobby_id"`
}

// Answer submits one answer for the current round.
type Answer struct {
	LobbyID string `json:"lobby_id"`
	Answer  string `json:"answer"`
}

// AdminAction carries one privileged lobby operation.
type AdminAction struct {
	LobbyID string      `json:"lobby_id"`
	Action  AdminDetail `json:"action"`
}

// AdminDetail is the nested action object of an AdminAction frame.
type AdminDetail struct {
	Type string `json:"type"`
	// SpecifiedAlternatives names the correct answers for the upcoming
	// round when set on a StartRound action.
	SpecifiedAlternatives []string `json:"specified_alternatives,omitempty"`
	Reason                string   `json:"reason,omitempty"`
}

// DecodeClientMessage parses one inbound text frame.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ClientMessage{}, fmt.Errorf("malformed frame: %w", err)
	}

	msg := ClientMessage{Type: probe.Type}
	var err error
	switch probe.Type {
	case TypeJoinLobby:
		msg.JoinLobby = &JoinLobby{}
		err = json.Unmarshal(raw, msg.JoinLobby)
	case TypeReconnect:
		msg.Reconnect = &Reconnect{}
		err = json.Unmarshal(raw, msg.Reconnect)
	case TypeLeave:
		msg.Leave = &Leave{}
		err = json.Unmarshal(raw, msg.Leave)
	case TypeAnswer:
		msg.Answer = &Answer{}
		err = json.Unmarshal(raw, msg.Answer)
	case TypeAdminAction:
		msg.AdminAction = &AdminAction{}
		err = json.Unmarshal(raw, msg.AdminAction)
	default:
		return ClientMessage{}, fmt.Errorf("unknown frame type %q", probe.Type)
	}
	if err != nil {
		return ClientMessage{}, fmt.Errorf("malformed %s frame: %w", probe.Type, err)
	}
	return msg, nil
}
