package protocol

import (
	"encoding/json"
	"fmt"
)

// Server → client frame types.
const (
	TypeJoinedLobby        = "JoinedLobby"
	TypeReconnectSuccess   = "ReconnectSuccess"
	TypePlayerLeft         = "PlayerLeft"
	TypePlayerAnswered     = "PlayerAnswered"
	TypeStateChanged       = "StateChanged"
	TypeAdminInfo          = "AdminInfo"
	TypeAdminNextQuestions = "AdminNextQuestions"
	TypeGameOver           = "GameOver"
	TypeGameClosed         = "GameClosed"
	TypeError              = "Error"
)

// ServerMessage is any outbound frame. Implementations are plain structs
// whose Type field is fixed by their constructor, so a frame marshals to the
// flat discriminated object the protocol requires.
type ServerMessage interface {
	MessageType() string
}

// ScoreEntry is one scoreboard row, marshalled as the [name, score] tuple
// the wire format uses.
type ScoreEntry struct {
	Name  string
	Score int
}

// MarshalJSON encodes the entry as a two-element array.
func (s ScoreEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Name, s.Score})
}

// UnmarshalJSON decodes the [name, score] tuple.
func (s *ScoreEntry) UnmarshalJSON(raw []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &s.Name); err != nil {
		return fmt.Errorf("score entry name: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &s.Score); err != nil {
		return fmt.Errorf("score entry score: %w", err)
	}
	return nil
}

// QuestionInfo is the operator-facing view of a question, sent on admin-only
// frames. CharacterContext is reserved and currently always empty.
type QuestionInfo struct {
	QuestionType     string   `json:"question_type"`
	Title            string   `json:"title"`
	Artist           string   `json:"artist"`
	CorrectAnswers   []string `json:"correct_answers"`
	CharacterContext string   `json:"character_context,omitempty"`
}

// MediaInfo describes the track currently in play.
type MediaInfo struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	ReleaseYear *int   `json:"release_year,omitempty"`
	PlaybackID  string `json:"spotify_uri,omitempty"`
}

// GameStateSnapshot is the full resync payload delivered on reconnect.
type GameStateSnapshot struct {
	Phase        string       `json:"phase"`
	QuestionType string       `json:"question_type,omitempty"`
	Alternatives []string     `json:"alternatives,omitempty"`
	Scoreboard   []ScoreEntry `json:"scoreboard"`
	CurrentSong  *MediaInfo   `json:"current_song,omitempty"`
}

type JoinedLobby struct {
	Type          string       `json:"type"`
	PlayerID      string       `json:"player_id"`
	LobbyID       string       `json:"lobby_id"`
	Name          string       `json:"name"`
	RoundDuration int          `json:"round_duration"`
	Players       []ScoreEntry `json:"players"`
}

func (m JoinedLobby) MessageType() string { return TypeJoinedLobby }

func NewJoinedLobby(playerID, lobbyID, name string, roundDuration int, players []ScoreEntry) JoinedLobby {
	return JoinedLobby{Type: TypeJoinedLobby, PlayerID: playerID, LobbyID: lobbyID, Name: name, RoundDuration: roundDuration, Players: players}
}

type ReconnectSuccess struct {
	Type      string            `json:"type"`
	GameState GameStateSnapshot `json:"game_state"`
}

func (m ReconnectSuccess) MessageType() string { return TypeReconnectSuccess }

func NewReconnectSuccess(state GameStateSnapshot) ReconnectSuccess {
	return ReconnectSuccess{Type: TypeReconnectSuccess, GameState: state}
}

type PlayerLeft struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (m PlayerLeft) MessageType() string { return TypePlayerLeft }

func NewPlayerLeft(name string) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, Name: name}
}

type PlayerAnswered struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Correct  bool   `json:"correct"`
	NewScore int    `json:"new_score"`
}

func (m PlayerAnswered) MessageType() string { return TypePlayerAnswered }

func NewPlayerAnswered(name string, correct bool, newScore int) PlayerAnswered {
	return PlayerAnswered{Type: TypePlayerAnswered, Name: name, Correct: correct, NewScore: newScore}
}

type StateChanged struct {
	Type         string       `json:"type"`
	Phase        string       `json:"phase"`
	QuestionType string       `json:"question_type,omitempty"`
	Alternatives []string     `json:"alternatives,omitempty"`
	Scoreboard   []ScoreEntry `json:"scoreboard"`
}

func (m StateChanged) MessageType() string { return TypeStateChanged }

func NewStateChanged(phase, questionType string, alternatives []string, scoreboard []ScoreEntry) StateChanged {
	return StateChanged{Type: TypeStateChanged, Phase: phase, QuestionType: questionType, Alternatives: alternatives, Scoreboard: scoreboard}
}

type AdminInfo struct {
	Type     string       `json:"type"`
	Question QuestionInfo `json:"question"`
}

func (m AdminInfo) MessageType() string { return TypeAdminInfo }

func NewAdminInfo(question QuestionInfo) AdminInfo {
	return AdminInfo{Type: TypeAdminInfo, Question: question}
}

type AdminNextQuestions struct {
	Type              string         `json:"type"`
	UpcomingQuestions []QuestionInfo `json:"upcoming_questions"`
}

func (m AdminNextQuestions) MessageType() string { return TypeAdminNextQuestions }

func NewAdminNextQuestions(upcoming []QuestionInfo) AdminNextQuestions {
	return AdminNextQuestions{Type: TypeAdminNextQuestions, UpcomingQuestions: upcoming}
}

type GameOver struct {
	Type   string       `json:"type"`
	Scores []ScoreEntry `json:"scores"`
	Reason string       `json:"reason"`
}

func (m GameOver) MessageType() string { return TypeGameOver }

func NewGameOver(scores []ScoreEntry, reason string) GameOver {
	return GameOver{Type: TypeGameOver, Scores: scores, Reason: reason}
}

type GameClosed struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (m GameClosed) MessageType() string { return TypeGameClosed }

func NewGameClosed(reason string) GameClosed {
	return GameClosed{Type: TypeGameClosed, Reason: reason}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (m ErrorMessage) MessageType() string { return TypeError }

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// EncodeServerMessage serializes an outbound frame.
func EncodeServerMessage(m ServerMessage) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", m.MessageType(), err)
	}
	return raw, nil
}
