package realtime

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kottz/spektrum-sub000/internal/game"
	"github.com/kottz/spektrum-sub000/internal/ident"
	"github.com/kottz/spektrum-sub000/internal/metrics"
	"github.com/kottz/spektrum-sub000/internal/playback"
	"github.com/kottz/spektrum-sub000/internal/protocol"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a silent peer stays alive.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxFrameSize caps inbound frames.
	maxFrameSize = 16 * 1024
	// defaultBufferSize is the outbound queue depth per session.
	defaultBufferSize = 64
)

// SessionConfig carries the collaborators a session needs.
type SessionConfig struct {
	Resolver   Resolver
	Clock      ident.Clock
	Log        *logrus.Logger
	Metrics    *metrics.Metrics
	Playback   playback.Notifier
	BufferSize int
}

// Session adapts one websocket connection to the engine protocol. It lives
// for the duration of the connection: a read pump decodes frames into
// engine events, a write pump drains the outbound channel the multiplexer
// feeds.
type Session struct {
	cfg  SessionConfig
	conn *websocket.Conn
	log  *logrus.Entry

	id    ident.SessionID
	lobby *Lobby
	out   chan []byte
	done  chan struct{}
}

// NewSession wraps an upgraded connection. The session starts with a
// temporary id; a JoinLobby or Reconnect frame rebinds it.
func NewSession(conn *websocket.Conn, cfg SessionConfig) *Session {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Playback == nil {
		cfg.Playback = playback.Noop{}
	}
	id := ident.NewSessionID()
	return &Session{
		cfg:  cfg,
		conn: conn,
		log:  cfg.Log.WithField("session_id", id),
		id:   id,
		out:  make(chan []byte, cfg.BufferSize),
		done: make(chan struct{}),
	}
}

// Run services the connection until it closes, then detaches and emits a
// synthetic Disconnect so the player can reconnect into the running game.
// A panic anywhere in frame handling is confined to this session.
func (s *Session) Run() {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Session handler panicked")
		}
		s.teardown()
	}()

	go s.writePump()
	s.readPump()
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("Connection closed unexpectedly")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		s.cfg.Metrics.FramesIn.Inc()

		msg, err := protocol.DecodeClientMessage(raw)
		if err != nil {
			// Decode failures are confined to this session.
			s.sendError(err.Error())
			continue
		}
		if done := s.dispatch(msg); done {
			return
		}
	}
}

// dispatch handles one decoded frame. It returns true when the session
// should shut down.
func (s *Session) dispatch(msg protocol.ClientMessage) bool {
	switch msg.Type {
	case protocol.TypeJoinLobby:
		s.handleJoinLobby(*msg.JoinLobby)
	case protocol.TypeReconnect:
		s.handleReconnect(*msg.Reconnect)
	case protocol.TypeLeave:
		s.forward(game.Leave{})
		return true
	case protocol.TypeAnswer:
		s.cfg.Metrics.AnswersScored.Inc()
		s.forward(game.Answer{Answer: msg.Answer.Answer})
	case protocol.TypeAdminAction:
		s.handleAdminAction(*msg.AdminAction)
	}
	return false
}

func (s *Session) handleJoinLobby(m protocol.JoinLobby) {
	if s.lobby != nil {
		s.sendError("already joined a lobby")
		return
	}

	lobby, ok := s.cfg.Resolver.ByJoinCode(m.JoinCode)
	if !ok {
		s.sendError("no lobby with that join code")
		return
	}

	// The admin presents the credential issued at creation and adopts it
	// as its session id; everyone else keeps the temporary id as their
	// player id.
	if m.AdminID != "" {
		adminID, err := ident.ParsePlayerID(m.AdminID)
		if err != nil || adminID != lobby.Engine.AdminID() {
			s.sendError("invalid admin credential")
			return
		}
		s.id = ident.SessionID(adminID)
		s.log = s.cfg.Log.WithField("session_id", s.id)
	}

	s.lobby = lobby
	lobby.Mux.Attach(s.id, s.out)
	s.forward(game.Join{Name: m.Name})
}

func (s *Session) handleReconnect(m protocol.Reconnect) {
	if s.lobby != nil {
		s.sendError("already joined a lobby")
		return
	}

	lobbyID, err := ident.ParseLobbyID(m.LobbyID)
	if err != nil {
		s.sendError("malformed lobby id")
		return
	}
	playerID, err := ident.ParsePlayerID(m.PlayerID)
	if err != nil {
		s.sendError("malformed player id")
		return
	}

	lobby, ok := s.cfg.Resolver.ByID(lobbyID)
	if !ok {
		s.sendError("no such lobby")
		return
	}
	if !lobby.Engine.HasPlayer(playerID) {
		s.sendError("unknown player")
		return
	}

	s.id = ident.SessionID(playerID)
	s.log = s.cfg.Log.WithField("session_id", s.id)
	s.lobby = lobby
	lobby.Mux.Attach(s.id, s.out)
	s.forward(game.Reconnect{})
}

func (s *Session) handleAdminAction(m protocol.AdminAction) {
	var action game.Action
	switch m.Action.Type {
	case protocol.ActionStartGame:
		action = game.StartGame{}
	case protocol.ActionStartRound:
		action = game.StartRound{SpecifiedAlternatives: m.Action.SpecifiedAlternatives}
	case protocol.ActionEndRound:
		action = game.EndRound{}
	case protocol.ActionSkipQuestion:
		action = game.SkipQuestion{}
	case protocol.ActionEndGame:
		action = game.EndGame{Reason: m.Action.Reason}
	case protocol.ActionCloseGame:
		action = game.CloseGame{Reason: m.Action.Reason}
	default:
		s.sendError("unknown admin action " + m.Action.Type)
		return
	}

	responses := s.forward(action)
	if accepted(responses) {
		s.notifyPlayback(action)
	}

	if _, isClose := action.(game.CloseGame); isClose && s.lobby != nil && s.lobby.Engine.Closed() {
		s.cfg.Resolver.Remove(s.lobby.Engine.ID())
	}
}

// forward hands an event to the lobby engine and broadcasts its responses.
func (s *Session) forward(action game.Action) []game.Response {
	if s.lobby == nil {
		s.sendError("not in a lobby")
		return nil
	}
	ev := game.Event{
		LobbyID: s.lobby.Engine.ID(),
		Sender:  ident.PlayerID(s.id),
		At:      s.cfg.Clock.Now(),
		Action:  action,
	}
	responses := s.lobby.Engine.HandleEvent(ev)
	s.lobby.Broadcast(responses)
	return responses
}

// accepted reports whether the engine applied an action rather than
// answering it with a lone Error frame.
func accepted(responses []game.Response) bool {
	if len(responses) == 0 {
		return false
	}
	if len(responses) == 1 {
		if _, isErr := responses[0].Msg.(protocol.ErrorMessage); isErr {
			return false
		}
	}
	return true
}

// notifyPlayback fires the upstream music controller after round
// transitions. Failures are the notifier's problem; the session never
// waits on it.
func (s *Session) notifyPlayback(action game.Action) {
	if s.lobby == nil {
		return
	}
	switch action.(type) {
	case game.StartRound:
		if media, ok := s.lobby.Engine.CurrentMedia(); ok {
			s.cfg.Playback.RoundStarted(media)
		}
	case game.EndRound, game.EndGame, game.CloseGame:
		s.cfg.Playback.Stopped()
	}
}

// sendError queues a typed Error frame on this session only.
func (s *Session) sendError(message string) {
	raw, err := protocol.EncodeServerMessage(protocol.NewError(message))
	if err != nil {
		return
	}
	select {
	case s.out <- raw:
	default:
		s.cfg.Metrics.DroppedSends.Inc()
	}
}

// teardown detaches from the lobby and synthesizes a Disconnect. The player
// keeps their roster entry for a later Reconnect; the sweep collects the
// lobby once its multiplexer is empty.
func (s *Session) teardown() {
	close(s.done)
	if s.lobby == nil {
		return
	}
	s.lobby.Mux.Detach(s.id, s.out)
	responses := s.lobby.Engine.HandleEvent(game.Event{
		LobbyID: s.lobby.Engine.ID(),
		Sender:  ident.PlayerID(s.id),
		At:      s.cfg.Clock.Now(),
		Action:  game.Disconnect{},
	})
	s.lobby.Broadcast(responses)
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case raw := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
			s.cfg.Metrics.FramesOut.Inc()
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
