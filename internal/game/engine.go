package game

import (
	"math"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kottz/spektrum-sub000/internal/catalog"
	"github.com/kottz/spektrum-sub000/internal/ident"
	"github.com/kottz/spektrum-sub000/internal/protocol"
)

// Phase is the lobby state machine phase.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseScore    Phase = "score"
	PhaseQuestion Phase = "question"
	PhaseGameOver Phase = "gameover"
)

const (
	// basePoints is the score for an instantaneous correct answer.
	basePoints = 5000
	// pointsPerSecond is the linear decay of the award over the round.
	pointsPerSecond = 100
	// previewCount is how many upcoming questions the admin sees.
	previewCount = 3
	// MinRoundDuration is the smallest accepted round duration.
	MinRoundDuration = 10 * time.Second
	// DefaultRoundDuration applies when lobby creation omits one.
	DefaultRoundDuration = 60 * time.Second
)

// Player is one identity within a lobby. A player whose connection dropped
// stays on the roster with Connected unset until they reconnect or the
// sweep reaps the lobby.
type Player struct {
	ID          ident.PlayerID
	Name        string
	Score       int
	HasAnswered bool
	Answer      string
	Connected   bool
}

// RoundContext is the transient state of one Question phase. Alternatives
// and correct answers are frozen at round start.
type RoundContext struct {
	Question  *catalog.Question
	StartedAt time.Time
	Choices   catalog.RoundChoices
	Answers   map[ident.PlayerID]string
}

// Config carries the identity and settings fixed at lobby creation.
type Config struct {
	LobbyID       ident.LobbyID
	AdminID       ident.PlayerID
	JoinCode      string
	RoundDuration time.Duration
	QuestionSet   string
}

// Engine owns one lobby's mutable state. All event handling runs under a
// single mutex, making the engine the lobby's single writer. Handling is
// CPU-only: the engine never blocks on I/O and never panics on misuse.
type Engine struct {
	mu sync.Mutex

	cat   *catalog.Catalog
	clock ident.Clock
	rng   *rand.Rand
	log   *logrus.Entry

	id            ident.LobbyID
	adminID       ident.PlayerID
	joinCode      string
	roundDuration time.Duration
	questionSet   string

	phase   Phase
	queue   []*catalog.Question
	next    int
	players map[ident.PlayerID]*Player
	round   *RoundContext
	closed  bool
}

// New creates an engine in the Lobby phase.
func New(cfg Config, cat *catalog.Catalog, clock ident.Clock, rng *rand.Rand, log *logrus.Logger) *Engine {
	return &Engine{
		cat:           cat,
		clock:         clock,
		rng:           rng,
		log:           log.WithField("lobby_id", cfg.LobbyID),
		id:            cfg.LobbyID,
		adminID:       cfg.AdminID,
		joinCode:      cfg.JoinCode,
		roundDuration: cfg.RoundDuration,
		questionSet:   cfg.QuestionSet,
		phase:         PhaseLobby,
		players:       make(map[ident.PlayerID]*Player),
	}
}

// ID returns the lobby id.
func (e *Engine) ID() ident.LobbyID { return e.id }

// AdminID returns the admin credential fixed at creation.
func (e *Engine) AdminID() ident.PlayerID { return e.adminID }

// JoinCode returns the lobby's join code.
func (e *Engine) JoinCode() string { return e.joinCode }

// RoundDuration returns the configured round length.
func (e *Engine) RoundDuration() time.Duration { return e.roundDuration }

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Closed reports whether an admin CloseGame has been processed.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// CurrentMedia returns the media of the in-flight round, if any.
func (e *Engine) CurrentMedia() (catalog.Media, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return catalog.Media{}, false
	}
	return e.round.Question.Media, true
}

// HasPlayer reports whether id names a joined player.
func (e *Engine) HasPlayer(id ident.PlayerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.players[id]
	return ok
}

// HandleEvent applies one event to the lobby and returns the responses to
// deliver, in order. Misuse never mutates state; it yields a single Error
// response addressed to the sender.
func (e *Engine) HandleEvent(ev Event) []Response {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		// Teardown-driven events after a close are expected noise.
		switch ev.Action.(type) {
		case Leave, Disconnect:
			return nil
		}
		return errorTo(ev.Sender, stateErrf(e.phase, "lobby is closed"))
	}

	switch a := ev.Action.(type) {
	case Join:
		return e.handleJoin(ev, a)
	case Leave:
		return e.handleLeave(ev)
	case Disconnect:
		return e.handleDisconnect(ev)
	case Reconnect:
		return e.handleReconnect(ev)
	case Answer:
		return e.handleAnswer(ev, a)
	case StartGame:
		return e.adminOnly(ev, func() []Response { return e.handleStartGame() })
	case StartRound:
		return e.adminOnly(ev, func() []Response { return e.handleStartRound(ev, a) })
	case EndRound:
		return e.adminOnly(ev, func() []Response { return e.handleEndRound() })
	case SkipQuestion:
		return e.adminOnly(ev, func() []Response { return e.handleSkipQuestion() })
	case EndGame:
		return e.adminOnly(ev, func() []Response { return e.handleEndGame(a.Reason) })
	case CloseGame:
		return e.adminOnly(ev, func() []Response { return e.handleCloseGame(a.Reason) })
	}
	return errorTo(ev.Sender, protocolErrf("unsupported action"))
}

// adminOnly rejects privileged actions from non-admin senders.
func (e *Engine) adminOnly(ev Event, handler func() []Response) []Response {
	if ev.Sender != e.adminID {
		return errorTo(ev.Sender, stateErrf(e.phase, "admin action from non-admin sender"))
	}
	return handler()
}

func (e *Engine) handleJoin(ev Event, a Join) []Response {
	if e.phase != PhaseLobby {
		return errorTo(ev.Sender, stateErrf(e.phase, "join is only allowed before the game starts"))
	}

	if p, ok := e.players[ev.Sender]; ok {
		// Repeat join is a no-op; answer with the current roster.
		p.Connected = true
		return []Response{respond(Single(ev.Sender), e.joinedMessage(p))}
	}

	if a.Name == "" {
		return errorTo(ev.Sender, protocolErrf("display name must not be empty"))
	}
	for _, p := range e.players {
		if p.Name == a.Name {
			return errorTo(ev.Sender, protocolErrf("name %q is already taken", a.Name))
		}
	}

	p := &Player{ID: ev.Sender, Name: a.Name, Connected: true}
	e.players[ev.Sender] = p
	e.log.WithFields(logrus.Fields{"player_id": ev.Sender, "name": a.Name}).Info("Player joined")

	return []Response{respond(Single(ev.Sender), e.joinedMessage(p))}
}

func (e *Engine) handleLeave(ev Event) []Response {
	p, ok := e.players[ev.Sender]
	if !ok {
		return nil
	}
	delete(e.players, ev.Sender)
	e.log.WithFields(logrus.Fields{"player_id": ev.Sender, "name": p.Name}).Info("Player left")

	return []Response{respond(All(), protocol.NewPlayerLeft(p.Name))}
}

// handleDisconnect records a lost connection without touching the roster,
// so the player can Reconnect into the running game. Abandoned lobbies are
// the registry sweep's job.
func (e *Engine) handleDisconnect(ev Event) []Response {
	p, ok := e.players[ev.Sender]
	if !ok {
		return nil
	}
	p.Connected = false
	e.log.WithFields(logrus.Fields{"player_id": ev.Sender, "name": p.Name}).Info("Player disconnected")
	return nil
}

// handleReconnect answers a full state snapshot. It is accepted in every
// phase, GameOver included, so a returning player can still see the final
// scoreboard.
func (e *Engine) handleReconnect(ev Event) []Response {
	p, ok := e.players[ev.Sender]
	if !ok {
		return errorTo(ev.Sender, protocolErrf("unknown player"))
	}
	p.Connected = true

	snapshot := protocol.GameStateSnapshot{
		Phase:      string(e.phase),
		Scoreboard: e.scoreboard(),
	}
	if e.round != nil {
		snapshot.QuestionType = string(e.round.Question.Type)
		snapshot.Alternatives = e.round.Choices.Alternatives
		snapshot.CurrentSong = mediaInfo(e.round.Question.Media)
	}
	return []Response{respond(Single(ev.Sender), protocol.NewReconnectSuccess(snapshot))}
}

func (e *Engine) handleAnswer(ev Event, a Answer) []Response {
	if e.phase != PhaseQuestion {
		return errorTo(ev.Sender, stateErrf(e.phase, "no round in progress"))
	}
	p, ok := e.players[ev.Sender]
	if !ok {
		return errorTo(ev.Sender, protocolErrf("unknown player"))
	}
	if p.HasAnswered {
		return errorTo(ev.Sender, stateErrf(e.phase, "already answered this round"))
	}

	now := e.eventTime(ev)
	elapsed := now.Sub(e.round.StartedAt)
	correct := e.round.Choices.IsCorrect(e.round.Question.Type, a.Answer)

	p.HasAnswered = true
	p.Answer = a.Answer
	e.round.Answers[ev.Sender] = a.Answer

	late := elapsed > e.roundDuration
	if !late && correct {
		p.Score += awardedPoints(elapsed)
	}

	e.log.WithFields(logrus.Fields{
		"player":  p.Name,
		"correct": correct,
		"late":    late,
		"elapsed": elapsed.Seconds(),
		"score":   p.Score,
	}).Debug("Answer scored")

	responses := []Response{respond(All(), protocol.NewPlayerAnswered(p.Name, correct, p.Score))}

	// Late answers are recorded but never end the round early.
	if !late && e.allAnswered() {
		responses = append(responses, e.finishRound()...)
	}
	return responses
}

func (e *Engine) handleStartGame() []Response {
	if e.phase != PhaseLobby {
		return errorTo(e.adminID, stateErrf(e.phase, "game already started"))
	}

	queue, err := e.cat.ShuffledQuestions(e.rng, e.questionSet)
	if err != nil {
		return errorTo(e.adminID, err)
	}
	e.queue = queue
	e.next = 0
	e.phase = PhaseScore
	e.log.WithField("questions", len(queue)).Info("Game started")

	return []Response{respond(All(), protocol.NewStateChanged(string(e.phase), "", nil, e.scoreboard()))}
}

func (e *Engine) handleStartRound(ev Event, a StartRound) []Response {
	if e.phase != PhaseScore {
		return errorTo(e.adminID, stateErrf(e.phase, "round can only start from the score screen"))
	}
	if e.next >= len(e.queue) {
		return e.gameOver("All questions have been played")
	}

	q := e.queue[e.next]
	e.next++

	choices, err := e.cat.GenerateRoundWithCorrect(e.rng, q, a.SpecifiedAlternatives)
	if err != nil {
		e.next-- // state unchanged on rejection
		return errorTo(e.adminID, err)
	}

	for _, p := range e.players {
		p.HasAnswered = false
		p.Answer = ""
	}
	e.round = &RoundContext{
		Question:  q,
		StartedAt: e.eventTime(ev),
		Choices:   choices,
		Answers:   make(map[ident.PlayerID]string),
	}
	e.phase = PhaseQuestion
	e.log.WithFields(logrus.Fields{"question_id": q.ID, "type": q.Type}).Info("Round started")

	return []Response{
		respond(All(), protocol.NewStateChanged(string(e.phase), string(q.Type), choices.Alternatives, e.scoreboard())),
		respond(Single(e.adminID), protocol.NewAdminInfo(questionInfoForRound(q, choices))),
	}
}

func (e *Engine) handleEndRound() []Response {
	if e.phase != PhaseQuestion {
		return errorTo(e.adminID, stateErrf(e.phase, "no round in progress"))
	}
	return e.finishRound()
}

func (e *Engine) handleSkipQuestion() []Response {
	if e.phase != PhaseScore {
		return errorTo(e.adminID, stateErrf(e.phase, "skip is only allowed on the score screen"))
	}
	e.next++
	if e.next >= len(e.queue) {
		return e.gameOver("All questions have been played")
	}
	return []Response{respond(Single(e.adminID), protocol.NewAdminNextQuestions(e.upcoming()))}
}

func (e *Engine) handleEndGame(reason string) []Response {
	if e.phase != PhaseScore {
		return errorTo(e.adminID, stateErrf(e.phase, "game can only end from the score screen"))
	}
	return e.gameOver(reason)
}

func (e *Engine) handleCloseGame(reason string) []Response {
	e.closed = true
	e.phase = PhaseGameOver
	e.log.WithField("reason", reason).Info("Lobby closed")
	return []Response{respond(All(), protocol.NewGameClosed(reason))}
}

// finishRound leaves the Question phase: to GameOver when the queue is
// exhausted, otherwise to Score with a fresh admin preview.
func (e *Engine) finishRound() []Response {
	round := e.round
	e.round = nil

	if e.next >= len(e.queue) {
		return e.gameOver("All questions have been played")
	}

	e.phase = PhaseScore
	return []Response{
		respond(All(), protocol.NewStateChanged(string(e.phase), string(round.Question.Type), round.Choices.Alternatives, e.scoreboard())),
		respond(Single(e.adminID), protocol.NewAdminNextQuestions(e.upcoming())),
	}
}

func (e *Engine) gameOver(reason string) []Response {
	e.phase = PhaseGameOver
	e.round = nil
	e.log.WithField("reason", reason).Info("Game over")
	return []Response{respond(All(), protocol.NewGameOver(e.scoreboard(), reason))}
}

// scoreboard lists all non-admin players, best score first.
func (e *Engine) scoreboard() []protocol.ScoreEntry {
	entries := make([]protocol.ScoreEntry, 0, len(e.players))
	for _, p := range e.players {
		if p.ID == e.adminID {
			continue
		}
		entries = append(entries, protocol.ScoreEntry{Name: p.Name, Score: p.Score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// allAnswered reports whether every connected non-admin player has answered
// the current round. Disconnected players do not hold the round open; an
// admin-only lobby never auto-ends a round.
func (e *Engine) allAnswered() bool {
	answered := false
	for _, p := range e.players {
		if p.ID == e.adminID || !p.Connected {
			continue
		}
		if !p.HasAnswered {
			return false
		}
		answered = true
	}
	return answered
}

func (e *Engine) upcoming() []protocol.QuestionInfo {
	infos := make([]protocol.QuestionInfo, 0, previewCount)
	for i := e.next; i < len(e.queue) && len(infos) < previewCount; i++ {
		infos = append(infos, questionInfo(e.queue[i]))
	}
	return infos
}

func (e *Engine) joinedMessage(p *Player) protocol.JoinedLobby {
	return protocol.NewJoinedLobby(
		string(p.ID), string(e.id), p.Name,
		int(e.roundDuration/time.Second), e.scoreboard(),
	)
}

// eventTime prefers the adapter-stamped timestamp, falling back to the
// engine clock for synthesized events.
func (e *Engine) eventTime(ev Event) time.Time {
	if !ev.At.IsZero() {
		return ev.At
	}
	return e.clock.Now()
}

// awardedPoints computes max(0, 5000 - floor(100*t)) for a timely answer.
func awardedPoints(elapsed time.Duration) int {
	points := basePoints - int(math.Floor(pointsPerSecond*elapsed.Seconds()))
	if points < 0 {
		return 0
	}
	return points
}

func questionInfo(q *catalog.Question) protocol.QuestionInfo {
	var correct []string
	for _, o := range q.CorrectOptions() {
		correct = append(correct, o.Text)
	}
	if q.Type == catalog.QuestionTypeYear && q.Media.ReleaseYear != nil {
		correct = []string{strconv.Itoa(*q.Media.ReleaseYear)}
	}
	return protocol.QuestionInfo{
		QuestionType:   string(q.Type),
		Title:          q.Media.Title,
		Artist:         q.Media.Artist,
		CorrectAnswers: correct,
	}
}

// questionInfoForRound reflects any admin-specified correct answers instead
// of the stored ones.
func questionInfoForRound(q *catalog.Question, choices catalog.RoundChoices) protocol.QuestionInfo {
	info := questionInfo(q)
	info.CorrectAnswers = choices.Correct
	return info
}

func mediaInfo(m catalog.Media) *protocol.MediaInfo {
	return &protocol.MediaInfo{
		Title:       m.Title,
		Artist:      m.Artist,
		ReleaseYear: m.ReleaseYear,
		PlaybackID:  m.PlaybackID,
	}
}

func errorTo(to ident.PlayerID, err error) []Response {
	return []Response{respond(Single(to), protocol.NewError(err.Error()))}
}
