// Package registry tracks live lobbies: creation with join-code allocation,
// O(1) lookup by id or join code, explicit removal and a periodic sweep
// that reaps lobbies nobody is connected to.
package registry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kottz/spektrum-sub000/internal/catalog"
	"github.com/kottz/spektrum-sub000/internal/game"
	"github.com/kottz/spektrum-sub000/internal/ident"
	"github.com/kottz/spektrum-sub000/internal/metrics"
	"github.com/kottz/spektrum-sub000/internal/realtime"
)

const (
	// sixDigitAttempts is how many 6-digit codes are tried before
	// escalating to 7 digits.
	sixDigitAttempts = 10_000
	// DefaultSweepInterval is how often empty lobbies are reaped.
	DefaultSweepInterval = 30 * time.Second
	// DefaultCreateGrace shields a fresh lobby from the sweep until its
	// admin has had time to connect.
	DefaultCreateGrace = 2 * time.Minute
)

// codeSource abstracts join-code candidate generation so collision
// behavior is testable.
type codeSource interface {
	// code returns a candidate of the given decimal width.
	code(width int) string
}

type randCodeSource struct {
	rng *rand.Rand
}

func (s randCodeSource) code(width int) string {
	max := 1
	for i := 0; i < width; i++ {
		max *= 10
	}
	return fmt.Sprintf("%0*d", width, s.rng.Intn(max))
}

// Registry is the process-wide lobby index. Lookups take a read lock;
// creation, removal and the sweep take the write lock. The lock is never
// held across engine calls.
type Registry struct {
	mu      sync.RWMutex
	lobbies map[ident.LobbyID]*realtime.Lobby
	codes   map[string]ident.LobbyID
	created map[ident.LobbyID]time.Time

	cat   *catalog.Catalog
	clock ident.Clock
	log   *logrus.Logger
	m     *metrics.Metrics

	rng         *rand.Rand
	codes6      codeSource
	createGrace time.Duration
}

// Option tweaks registry behavior.
type Option func(*Registry)

// WithCreateGrace overrides how long a fresh lobby is shielded from the
// sweep.
func WithCreateGrace(d time.Duration) Option {
	return func(r *Registry) {
		r.createGrace = d
	}
}

// withCodeSource swaps the join-code generator, for collision tests.
func withCodeSource(src codeSource) Option {
	return func(r *Registry) {
		r.codes6 = src
	}
}

// New builds an empty registry.
func New(cat *catalog.Catalog, clock ident.Clock, log *logrus.Logger, m *metrics.Metrics, opts ...Option) *Registry {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	r := &Registry{
		lobbies:     make(map[ident.LobbyID]*realtime.Lobby),
		codes:       make(map[string]ident.LobbyID),
		created:     make(map[ident.LobbyID]time.Time),
		cat:         cat,
		clock:       clock,
		log:         log,
		m:           m,
		rng:         rng,
		codes6:      randCodeSource{rng: rng},
		createGrace: DefaultCreateGrace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create allocates a lobby with a fresh id, admin credential and join code.
// Round duration below the minimum or an unknown question set is rejected.
func (r *Registry) Create(roundDuration time.Duration, questionSet string) (*realtime.Lobby, error) {
	if roundDuration == 0 {
		roundDuration = game.DefaultRoundDuration
	}
	if roundDuration < game.MinRoundDuration {
		return nil, fmt.Errorf("round duration must be at least %s", game.MinRoundDuration)
	}
	if questionSet != "" && !r.cat.HasSet(questionSet) {
		return nil, fmt.Errorf("unknown question set %q", questionSet)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.allocateCode()
	cfg := game.Config{
		LobbyID:       ident.NewLobbyID(),
		AdminID:       ident.NewPlayerID(),
		JoinCode:      code,
		RoundDuration: roundDuration,
		QuestionSet:   questionSet,
	}

	engineRNG := rand.New(rand.NewSource(r.rng.Int63()))
	lobby := &realtime.Lobby{
		Engine: game.New(cfg, r.cat, r.clock, engineRNG, r.log),
		Mux:    realtime.NewMux(r.log, r.m),
	}

	r.lobbies[cfg.LobbyID] = lobby
	r.codes[code] = cfg.LobbyID
	r.created[cfg.LobbyID] = r.clock.Now()
	r.m.LobbiesCreated.Inc()
	r.m.LobbiesActive.Set(float64(len(r.lobbies)))

	r.log.WithFields(logrus.Fields{
		"lobby_id":  cfg.LobbyID,
		"join_code": code,
	}).Info("Lobby created")

	return lobby, nil
}

// allocateCode draws 6-digit codes until one is free, escalating to 7
// digits after sixDigitAttempts collisions. Callers hold the write lock.
func (r *Registry) allocateCode() string {
	for i := 0; i < sixDigitAttempts; i++ {
		code := r.codes6.code(6)
		if _, taken := r.codes[code]; !taken {
			return code
		}
	}
	for {
		code := r.codes6.code(7)
		if _, taken := r.codes[code]; !taken {
			return code
		}
	}
}

// ByID looks a lobby up by id.
func (r *Registry) ByID(id ident.LobbyID) (*realtime.Lobby, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lobbies[id]
	return l, ok
}

// ByJoinCode looks a lobby up by its join code.
func (r *Registry) ByJoinCode(code string) (*realtime.Lobby, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codes[code]
	if !ok {
		return nil, false
	}
	l, ok := r.lobbies[id]
	return l, ok
}

// Remove deletes both index entries for a lobby. Removing an absent lobby
// is a no-op.
func (r *Registry) Remove(id ident.LobbyID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(id)
}

func (r *Registry) remove(id ident.LobbyID) {
	l, ok := r.lobbies[id]
	if !ok {
		return
	}
	delete(r.lobbies, id)
	delete(r.created, id)
	delete(r.codes, l.Engine.JoinCode())
	r.m.LobbiesActive.Set(float64(len(r.lobbies)))
	r.log.WithField("lobby_id", id).Info("Lobby removed")
}

// Len returns the number of registered lobbies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lobbies)
}

// Sweep reaps lobbies with no attached sessions, sparing those still inside
// the creation grace period. It returns the number removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	reaped := 0
	for id, l := range r.lobbies {
		if !l.Mux.Empty() {
			continue
		}
		if now.Sub(r.created[id]) < r.createGrace {
			continue
		}
		r.remove(id)
		r.m.LobbiesReaped.Inc()
		reaped++
	}
	return reaped
}

// RunSweeper sweeps on the given interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.WithField("reaped", n).Debug("Sweep removed empty lobbies")
			}
		}
	}
}
