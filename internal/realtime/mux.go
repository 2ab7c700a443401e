package realtime

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kottz/spektrum-sub000/internal/game"
	"github.com/kottz/spektrum-sub000/internal/ident"
	"github.com/kottz/spektrum-sub000/internal/metrics"
	"github.com/kottz/spektrum-sub000/internal/protocol"
)

// Mux routes engine responses to the sessions attached to one lobby. Sends
// are best-effort, non-blocking enqueues into each session's buffered
// outbound channel: a full or stale channel is skipped and counted, never
// retried and never allowed to block the engine.
//
// Within one Broadcast call, per-recipient ordering follows the order the
// engine produced the responses. Ordering across calls is the caller's
// concern (the engine is the lobby's single writer).
type Mux struct {
	mu       sync.RWMutex
	log      *logrus.Entry
	m        *metrics.Metrics
	sessions map[ident.SessionID]chan<- []byte
}

// NewMux creates an empty multiplexer.
func NewMux(log *logrus.Logger, m *metrics.Metrics) *Mux {
	return &Mux{
		log:      log.WithField("component", "mux"),
		m:        m,
		sessions: make(map[ident.SessionID]chan<- []byte),
	}
}

// Attach inserts or replaces the outbound channel for a session id. On
// reconnect the replaced channel is simply dropped; its writer drains and
// exits when its connection dies. The gauge counts distinct session ids,
// so a replacement does not move it.
func (mx *Mux) Attach(id ident.SessionID, out chan<- []byte) {
	mx.mu.Lock()
	_, existed := mx.sessions[id]
	mx.sessions[id] = out
	mx.mu.Unlock()
	if !existed {
		mx.m.SessionsActive.Inc()
	}
}

// Detach removes the session's channel, but only while out is still the
// attached one. A session whose channel was replaced by a reconnect must
// not tear down its successor.
func (mx *Mux) Detach(id ident.SessionID, out chan<- []byte) {
	mx.mu.Lock()
	current, ok := mx.sessions[id]
	if ok && current == out {
		delete(mx.sessions, id)
	}
	mx.mu.Unlock()
	if ok && current == out {
		mx.m.SessionsActive.Dec()
	}
}

// Len returns the number of attached sessions.
func (mx *Mux) Len() int {
	mx.mu.RLock()
	defer mx.mu.RUnlock()
	return len(mx.sessions)
}

// Empty reports whether no session is attached.
func (mx *Mux) Empty() bool {
	return mx.Len() == 0
}

// Broadcast encodes each response once and fans it out to its resolved
// recipient set, in response order.
func (mx *Mux) Broadcast(responses []game.Response) {
	for _, resp := range responses {
		raw, err := protocol.EncodeServerMessage(resp.Msg)
		if err != nil {
			mx.log.WithError(err).Error("Failed to encode outbound frame")
			continue
		}

		for _, out := range mx.resolve(resp.To) {
			select {
			case out <- raw:
			default:
				mx.m.DroppedSends.Inc()
				mx.log.WithField("frame", resp.Msg.MessageType()).Warn("Session buffer full, dropping frame")
			}
		}
	}
}

// resolve snapshots the outbound channels for a recipient set.
func (mx *Mux) resolve(to game.Recipients) []chan<- []byte {
	mx.mu.RLock()
	defer mx.mu.RUnlock()

	switch to.Kind {
	case game.RecipientsSingle, game.RecipientsMultiple:
		outs := make([]chan<- []byte, 0, len(to.IDs))
		seen := make(map[ident.SessionID]bool, len(to.IDs))
		for _, pid := range to.IDs {
			sid := ident.SessionID(pid)
			if seen[sid] {
				continue
			}
			seen[sid] = true
			if out, ok := mx.sessions[sid]; ok {
				outs = append(outs, out)
			}
		}
		return outs

	case game.RecipientsAllExcept:
		excluded := make(map[ident.SessionID]bool, len(to.IDs))
		for _, pid := range to.IDs {
			excluded[ident.SessionID(pid)] = true
		}
		outs := make([]chan<- []byte, 0, len(mx.sessions))
		for sid, out := range mx.sessions {
			if !excluded[sid] {
				outs = append(outs, out)
			}
		}
		return outs

	case game.RecipientsAll:
		outs := make([]chan<- []byte, 0, len(mx.sessions))
		for _, out := range mx.sessions {
			outs = append(outs, out)
		}
		return outs
	}
	return nil
}
