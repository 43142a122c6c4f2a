// Package connmux implements the per-lobby Connection Multiplexer: a map
// of session id to outbound message channel, and best-effort broadcast
// resolution of the engine's Recipients values. Modeled on partybox's
// celebrity.go Hub, which keys clients by *Client rather than by id;
// this module keys by uuid.UUID directly since player/session ids are
// already the natural map key here (spec.md §4.4).
package connmux

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/kottz/spektrum/internal/engine"
)

// Multiplexer fans engine responses out to attached sessions' outbound
// channels. Sends are best-effort: a full or closed channel is logged and
// skipped, never retried or propagated (spec.md §4.4, §7 TransientError).
type Multiplexer struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]chan any
}

// New creates an empty Multiplexer.
func New() *Multiplexer {
	return &Multiplexer{sessions: make(map[uuid.UUID]chan any)}
}

// Attach inserts or replaces the outbound channel for sessionID. This is
// also how Reconnect takes over an existing player's channel: the new
// session's Attach call overwrites the previous entry for the same id.
func (m *Multiplexer) Attach(sessionID uuid.UUID, ch chan any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = ch
}

// Detach removes sessionID's outbound channel.
func (m *Multiplexer) Detach(sessionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Count returns the number of currently-attached sessions.
func (m *Multiplexer) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Broadcast resolves and delivers every response's Recipients, in the
// order the engine produced them. Within one call, each recipient's
// messages are enqueued in order; ordering across calls is the caller's
// (the adapter's single-writer discipline's) responsibility.
func (m *Multiplexer) Broadcast(responses []engine.GameResponse, encode func(engine.Payload) any) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, resp := range responses {
		msg := encode(resp.Payload)
		for _, id := range m.resolveLocked(resp.Recipients) {
			m.sendLocked(id, msg)
		}
	}
}

func (m *Multiplexer) resolveLocked(r engine.Recipients) []uuid.UUID {
	switch r.Kind {
	case engine.RecipientSingle:
		return r.IDs
	case engine.RecipientMultiple:
		seen := make(map[uuid.UUID]struct{}, len(r.IDs))
		out := make([]uuid.UUID, 0, len(r.IDs))
		for _, id := range r.IDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return out
	case engine.RecipientAllExcept:
		excluded := make(map[uuid.UUID]struct{}, len(r.IDs))
		for _, id := range r.IDs {
			excluded[id] = struct{}{}
		}
		var out []uuid.UUID
		for id := range m.sessions {
			if _, ex := excluded[id]; !ex {
				out = append(out, id)
			}
		}
		return out
	case engine.RecipientAll:
		out := make([]uuid.UUID, 0, len(m.sessions))
		for id := range m.sessions {
			out = append(out, id)
		}
		return out
	default:
		return nil
	}
}

func (m *Multiplexer) sendLocked(id uuid.UUID, msg any) {
	ch, ok := m.sessions[id]
	if !ok {
		return
	}
	defer func() {
		// A send on a closed channel panics; treat it like a full one.
		if recover() != nil {
			log.Warn("dropping outbound message: channel full or closed", "session_id", id)
		}
	}()
	select {
	case ch <- msg:
	default:
		log.Warn("dropping outbound message: channel full or closed", "session_id", id)
	}
}
