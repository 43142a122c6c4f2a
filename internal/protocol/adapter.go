package protocol

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kottz/spektrum/internal/connmux"
	"github.com/kottz/spektrum/internal/engine"
	"github.com/kottz/spektrum/internal/idgen"
	"github.com/kottz/spektrum/internal/playback"
	"github.com/kottz/spektrum/internal/registry"
)

// Adapter is the Session Protocol Adapter: it owns the registry and the
// playback side channel, and constructs one Session per accepted
// WebSocket connection. Modeled on partybox's celebrity.go
// serveWSForManager/readPump/writePump pair.
type Adapter struct {
	Registry   *registry.Registry
	Playback   playback.Player
	Clock      idgen.Clock
	SendBuffer int
}

func (a *Adapter) sendBuffer() int {
	if a.SendBuffer > 0 {
		return a.SendBuffer
	}
	return 8
}

// Session is one bidirectional text-frame connection. It lives for as
// long as the underlying WebSocket connection does. Each JoinLobby or
// Reconnect frame attaches it to the named lobby's Multiplexer; an earlier
// attachment is not detached, and teardown detaches only the latest one.
type Session struct {
	adapter *Adapter
	conn    *websocket.Conn
	send    chan any

	id    uuid.UUID
	lobby *registry.Entry
	mux   *connmux.Multiplexer
}

// Serve runs a session to completion: it reads frames until the
// connection closes, translating each into a GameEvent and broadcasting
// the engine's responses, then detaches and synthesizes a Leave.
func (a *Adapter) Serve(conn *websocket.Conn) {
	s := &Session{
		adapter: a,
		conn:    conn,
		send:    make(chan any, a.sendBuffer()),
		id:      idgen.New(),
	}

	go s.writePump()
	s.readPump()
}

func (s *Session) writePump() {
	defer s.conn.Close()

	for msg := range s.send {
		if err := s.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Session) readPump() {
	defer s.teardown()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		decoded, err := DecodeClientMessage(raw)
		if err != nil {
			s.send <- MsgError{Type: "Error", Message: err.Error()}
			continue
		}

		s.handle(decoded)
	}
}

func (s *Session) teardown() {
	s.conn.Close()
	close(s.send)

	if s.lobby == nil {
		return
	}

	s.mux.Detach(s.id)
	s.lobby.SessionLeft(s.adapter.clockNow())

	responses := s.lobby.Lobby.ProcessEvent(engine.GameEvent{
		Context: engine.EventContext{LobbyID: s.lobby.Lobby.ID, SenderID: s.id, Timestamp: s.adapter.clockNow()},
		Action:  engine.LeaveAction{},
	})
	s.mux.Broadcast(responses, EncodeServerMessage)
}

func (a *Adapter) clockNow() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}

func (s *Session) handle(msg DecodedClientMessage) {
	switch msg.Type {
	case "JoinLobby":
		s.handleJoinLobby(msg)
		return
	case "Reconnect":
		s.handleReconnect(msg)
		return
	}

	if s.lobby == nil {
		s.send <- MsgError{Type: "Error", Message: "protocol: no lobby joined yet"}
		return
	}

	responses := s.lobby.Lobby.ProcessEvent(engine.GameEvent{
		Context: engine.EventContext{LobbyID: s.lobby.Lobby.ID, SenderID: s.id, Timestamp: s.adapter.clockNow()},
		Action:  msg.Action,
	})
	s.dispatchPlaybackSideEffects(responses)
	s.mux.Broadcast(responses, EncodeServerMessage)

	if msg.Type == "AdminAction" {
		if _, ok := msg.Action.(engine.CloseGameAction); ok {
			s.adapter.Registry.Remove(s.lobby.Lobby.ID)
		}
	}
}

func (s *Session) handleJoinLobby(msg DecodedClientMessage) {
	lobbyID, ok := s.adapter.Registry.LookupByJoinCode(msg.JoinCode)
	if !ok {
		s.send <- MsgError{Type: "Error", Message: "protocol: unknown join code"}
		return
	}

	entry, ok := s.adapter.Registry.LookupByID(lobbyID)
	if !ok {
		s.send <- MsgError{Type: "Error", Message: "protocol: unknown lobby"}
		return
	}

	if msg.AdminID != nil {
		s.id = *msg.AdminID
	}

	s.attach(entry)

	responses := entry.Lobby.ProcessEvent(engine.GameEvent{
		Context: engine.EventContext{LobbyID: lobbyID, SenderID: s.id, Timestamp: s.adapter.clockNow()},
		Action:  msg.Action,
	})
	s.mux.Broadcast(responses, EncodeServerMessage)
}

func (s *Session) handleReconnect(msg DecodedClientMessage) {
	entry, ok := s.adapter.Registry.LookupByID(msg.LobbyID)
	if !ok {
		s.send <- MsgError{Type: "Error", Message: "protocol: unknown lobby"}
		return
	}

	s.id = msg.PlayerID
	s.attach(entry)

	responses := entry.Lobby.ProcessEvent(engine.GameEvent{
		Context: engine.EventContext{LobbyID: msg.LobbyID, SenderID: s.id, Timestamp: s.adapter.clockNow()},
		Action:  msg.Action,
	})
	s.mux.Broadcast(responses, EncodeServerMessage)
}

func (s *Session) attach(entry *registry.Entry) {
	s.lobby = entry
	s.mux = entry.Mux()
	s.mux.Attach(s.id, s.send)
	entry.SessionJoined()
}

// dispatchPlaybackSideEffects fires the playback side channel for a round
// that just started, keeping the engine itself free of I/O (spec.md §4.2).
func (s *Session) dispatchPlaybackSideEffects(responses []engine.GameResponse) {
	if s.adapter.Playback == nil {
		return
	}
	for _, r := range responses {
		sc, ok := r.Payload.(engine.StateChangedPayload)
		if !ok || sc.Phase != engine.PhaseQuestion {
			continue
		}
		// The playback id itself isn't carried on StateChangedPayload (it
		// would leak the current media to players before the round's
		// alternatives are meant to reveal it); AdminInfoPayload carries
		// the full question including Media, so look for that instead.
		for _, inner := range responses {
			if info, ok := inner.Payload.(engine.AdminInfoPayload); ok {
				playback.Notify(s.adapter.Playback, info.Question.Media.PlaybackID)
			}
		}
	}
}
