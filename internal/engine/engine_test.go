package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kottz/spektrum/internal/catalogue"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func colorQuestion(id int64, correct string) catalogue.Question {
	return catalogue.Question{
		ID:   id,
		Type: catalogue.TypeColor,
		Options: []catalogue.Option{
			{Text: correct, IsCorrect: true},
			{Text: "Blue", IsCorrect: false},
		},
	}
}

func newTestLobby(clock *fakeClock, questions []catalogue.Question, duration time.Duration) (*Lobby, uuid.UUID, uuid.UUID) {
	lobbyID := uuid.New()
	adminID := uuid.New()
	cat := &catalogue.Catalogue{Questions: questions, ColorWeights: map[catalogue.Color]float64{}}
	for _, c := range catalogue.Palette {
		cat.ColorWeights[c] = 0.5
	}
	l := New(lobbyID, adminID, duration, cat, clock, rand.New(rand.NewSource(42)))
	return l, lobbyID, adminID
}

func joinPlayer(t *testing.T, l *Lobby, lobbyID, playerID uuid.UUID, name string, clock *fakeClock) {
	t.Helper()
	resp := l.ProcessEvent(GameEvent{
		Context: EventContext{LobbyID: lobbyID, SenderID: playerID, Timestamp: clock.now},
		Action:  JoinAction{Name: name},
	})
	if len(resp) != 1 {
		t.Fatalf("join: got %d responses, want 1", len(resp))
	}
	if _, ok := resp[0].Payload.(JoinedPayload); !ok {
		t.Fatalf("join: payload = %T, want JoinedPayload", resp[0].Payload)
	}
}

func TestHappyRoundScenario(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	// Two questions, so ending the first round returns to Score rather than
	// GameOver.
	questions := []catalogue.Question{colorQuestion(1, "Red"), colorQuestion(2, "Red")}
	l, lobbyID, adminID := newTestLobby(clock, questions, 60*time.Second)

	a := uuid.New()
	b := uuid.New()
	joinPlayer(t, l, lobbyID, a, "A", clock)
	joinPlayer(t, l, lobbyID, b, "B", clock)

	l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: StartGameAction{}})
	l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: StartRoundAction{}})

	clock.advance(1 * time.Second)
	respA := l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: a}, Action: AnswerAction{Answer: "Red"}})
	pa, ok := respA[0].Payload.(PlayerAnsweredPayload)
	if !ok {
		t.Fatalf("payload = %T, want PlayerAnsweredPayload", respA[0].Payload)
	}
	if !pa.Correct || pa.NewScore != 4900 {
		t.Fatalf("A's answer = %+v, want correct=true new_score=4900", pa)
	}

	clock.advance(1500 * time.Millisecond)
	respB := l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: b}, Action: AnswerAction{Answer: "Blue"}})
	pb, ok := respB[0].Payload.(PlayerAnsweredPayload)
	if !ok {
		t.Fatalf("payload = %T, want PlayerAnsweredPayload", respB[0].Payload)
	}
	if pb.Correct || pb.NewScore != 0 {
		t.Fatalf("B's answer = %+v, want correct=false new_score=0", pb)
	}

	if len(respB) < 2 {
		t.Fatalf("expected auto-transition response after all answered, got %d responses", len(respB))
	}
	sc, ok := respB[len(respB)-1].Payload.(StateChangedPayload)
	if !ok {
		// last response may be the admin preview; the StateChanged is second-to-last then.
		sc, ok = respB[1].Payload.(StateChangedPayload)
		if !ok {
			t.Fatalf("expected a StateChangedPayload among auto-transition responses")
		}
	}
	if sc.Phase != PhaseScore {
		t.Fatalf("phase = %v, want Score", sc.Phase)
	}
	want := []ScoreEntry{{Name: "A", Score: 4900}, {Name: "B", Score: 0}}
	if len(sc.Scoreboard) != 2 || sc.Scoreboard[0] != want[0] || sc.Scoreboard[1] != want[1] {
		t.Fatalf("scoreboard = %+v, want %+v", sc.Scoreboard, want)
	}
}

func TestLateAnswerScenario(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	questions := []catalogue.Question{colorQuestion(1, "Red"), colorQuestion(2, "Red")}
	l, lobbyID, adminID := newTestLobby(clock, questions, 10*time.Second)

	a := uuid.New()
	joinPlayer(t, l, lobbyID, a, "A", clock)
	l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: StartGameAction{}})
	l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: StartRoundAction{}})

	clock.advance(12 * time.Second)
	resp := l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: a}, Action: AnswerAction{Answer: "Red"}})
	pa, ok := resp[0].Payload.(PlayerAnsweredPayload)
	if !ok {
		t.Fatalf("payload = %T, want PlayerAnsweredPayload", resp[0].Payload)
	}
	if !pa.Correct || pa.NewScore != 0 {
		t.Fatalf("late answer = %+v, want correct=true new_score=0", pa)
	}
	if l.Phase() != PhaseQuestion {
		t.Fatalf("phase = %v, want Question (late answer must not end the round)", l.Phase())
	}
}

func TestReconnectScenario(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	questions := []catalogue.Question{colorQuestion(1, "Red")}
	l, lobbyID, adminID := newTestLobby(clock, questions, 60*time.Second)

	b := uuid.New()
	joinPlayer(t, l, lobbyID, b, "B", clock)
	l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: StartGameAction{}})
	l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: StartRoundAction{}})

	resp := l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: b}, Action: ReconnectAction{}})
	rp, ok := resp[0].Payload.(ReconnectedPayload)
	if !ok {
		t.Fatalf("payload = %T, want ReconnectedPayload", resp[0].Payload)
	}
	if rp.Phase != PhaseQuestion {
		t.Fatalf("phase = %v, want Question", rp.Phase)
	}
	if len(rp.Alternatives) != 6 {
		t.Fatalf("len(alternatives) = %d, want 6", len(rp.Alternatives))
	}
}

func TestCloseGameScenario(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l, lobbyID, adminID := newTestLobby(clock, nil, 60*time.Second)

	resp := l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: CloseGameAction{Reason: "done"}})
	gc, ok := resp[0].Payload.(GameClosedPayload)
	if !ok || gc.Reason != "done" {
		t.Fatalf("payload = %+v, want GameClosedPayload{Reason: done}", resp[0])
	}
	if !l.Closed() {
		t.Fatal("expected lobby to be closed")
	}

	resp2 := l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: StartGameAction{}})
	if _, ok := resp2[0].Payload.(ErrorPayload); !ok {
		t.Fatalf("expected further events on a closed lobby to error, got %T", resp2[0].Payload)
	}
}

func TestAnswerOutsideQuestionIsStateError(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l, lobbyID, _ := newTestLobby(clock, nil, 60*time.Second)
	a := uuid.New()
	joinPlayer(t, l, lobbyID, a, "A", clock)

	resp := l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: a}, Action: AnswerAction{Answer: "Red"}})
	ep, ok := resp[0].Payload.(ErrorPayload)
	if !ok || ep.Kind != ErrorState {
		t.Fatalf("payload = %+v, want ErrorPayload{Kind: ErrorState}", resp[0])
	}
}

func TestSecondAnswerIsIdempotent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	questions := []catalogue.Question{colorQuestion(1, "Red")}
	l, lobbyID, adminID := newTestLobby(clock, questions, 60*time.Second)

	a := uuid.New()
	b := uuid.New()
	joinPlayer(t, l, lobbyID, a, "A", clock)
	joinPlayer(t, l, lobbyID, b, "B", clock)
	l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: StartGameAction{}})
	l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: adminID}, Action: StartRoundAction{}})

	l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: a}, Action: AnswerAction{Answer: "Red"}})
	scoreAfterFirst := l.scoreOf(a)

	resp := l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: a}, Action: AnswerAction{Answer: "Red"}})
	if len(resp) != 0 {
		t.Fatalf("second answer: got %d responses, want 0", len(resp))
	}
	if l.scoreOf(a) != scoreAfterFirst {
		t.Fatalf("score changed on second answer: %d vs %d", l.scoreOf(a), scoreAfterFirst)
	}
}

func TestAdminOnlyActionRejectsNonAdmin(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l, lobbyID, _ := newTestLobby(clock, nil, 60*time.Second)
	intruder := uuid.New()

	resp := l.ProcessEvent(GameEvent{Context: EventContext{LobbyID: lobbyID, SenderID: intruder}, Action: StartGameAction{}})
	ep, ok := resp[0].Payload.(ErrorPayload)
	if !ok || ep.Kind != ErrorAuthorization {
		t.Fatalf("payload = %+v, want ErrorPayload{Kind: ErrorAuthorization}", resp[0])
	}
}

// scoreOf is a small test-only accessor; production code never needs to
// peek at a single player's score outside of a scoreboard snapshot.
func (l *Lobby) scoreOf(id uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.players[id]; ok {
		return p.Score
	}
	return -1
}
