package connmux

import (
	"testing"

	"github.com/google/uuid"

	"github.com/kottz/spektrum/internal/engine"
)

func identity(p engine.Payload) any { return p }

func TestBroadcastAllExcept(t *testing.T) {
	m := New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	chA, chB, chC := make(chan any, 1), make(chan any, 1), make(chan any, 1)
	m.Attach(a, chA)
	m.Attach(b, chB)
	m.Attach(c, chC)

	m.Broadcast([]engine.GameResponse{
		{Recipients: engine.AllExcept(a), Payload: engine.PlayerLeftPayload{Name: "A"}},
	}, identity)

	select {
	case <-chA:
		t.Fatal("excluded recipient should not receive the message")
	default:
	}
	if len(chB) != 1 || len(chC) != 1 {
		t.Fatal("expected both non-excluded recipients to receive the message")
	}
}

func TestBroadcastSingleAndMultipleDedup(t *testing.T) {
	m := New()
	a, b := uuid.New(), uuid.New()
	chA, chB := make(chan any, 2), make(chan any, 2)
	m.Attach(a, chA)
	m.Attach(b, chB)

	m.Broadcast([]engine.GameResponse{
		{Recipients: engine.Multiple([]uuid.UUID{a, a, b}), Payload: engine.GameClosedPayload{Reason: "x"}},
	}, identity)

	if len(chA) != 1 {
		t.Fatalf("len(chA) = %d, want 1 (deduplicated)", len(chA))
	}
	if len(chB) != 1 {
		t.Fatalf("len(chB) = %d, want 1", len(chB))
	}
}

func TestBroadcastDropsOnFullChannel(t *testing.T) {
	m := New()
	a := uuid.New()
	ch := make(chan any, 1)
	m.Attach(a, ch)
	ch <- "already full"

	// Must not block or panic even though the channel has no room.
	m.Broadcast([]engine.GameResponse{
		{Recipients: engine.Single(a), Payload: engine.GameClosedPayload{Reason: "x"}},
	}, identity)

	if len(ch) != 1 {
		t.Fatalf("len(ch) = %d, want 1 (new message dropped, not enqueued)", len(ch))
	}
}

func TestAttachReplacesExistingChannel(t *testing.T) {
	m := New()
	id := uuid.New()
	oldCh := make(chan any, 1)
	newCh := make(chan any, 1)
	m.Attach(id, oldCh)
	m.Attach(id, newCh)

	m.Broadcast([]engine.GameResponse{
		{Recipients: engine.Single(id), Payload: engine.GameClosedPayload{Reason: "x"}},
	}, identity)

	if len(newCh) != 1 {
		t.Fatal("expected the replacement channel to receive the message")
	}
	if len(oldCh) != 0 {
		t.Fatal("expected the old channel to receive nothing after replacement")
	}
}
