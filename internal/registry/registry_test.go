package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

func TestCreateLookupRoundTrip(t *testing.T) {
	r := New(nil, fixedClock{now: time.Unix(0, 0)}, 0)

	lobbyID, adminID, joinCode := r.Create(60 * time.Second)
	if adminID == uuid.Nil {
		t.Fatal("expected a non-nil admin id")
	}

	gotID, ok := r.LookupByJoinCode(joinCode)
	if !ok || gotID != lobbyID {
		t.Fatalf("LookupByJoinCode(%q) = (%v, %v), want (%v, true)", joinCode, gotID, ok, lobbyID)
	}

	entry, ok := r.LookupByID(lobbyID)
	if !ok || entry.Lobby.ID != lobbyID {
		t.Fatalf("LookupByID(%v) failed", lobbyID)
	}
}

func TestJoinCodeEscalatesTo7DigitsOnExhaustion(t *testing.T) {
	r := New(nil, fixedClock{now: time.Unix(0, 0)}, 0)

	r.mu.Lock()
	for n := 0; n < 1_000_000; n++ {
		r.joinCodes[fmt.Sprintf("%06d", n)] = uuid.New()
	}
	r.mu.Unlock()

	code := r.generateJoinCodeLocked()
	if len(code) != 7 {
		t.Fatalf("len(code) = %d, want 7 after exhausting the 6-digit space", len(code))
	}

	r.mu.RLock()
	_, taken := r.joinCodes[code]
	r.mu.RUnlock()
	if taken {
		t.Fatalf("generated code %q already taken", code)
	}
}

func TestRemoveDeletesBothIndices(t *testing.T) {
	r := New(nil, fixedClock{now: time.Unix(0, 0)}, 0)
	lobbyID, _, joinCode := r.Create(60 * time.Second)

	r.Remove(lobbyID)

	if _, ok := r.LookupByID(lobbyID); ok {
		t.Fatal("expected lobby to be removed")
	}
	if _, ok := r.LookupByJoinCode(joinCode); ok {
		t.Fatal("expected join code mapping to be removed")
	}
}

func TestSweepReapsIdleLobbies(t *testing.T) {
	clock := &adjustableClock{now: time.Unix(0, 0)}
	r := New(nil, clock, 100*time.Millisecond)
	defer r.Close()

	lobbyID, _, _ := r.Create(60 * time.Second)
	entry, _ := r.LookupByID(lobbyID)
	entry.SessionLeft(clock.now)

	clock.now = clock.now.Add(time.Second)
	r.sweep()

	if _, ok := r.LookupByID(lobbyID); ok {
		t.Fatal("expected idle lobby to be reaped")
	}
}

type adjustableClock struct{ now time.Time }

func (c *adjustableClock) Now() time.Time { return c.now }
