// Package engine implements the per-lobby state machine: a pure function
// over (state, event) that never blocks, performs no I/O, and never panics
// on protocol misuse. Grounded on spec.md §4.2 directly, since the Rust
// GameEngine it was distilled from was not present in the retrieved source
// (game_manager.rs and server.rs reference it, but its own file was not
// part of the pack); the phase-transition table is the source of truth.
package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kottz/spektrum/internal/catalogue"
	"github.com/kottz/spektrum/internal/idgen"
)

// Phase is one of the four lobby states.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseScore
	PhaseQuestion
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseScore:
		return "score"
	case PhaseQuestion:
		return "question"
	case PhaseGameOver:
		return "gameover"
	default:
		return "unknown"
	}
}

// adminPreviewCount is K in spec.md §4.2's admin-preview rule.
const adminPreviewCount = 3

// Player is one participant's state within a lobby.
type Player struct {
	ID          uuid.UUID
	Name        string
	Score       int
	HasAnswered bool
	Answer      string
}

// ScoreEntry is a (name, score) pair in scoreboard order.
type ScoreEntry struct {
	Name  string
	Score int
}

// RoundContext is the transient state of one Question phase.
type RoundContext struct {
	Question     catalogue.Question
	RoundStart   time.Time
	Alternatives []string
	Correct      map[string]struct{}
}

// Lobby is the top-level aggregate: a single logical writer guarded by mu.
// Every mutation goes through ProcessEvent.
type Lobby struct {
	mu sync.Mutex

	ID       uuid.UUID
	AdminID  uuid.UUID
	Duration time.Duration

	phase   Phase
	queue   []catalogue.Question
	index   int
	players map[uuid.UUID]*Player
	order   []uuid.UUID
	round   *RoundContext
	closed  bool

	catalogue *catalogue.Catalogue
	clock     idgen.Clock
	rng       *rand.Rand
}

// New creates a lobby in the Lobby phase, owned by adminID, drawing its
// question order from cat when the game starts.
func New(id, adminID uuid.UUID, duration time.Duration, cat *catalogue.Catalogue, clock idgen.Clock, rng *rand.Rand) *Lobby {
	return &Lobby{
		ID:        id,
		AdminID:   adminID,
		Duration:  duration,
		phase:     PhaseLobby,
		players:   make(map[uuid.UUID]*Player),
		catalogue: cat,
		clock:     clock,
		rng:       rng,
	}
}

// Phase returns the lobby's current phase.
func (l *Lobby) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Closed reports whether the lobby has processed a CloseGame event.
func (l *Lobby) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// scoreboardLocked returns the scoreboard in player-join order. Callers
// must hold l.mu.
func (l *Lobby) scoreboardLocked() []ScoreEntry {
	entries := make([]ScoreEntry, 0, len(l.order))
	for _, id := range l.order {
		p := l.players[id]
		if p == nil {
			continue
		}
		entries = append(entries, ScoreEntry{Name: p.Name, Score: p.Score})
	}
	return entries
}

func (l *Lobby) questionSetFor(setQuestions []catalogue.Question) []catalogue.Question {
	var pool []catalogue.Question
	if len(setQuestions) > 0 {
		pool = setQuestions
	} else if l.catalogue != nil {
		pool = l.catalogue.Questions
	}

	shuffled := append([]catalogue.Question(nil), pool...)
	l.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled
}

func (l *Lobby) upcomingLocked(k int) []catalogue.Question {
	start := l.index + 1
	if start < 0 {
		start = 0
	}
	end := start + k
	if end > len(l.queue) {
		end = len(l.queue)
	}
	if start >= end {
		return nil
	}
	return l.queue[start:end]
}
