// Package registry implements the Lobby Registry: lobby creation, lookup
// by id or join code, and reaping of empty lobbies. Grounded on the
// original Rust game_manager.rs (GameManager's generate_join_code,
// create_lobby, get_lobby, get_lobby_id_from_join_code, remove_lobby,
// cleanup_empty_lobbies) and adapted to partybox's GameManager/reaperLoop
// idiom in celebrity.go for the periodic sweep.
package registry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/kottz/spektrum/internal/catalogue"
	"github.com/kottz/spektrum/internal/connmux"
	"github.com/kottz/spektrum/internal/engine"
	"github.com/kottz/spektrum/internal/idgen"
)

// sixDigitAttempts is the number of 6-digit join codes tried before the
// registry escalates to 7 digits, per spec.md §4.3.
const sixDigitAttempts = 10_000

// Entry bundles an engine Lobby with its connection multiplexer and the
// live session count the sweep uses to decide whether it is eligible for
// removal.
type Entry struct {
	Lobby *engine.Lobby
	mux   *connmux.Multiplexer

	mu           sync.Mutex
	sessionCount int
	emptySince   time.Time
}

// Mux returns the lobby's connection multiplexer, for the protocol adapter
// to attach and detach sessions against.
func (e *Entry) Mux() *connmux.Multiplexer { return e.mux }

// SessionJoined/SessionLeft are called by the protocol adapter when a
// session attaches to or detaches from the lobby's multiplexer, so the
// registry can track liveness without reaching into its internals.
func (e *Entry) SessionJoined() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionCount++
	e.emptySince = time.Time{}
}

func (e *Entry) SessionLeft(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionCount--
	if e.sessionCount <= 0 {
		e.sessionCount = 0
		e.emptySince = now
	}
}

func (e *Entry) isEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionCount == 0
}

func (e *Entry) emptyDuration(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessionCount > 0 || e.emptySince.IsZero() {
		return 0
	}
	return now.Sub(e.emptySince)
}

// Registry owns the lobby-id and join-code indices and the idle sweep.
type Registry struct {
	mu        sync.RWMutex
	lobbies   map[uuid.UUID]*Entry
	joinCodes map[string]uuid.UUID

	catalogue     *catalogue.Catalogue
	clock         idgen.Clock
	sessionIdle   time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
	randSourceMu  sync.Mutex
	sharedRandSrc rand.Source
}

// New creates a Registry backed by cat for question selection. sessionIdle
// is the grace period an empty lobby survives before the sweep reaps it;
// zero disables the periodic sweep (CloseGame removal still works).
func New(cat *catalogue.Catalogue, clock idgen.Clock, sessionIdle time.Duration) *Registry {
	r := &Registry{
		lobbies:       make(map[uuid.UUID]*Entry),
		joinCodes:     make(map[string]uuid.UUID),
		catalogue:     cat,
		clock:         clock,
		sessionIdle:   sessionIdle,
		stop:          make(chan struct{}),
		sharedRandSrc: rand.NewSource(time.Now().UnixNano()),
	}
	if sessionIdle > 0 {
		go r.sweepLoop()
	}
	return r
}

func (r *Registry) newRand() *rand.Rand {
	r.randSourceMu.Lock()
	defer r.randSourceMu.Unlock()
	seed := rand.New(r.sharedRandSrc).Int63()
	return rand.New(rand.NewSource(seed))
}

// Create allocates a lobby id, an admin id, and a unique join code, and
// registers a new engine Lobby under both indices.
func (r *Registry) Create(duration time.Duration) (lobbyID, adminID uuid.UUID, joinCode string) {
	lobbyID = idgen.New()
	adminID = idgen.New()

	lobby := engine.New(lobbyID, adminID, duration, r.catalogue, r.clock, r.newRand())
	entry := &Entry{Lobby: lobby, mux: connmux.New(), emptySince: r.clock.Now()}

	r.mu.Lock()
	defer r.mu.Unlock()

	joinCode = r.generateJoinCodeLocked()
	r.joinCodes[joinCode] = lobbyID
	r.lobbies[lobbyID] = entry

	return lobbyID, adminID, joinCode
}

// generateJoinCodeLocked must be called with r.mu held for writing.
func (r *Registry) generateJoinCodeLocked() string {
	for i := 0; i < sixDigitAttempts; i++ {
		code := formatCode(rand.Intn(1_000_000), 6)
		if _, taken := r.joinCodes[code]; !taken {
			return code
		}
	}

	for {
		code := formatCode(rand.Intn(10_000_000), 7)
		if _, taken := r.joinCodes[code]; !taken {
			return code
		}
	}
}

func formatCode(n, width int) string {
	const digits = "0123456789"
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = digits[n%10]
		n /= 10
	}
	return string(buf)
}

// LookupByID returns the lobby registered under id, if any.
func (r *Registry) LookupByID(id uuid.UUID) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.lobbies[id]
	return e, ok
}

// LookupByJoinCode resolves a join code to a lobby id.
func (r *Registry) LookupByJoinCode(code string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.joinCodes[code]
	return id, ok
}

// Remove deletes both the lobby-id and join-code mappings for id.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lobbies, id)
	for code, lobbyID := range r.joinCodes {
		if lobbyID == id {
			delete(r.joinCodes, code)
			break
		}
	}
}

// Close stops the periodic sweep.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.sessionIdle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	now := r.clock.Now()

	var stale []uuid.UUID
	r.mu.RLock()
	for id, e := range r.lobbies {
		if e.isEmpty() && e.emptyDuration(now) >= r.sessionIdle {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return
	}

	r.mu.Lock()
	for _, id := range stale {
		delete(r.lobbies, id)
		for code, lobbyID := range r.joinCodes {
			if lobbyID == id {
				delete(r.joinCodes, code)
				break
			}
		}
	}
	r.mu.Unlock()

	log.Debug("reaped idle lobbies", "count", len(stale))
}
