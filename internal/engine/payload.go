package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/kottz/spektrum/internal/catalogue"
)

// EventContext identifies who sent an event, for which lobby, and when.
type EventContext struct {
	LobbyID   uuid.UUID
	SenderID  uuid.UUID
	Timestamp time.Time
}

// Action is the closed set of events the engine accepts. The set is
// closed by design (spec.md §9: "avoid an open-method hierarchy"), so it
// is a sealed interface rather than an extensible one.
type Action interface {
	isAction()
}

type JoinAction struct{ Name string }
type ReconnectAction struct{}
type LeaveAction struct{}
type AnswerAction struct{ Answer string }
type StartGameAction struct{ QuestionSet string }
type StartRoundAction struct{ SpecifiedAlternatives []string }
type EndRoundAction struct{}
type SkipQuestionAction struct{}
type EndGameAction struct{ Reason string }
type CloseGameAction struct{ Reason string }

func (JoinAction) isAction()         {}
func (ReconnectAction) isAction()    {}
func (LeaveAction) isAction()        {}
func (AnswerAction) isAction()       {}
func (StartGameAction) isAction()    {}
func (StartRoundAction) isAction()   {}
func (EndRoundAction) isAction()     {}
func (SkipQuestionAction) isAction() {}
func (EndGameAction) isAction()      {}
func (CloseGameAction) isAction()    {}

// GameEvent is one inbound event handed to ProcessEvent.
type GameEvent struct {
	Context EventContext
	Action  Action
}

// RecipientKind selects how a GameResponse's Recipients field resolves
// against the multiplexer's attached session set.
type RecipientKind int

const (
	RecipientSingle RecipientKind = iota
	RecipientMultiple
	RecipientAllExcept
	RecipientAll
)

// Recipients names who a GameResponse is delivered to; resolution against
// the set of currently-attached sessions happens in the multiplexer, not
// here, since the engine has no notion of transport-level attachment.
type Recipients struct {
	Kind RecipientKind
	IDs  []uuid.UUID
}

func Single(id uuid.UUID) Recipients         { return Recipients{Kind: RecipientSingle, IDs: []uuid.UUID{id}} }
func Multiple(ids []uuid.UUID) Recipients    { return Recipients{Kind: RecipientMultiple, IDs: ids} }
func AllExcept(ids ...uuid.UUID) Recipients  { return Recipients{Kind: RecipientAllExcept, IDs: ids} }
func All() Recipients                        { return Recipients{Kind: RecipientAll} }

// Payload is the closed set of outbound response bodies.
type Payload interface {
	isPayload()
}

type JoinedPayload struct {
	PlayerID      uuid.UUID
	LobbyID       uuid.UUID
	Name          string
	RoundDuration time.Duration
	Players       []ScoreEntry
}

type ReconnectedPayload struct {
	Phase        Phase
	QuestionType string
	Alternatives []string
	Scoreboard   []ScoreEntry
	CurrentMedia *catalogue.Media
}

type PlayerLeftPayload struct{ Name string }

type PlayerAnsweredPayload struct {
	Name     string
	Correct  bool
	NewScore int
}

type StateChangedPayload struct {
	Phase        Phase
	QuestionType string
	Alternatives []string
	Scoreboard   []ScoreEntry
}

type AdminInfoPayload struct {
	Question catalogue.Question
}

type AdminNextQuestionsPayload struct {
	Upcoming []catalogue.Question
}

type GameOverPayload struct {
	Scores []ScoreEntry
	Reason string
}

type GameClosedPayload struct{ Reason string }

// ErrorKind distinguishes the three recoverable error taxonomies the
// engine itself can raise (spec.md §7): a bad protocol reference, an
// illegal transition, or an authorization failure. The engine raises
// ErrorProtocol for unknown player ids, empty or taken names, and
// unrecognized actions; decode failures and unknown lobbies are reported
// by the adapter, not the engine.
type ErrorKind int

const (
	ErrorState ErrorKind = iota
	ErrorAuthorization
	ErrorProtocol
)

type ErrorPayload struct {
	Kind    ErrorKind
	Message string
}

func (JoinedPayload) isPayload()             {}
func (ReconnectedPayload) isPayload()        {}
func (PlayerLeftPayload) isPayload()         {}
func (PlayerAnsweredPayload) isPayload()     {}
func (StateChangedPayload) isPayload()       {}
func (AdminInfoPayload) isPayload()          {}
func (AdminNextQuestionsPayload) isPayload() {}
func (GameOverPayload) isPayload()           {}
func (GameClosedPayload) isPayload()         {}
func (ErrorPayload) isPayload()              {}

// GameResponse pairs a payload with the recipients it must be delivered
// to, in the order the engine produced it.
type GameResponse struct {
	Recipients Recipients
	Payload    Payload
}
