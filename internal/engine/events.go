package engine

import (
	"github.com/google/uuid"

	"github.com/kottz/spektrum/internal/catalogue"
)

// ProcessEvent is the engine's only entry point: it dispatches ev under
// the lobby's single-writer lock and returns the responses to deliver.
// It never blocks on I/O and never panics on protocol misuse; illegal or
// unauthorized events produce an ErrorPayload and leave state unchanged.
// A second Answer from a player in the same round, and a Leave from an
// unknown player, produce no response at all.
func (l *Lobby) ProcessEvent(ev GameEvent) []GameResponse {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errorResp(ev.Context.SenderID, ErrorState, "lobby is closed")
	}

	if l.phase == PhaseGameOver {
		if _, ok := ev.Action.(CloseGameAction); !ok {
			return errorResp(ev.Context.SenderID, ErrorState, "the game has ended")
		}
	}

	switch a := ev.Action.(type) {
	case JoinAction:
		return l.handleJoinLocked(ev.Context, a)
	case ReconnectAction:
		return l.handleReconnectLocked(ev.Context)
	case LeaveAction:
		return l.handleLeaveLocked(ev.Context)
	case AnswerAction:
		return l.handleAnswerLocked(ev.Context, a)
	case StartGameAction:
		return l.handleStartGameLocked(ev.Context, a)
	case StartRoundAction:
		return l.handleStartRoundLocked(ev.Context, a)
	case EndRoundAction:
		return l.handleEndRoundLocked(ev.Context)
	case SkipQuestionAction:
		return l.handleSkipQuestionLocked(ev.Context)
	case EndGameAction:
		return l.handleEndGameLocked(ev.Context, a)
	case CloseGameAction:
		return l.handleCloseGameLocked(ev.Context, a)
	default:
		return errorResp(ev.Context.SenderID, ErrorProtocol, "unrecognized action")
	}
}

func errorResp(sender uuid.UUID, kind ErrorKind, message string) []GameResponse {
	return []GameResponse{{Recipients: Single(sender), Payload: ErrorPayload{Kind: kind, Message: message}}}
}

func (l *Lobby) requireAdminLocked(sender uuid.UUID) []GameResponse {
	if sender != l.AdminID {
		return errorResp(sender, ErrorAuthorization, "this action requires the lobby admin")
	}
	return nil
}

func (l *Lobby) colorWeightsLocked() map[catalogue.Color]float64 {
	if l.catalogue == nil {
		return nil
	}
	return l.catalogue.ColorWeights
}

func (l *Lobby) handleJoinLocked(ctx EventContext, a JoinAction) []GameResponse {
	if l.phase != PhaseLobby {
		return errorResp(ctx.SenderID, ErrorState, "join is only valid before the game starts")
	}

	if p, exists := l.players[ctx.SenderID]; exists {
		return []GameResponse{{Recipients: Single(ctx.SenderID), Payload: JoinedPayload{
			PlayerID: ctx.SenderID, LobbyID: l.ID, Name: p.Name,
			RoundDuration: l.Duration, Players: l.scoreboardLocked(),
		}}}
	}

	if a.Name == "" {
		return errorResp(ctx.SenderID, ErrorProtocol, "name must not be empty")
	}
	for _, id := range l.order {
		if l.players[id].Name == a.Name {
			return errorResp(ctx.SenderID, ErrorProtocol, "name is already taken")
		}
	}

	l.players[ctx.SenderID] = &Player{ID: ctx.SenderID, Name: a.Name}
	l.order = append(l.order, ctx.SenderID)

	return []GameResponse{{Recipients: Single(ctx.SenderID), Payload: JoinedPayload{
		PlayerID: ctx.SenderID, LobbyID: l.ID, Name: a.Name,
		RoundDuration: l.Duration, Players: l.scoreboardLocked(),
	}}}
}

func (l *Lobby) handleReconnectLocked(ctx EventContext) []GameResponse {
	if _, ok := l.players[ctx.SenderID]; !ok {
		return errorResp(ctx.SenderID, ErrorProtocol, "unknown player id")
	}

	var questionType string
	var alternatives []string
	var media *catalogue.Media

	if l.phase == PhaseQuestion && l.round != nil {
		questionType = l.round.Question.Type.String()
		alternatives = l.round.Alternatives
		m := l.round.Question.Media
		media = &m
	}

	return []GameResponse{{Recipients: Single(ctx.SenderID), Payload: ReconnectedPayload{
		Phase: l.phase, QuestionType: questionType, Alternatives: alternatives,
		Scoreboard: l.scoreboardLocked(), CurrentMedia: media,
	}}}
}

func (l *Lobby) handleLeaveLocked(ctx EventContext) []GameResponse {
	p, ok := l.players[ctx.SenderID]
	if !ok {
		return nil
	}

	delete(l.players, ctx.SenderID)
	for i, id := range l.order {
		if id == ctx.SenderID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	return []GameResponse{{Recipients: AllExcept(ctx.SenderID), Payload: PlayerLeftPayload{Name: p.Name}}}
}

func (l *Lobby) handleAnswerLocked(ctx EventContext, a AnswerAction) []GameResponse {
	if l.phase != PhaseQuestion || l.round == nil {
		return errorResp(ctx.SenderID, ErrorState, "answer is only valid during a question")
	}

	p, ok := l.players[ctx.SenderID]
	if !ok {
		return errorResp(ctx.SenderID, ErrorProtocol, "unknown player id")
	}
	if p.HasAnswered {
		return nil
	}

	elapsed := l.clock.Now().Sub(l.round.RoundStart).Seconds()
	late := elapsed > l.Duration.Seconds()
	correct := catalogue.ValidateAnswer(l.round.Question, a.Answer)

	p.HasAnswered = true
	p.Answer = a.Answer
	if !late && correct {
		p.Score += calculateScore(elapsed)
	}

	responses := []GameResponse{{Recipients: All(), Payload: PlayerAnsweredPayload{
		Name: p.Name, Correct: correct, NewScore: p.Score,
	}}}

	allAnswered := true
	for _, id := range l.order {
		if !l.players[id].HasAnswered {
			allAnswered = false
			break
		}
	}
	// A late answer is recorded but never ends the round; the admin's
	// EndRound does.
	if allAnswered && !late {
		responses = append(responses, l.endRoundEffectLocked()...)
	}
	return responses
}

// endRoundEffectLocked is shared by the explicit admin EndRound action and
// the implicit all-answered transition out of Question.
func (l *Lobby) endRoundEffectLocked() []GameResponse {
	l.phase = PhaseScore
	l.round = nil
	for _, id := range l.order {
		l.players[id].HasAnswered = false
		l.players[id].Answer = ""
	}

	if l.index >= len(l.queue)-1 {
		l.phase = PhaseGameOver
		return []GameResponse{{Recipients: All(), Payload: GameOverPayload{
			Scores: l.scoreboardLocked(), Reason: "all questions played",
		}}}
	}

	responses := []GameResponse{{Recipients: All(), Payload: StateChangedPayload{
		Phase: PhaseScore, Scoreboard: l.scoreboardLocked(),
	}}}
	responses = append(responses, l.adminPreviewLocked()...)
	return responses
}

func (l *Lobby) adminPreviewLocked() []GameResponse {
	upcoming := l.upcomingLocked(adminPreviewCount)
	if len(upcoming) == 0 {
		return nil
	}
	return []GameResponse{{Recipients: Single(l.AdminID), Payload: AdminNextQuestionsPayload{Upcoming: upcoming}}}
}

func (l *Lobby) handleStartGameLocked(ctx EventContext, a StartGameAction) []GameResponse {
	if resp := l.requireAdminLocked(ctx.SenderID); resp != nil {
		return resp
	}
	if l.phase != PhaseLobby {
		return errorResp(ctx.SenderID, ErrorState, "the game has already started")
	}

	var setQuestions []catalogue.Question
	if a.QuestionSet != "" && l.catalogue != nil {
		for _, s := range l.catalogue.Sets {
			if s.Name == a.QuestionSet {
				setQuestions = s.Questions
				break
			}
		}
	}

	l.queue = l.questionSetFor(setQuestions)
	l.index = -1
	l.phase = PhaseScore

	return []GameResponse{{Recipients: All(), Payload: StateChangedPayload{
		Phase: PhaseScore, Scoreboard: l.scoreboardLocked(),
	}}}
}

func (l *Lobby) handleStartRoundLocked(ctx EventContext, a StartRoundAction) []GameResponse {
	if resp := l.requireAdminLocked(ctx.SenderID); resp != nil {
		return resp
	}
	if l.phase != PhaseScore {
		return errorResp(ctx.SenderID, ErrorState, "start round is only valid between rounds")
	}

	nextIndex := l.index + 1
	if nextIndex >= len(l.queue) {
		return errorResp(ctx.SenderID, ErrorState, "no more questions in the queue")
	}

	q := l.queue[nextIndex]
	alternatives, correct, err := catalogue.GenerateAlternatives(l.rng, q, l.colorWeightsLocked(), a.SpecifiedAlternatives)
	if err != nil {
		return errorResp(ctx.SenderID, ErrorState, err.Error())
	}

	l.index = nextIndex
	l.phase = PhaseQuestion
	l.round = &RoundContext{Question: q, RoundStart: l.clock.Now(), Alternatives: alternatives, Correct: correct}
	for _, id := range l.order {
		l.players[id].HasAnswered = false
		l.players[id].Answer = ""
	}

	return []GameResponse{
		{Recipients: All(), Payload: StateChangedPayload{
			Phase: PhaseQuestion, QuestionType: q.Type.String(),
			Alternatives: alternatives, Scoreboard: l.scoreboardLocked(),
		}},
		{Recipients: Single(l.AdminID), Payload: AdminInfoPayload{Question: q}},
	}
}

func (l *Lobby) handleSkipQuestionLocked(ctx EventContext) []GameResponse {
	if resp := l.requireAdminLocked(ctx.SenderID); resp != nil {
		return resp
	}
	if l.phase != PhaseScore {
		return errorResp(ctx.SenderID, ErrorState, "skip is only valid between rounds")
	}

	l.index++
	if l.index >= len(l.queue) {
		l.phase = PhaseGameOver
		return []GameResponse{{Recipients: All(), Payload: GameOverPayload{
			Scores: l.scoreboardLocked(), Reason: "all questions played",
		}}}
	}

	return []GameResponse{{Recipients: All(), Payload: StateChangedPayload{
		Phase: PhaseScore, Scoreboard: l.scoreboardLocked(),
	}}}
}

func (l *Lobby) handleEndRoundLocked(ctx EventContext) []GameResponse {
	if resp := l.requireAdminLocked(ctx.SenderID); resp != nil {
		return resp
	}
	if l.phase != PhaseQuestion {
		return errorResp(ctx.SenderID, ErrorState, "end round is only valid during a question")
	}
	return l.endRoundEffectLocked()
}

func (l *Lobby) handleEndGameLocked(ctx EventContext, a EndGameAction) []GameResponse {
	if resp := l.requireAdminLocked(ctx.SenderID); resp != nil {
		return resp
	}
	if l.phase != PhaseScore {
		return errorResp(ctx.SenderID, ErrorState, "end game is only valid between rounds")
	}

	l.phase = PhaseGameOver
	return []GameResponse{{Recipients: All(), Payload: GameOverPayload{Scores: l.scoreboardLocked(), Reason: a.Reason}}}
}

func (l *Lobby) handleCloseGameLocked(ctx EventContext, a CloseGameAction) []GameResponse {
	if resp := l.requireAdminLocked(ctx.SenderID); resp != nil {
		return resp
	}

	l.phase = PhaseGameOver
	l.closed = true
	return []GameResponse{{Recipients: All(), Payload: GameClosedPayload{Reason: a.Reason}}}
}
