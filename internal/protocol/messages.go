// Package protocol translates inbound wire frames into engine.GameEvent
// values and engine.GameResponse payloads into outbound wire frames.
// Grounded on the original Rust messages.rs for the wire shapes and
// discriminator names, and on partybox's celebrity.go for the Go idiom:
// one Go struct per message kind, sent as `any` down a buffered channel,
// each carrying its own literal "type" tag.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kottz/spektrum/internal/catalogue"
	"github.com/kottz/spektrum/internal/engine"
)

// ClientEnvelope is the outer decode target for every inbound frame; its
// Type field selects which concrete struct to finish decoding into.
type ClientEnvelope struct {
	Type string `json:"type"`
}

type clientJoinLobby struct {
	JoinCode string     `json:"join_code"`
	AdminID  *uuid.UUID `json:"admin_id"`
	Name     string     `json:"name"`
}

type clientReconnect struct {
	LobbyID  uuid.UUID `json:"lobby_id"`
	PlayerID uuid.UUID `json:"player_id"`
}

type clientLeave struct {
	LobbyID uuid.UUID `json:"lobby_id"`
}

type clientAnswer struct {
	LobbyID uuid.UUID `json:"lobby_id"`
	Answer  string    `json:"answer"`
}

type clientAdminAction struct {
	LobbyID uuid.UUID       `json:"lobby_id"`
	Action  json.RawMessage `json:"action"`
}

type adminActionEnvelope struct {
	Type string `json:"type"`
}

type adminActionStartRound struct {
	SpecifiedAlternatives []string `json:"specified_alternatives"`
}

type adminActionEndGame struct {
	Reason string `json:"reason"`
}

type adminActionCloseGame struct {
	Reason string `json:"reason"`
}

// DecodedClientMessage is the result of decoding one inbound frame: the
// lobby it targets (zero for JoinLobby, which has none yet), the action
// for the engine, and — for JoinLobby/Reconnect — the extra identity
// information the adapter needs before it can build a GameEvent.
type DecodedClientMessage struct {
	Type     string
	LobbyID  uuid.UUID
	JoinCode string
	AdminID  *uuid.UUID
	Name     string
	PlayerID uuid.UUID
	Action   engine.Action
}

// DecodeClientMessage decodes one inbound JSON frame.
func DecodeClientMessage(raw []byte) (DecodedClientMessage, error) {
	var envelope ClientEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return DecodedClientMessage{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}

	switch envelope.Type {
	case "JoinLobby":
		var m clientJoinLobby
		if err := json.Unmarshal(raw, &m); err != nil {
			return DecodedClientMessage{}, fmt.Errorf("protocol: decode JoinLobby: %w", err)
		}
		return DecodedClientMessage{Type: envelope.Type, JoinCode: m.JoinCode, AdminID: m.AdminID, Name: m.Name, Action: engine.JoinAction{Name: m.Name}}, nil

	case "Reconnect":
		var m clientReconnect
		if err := json.Unmarshal(raw, &m); err != nil {
			return DecodedClientMessage{}, fmt.Errorf("protocol: decode Reconnect: %w", err)
		}
		return DecodedClientMessage{Type: envelope.Type, LobbyID: m.LobbyID, PlayerID: m.PlayerID, Action: engine.ReconnectAction{}}, nil

	case "Leave":
		var m clientLeave
		if err := json.Unmarshal(raw, &m); err != nil {
			return DecodedClientMessage{}, fmt.Errorf("protocol: decode Leave: %w", err)
		}
		return DecodedClientMessage{Type: envelope.Type, LobbyID: m.LobbyID, Action: engine.LeaveAction{}}, nil

	case "Answer":
		var m clientAnswer
		if err := json.Unmarshal(raw, &m); err != nil {
			return DecodedClientMessage{}, fmt.Errorf("protocol: decode Answer: %w", err)
		}
		return DecodedClientMessage{Type: envelope.Type, LobbyID: m.LobbyID, Action: engine.AnswerAction{Answer: m.Answer}}, nil

	case "AdminAction":
		var m clientAdminAction
		if err := json.Unmarshal(raw, &m); err != nil {
			return DecodedClientMessage{}, fmt.Errorf("protocol: decode AdminAction: %w", err)
		}
		action, err := decodeAdminAction(m.Action)
		if err != nil {
			return DecodedClientMessage{}, err
		}
		return DecodedClientMessage{Type: envelope.Type, LobbyID: m.LobbyID, Action: action}, nil

	default:
		return DecodedClientMessage{}, fmt.Errorf("protocol: unknown message type %q", envelope.Type)
	}
}

func decodeAdminAction(raw json.RawMessage) (engine.Action, error) {
	var envelope adminActionEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("protocol: decode admin action envelope: %w", err)
	}

	switch envelope.Type {
	case "StartGame":
		return engine.StartGameAction{}, nil
	case "StartRound":
		var m adminActionStartRound
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode StartRound: %w", err)
		}
		return engine.StartRoundAction{SpecifiedAlternatives: m.SpecifiedAlternatives}, nil
	case "EndRound":
		return engine.EndRoundAction{}, nil
	case "SkipQuestion":
		return engine.SkipQuestionAction{}, nil
	case "EndGame":
		var m adminActionEndGame
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode EndGame: %w", err)
		}
		return engine.EndGameAction{Reason: m.Reason}, nil
	case "CloseGame":
		var m adminActionCloseGame
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode CloseGame: %w", err)
		}
		return engine.CloseGameAction{Reason: m.Reason}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown admin action type %q", envelope.Type)
	}
}

// Outbound wire message types. Each carries its own literal "type" tag,
// constructed at send time, and travels down a session's `chan any`
// exactly like partybox's Client.send.

type ScoreEntryWire struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func scoreboardWire(entries []engine.ScoreEntry) []ScoreEntryWire {
	out := make([]ScoreEntryWire, len(entries))
	for i, e := range entries {
		out[i] = ScoreEntryWire{Name: e.Name, Score: e.Score}
	}
	return out
}

type CurrentSongWire struct {
	SongName string `json:"song_name"`
	Artist   string `json:"artist"`
	YoutubeID string `json:"youtube_id"`
}

type MsgJoinedLobby struct {
	Type          string           `json:"type"`
	PlayerID      uuid.UUID        `json:"player_id"`
	LobbyID       uuid.UUID        `json:"lobby_id"`
	Name          string           `json:"name"`
	RoundDuration int64            `json:"round_duration"`
	Players       []ScoreEntryWire `json:"players"`
}

type GameStateWire struct {
	Phase        string           `json:"phase"`
	QuestionType string           `json:"question_type,omitempty"`
	Alternatives []string         `json:"alternatives,omitempty"`
	Scoreboard   []ScoreEntryWire `json:"scoreboard"`
	CurrentSong  *CurrentSongWire `json:"current_song,omitempty"`
}

type MsgReconnectSuccess struct {
	Type      string        `json:"type"`
	GameState GameStateWire `json:"game_state"`
}

type MsgPlayerLeft struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type MsgPlayerAnswered struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Correct  bool   `json:"correct"`
	NewScore int    `json:"new_score"`
}

type MsgStateChanged struct {
	Type         string           `json:"type"`
	Phase        string           `json:"phase"`
	QuestionType string           `json:"question_type,omitempty"`
	Alternatives []string         `json:"alternatives,omitempty"`
	Scoreboard   []ScoreEntryWire `json:"scoreboard"`
}

// AdminQuestionWire is the admin-only preview of the question currently in
// play. messages.rs's AdminQuestion enum only covers Color/Character; Text
// and Year are added here since the engine must describe every question
// type to the admin, not only the two the original wire enum predates.
type AdminQuestionWire struct {
	Type            string `json:"type"`
	SongName        string `json:"song_name,omitempty"`
	Artist          string `json:"artist,omitempty"`
	YoutubeID       string `json:"youtube_id,omitempty"`
	Song            string `json:"song,omitempty"`
	CharacterContext string `json:"character_context,omitempty"`
	Prompt          string `json:"prompt,omitempty"`
	ReleaseYear     *int   `json:"release_year,omitempty"`
}

func adminQuestionWire(q catalogue.Question) AdminQuestionWire {
	switch q.Type {
	case catalogue.TypeColor:
		return AdminQuestionWire{Type: "ColorQuestion", SongName: q.Media.Title, Artist: q.Media.Artist, YoutubeID: q.Media.PlaybackID}
	case catalogue.TypeCharacter:
		// character_context is left empty rather than the literal "TODO"
		// the original source emits, per spec.md §9's resolved open question.
		return AdminQuestionWire{Type: "CharacterQuestion", Song: q.Media.Title, YoutubeID: q.Media.PlaybackID, CharacterContext: ""}
	case catalogue.TypeText:
		return AdminQuestionWire{Type: "TextQuestion", Prompt: q.QuestionText}
	case catalogue.TypeYear:
		return AdminQuestionWire{Type: "YearQuestion", SongName: q.Media.Title, Artist: q.Media.Artist, ReleaseYear: q.Media.ReleaseYear}
	default:
		return AdminQuestionWire{Type: "UnknownQuestion"}
	}
}

type MsgAdminInfo struct {
	Type     string            `json:"type"`
	Question AdminQuestionWire `json:"question"`
}

type GameQuestionWire struct {
	ID           int64  `json:"id"`
	QuestionType string `json:"question_type"`
	SongName     string `json:"song_name"`
	Artist       string `json:"artist"`
}

type MsgAdminNextQuestions struct {
	Type              string             `json:"type"`
	UpcomingQuestions []GameQuestionWire `json:"upcoming_questions"`
}

type MsgGameOver struct {
	Type   string           `json:"type"`
	Scores []ScoreEntryWire `json:"scores"`
	Reason string           `json:"reason"`
}

type MsgGameClosed struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type MsgError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EncodeServerMessage converts one engine.GameResponse payload into its
// wire representation.
func EncodeServerMessage(p engine.Payload) any {
	switch v := p.(type) {
	case engine.JoinedPayload:
		return MsgJoinedLobby{
			Type: "JoinedLobby", PlayerID: v.PlayerID, LobbyID: v.LobbyID, Name: v.Name,
			RoundDuration: int64(v.RoundDuration.Seconds()), Players: scoreboardWire(v.Players),
		}

	case engine.ReconnectedPayload:
		state := GameStateWire{Phase: v.Phase.String(), QuestionType: v.QuestionType, Alternatives: v.Alternatives, Scoreboard: scoreboardWire(v.Scoreboard)}
		if v.CurrentMedia != nil {
			state.CurrentSong = &CurrentSongWire{SongName: v.CurrentMedia.Title, Artist: v.CurrentMedia.Artist, YoutubeID: v.CurrentMedia.PlaybackID}
		}
		return MsgReconnectSuccess{Type: "ReconnectSuccess", GameState: state}

	case engine.PlayerLeftPayload:
		return MsgPlayerLeft{Type: "PlayerLeft", Name: v.Name}

	case engine.PlayerAnsweredPayload:
		return MsgPlayerAnswered{Type: "PlayerAnswered", Name: v.Name, Correct: v.Correct, NewScore: v.NewScore}

	case engine.StateChangedPayload:
		return MsgStateChanged{
			Type: "StateChanged", Phase: v.Phase.String(), QuestionType: v.QuestionType,
			Alternatives: v.Alternatives, Scoreboard: scoreboardWire(v.Scoreboard),
		}

	case engine.AdminInfoPayload:
		return MsgAdminInfo{Type: "AdminInfo", Question: adminQuestionWire(v.Question)}

	case engine.AdminNextQuestionsPayload:
		out := make([]GameQuestionWire, len(v.Upcoming))
		for i, q := range v.Upcoming {
			out[i] = GameQuestionWire{ID: q.ID, QuestionType: q.Type.String(), SongName: q.Media.Title, Artist: q.Media.Artist}
		}
		return MsgAdminNextQuestions{Type: "AdminNextQuestions", UpcomingQuestions: out}

	case engine.GameOverPayload:
		return MsgGameOver{Type: "GameOver", Scores: scoreboardWire(v.Scores), Reason: v.Reason}

	case engine.GameClosedPayload:
		return MsgGameClosed{Type: "GameClosed", Reason: v.Reason}

	case engine.ErrorPayload:
		return MsgError{Type: "Error", Message: v.Message}

	default:
		return MsgError{Type: "Error", Message: "internal: unencodable response payload"}
	}
}
