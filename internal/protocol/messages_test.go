package protocol

import (
	"testing"

	"github.com/google/uuid"

	"github.com/kottz/spektrum/internal/catalogue"
	"github.com/kottz/spektrum/internal/engine"
)

func TestDecodeJoinLobby(t *testing.T) {
	adminID := uuid.New()
	raw := []byte(`{"type":"JoinLobby","join_code":"123456","admin_id":"` + adminID.String() + `","name":"Alice"}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	if msg.JoinCode != "123456" {
		t.Fatalf("JoinCode = %q, want %q", msg.JoinCode, "123456")
	}
	if msg.AdminID == nil || *msg.AdminID != adminID {
		t.Fatalf("AdminID = %v, want %v", msg.AdminID, adminID)
	}
	action, ok := msg.Action.(engine.JoinAction)
	if !ok {
		t.Fatalf("Action type = %T, want engine.JoinAction", msg.Action)
	}
	if action.Name != "Alice" {
		t.Fatalf("Name = %q, want %q", action.Name, "Alice")
	}
}

func TestDecodeAnswer(t *testing.T) {
	lobbyID := uuid.New()
	raw := []byte(`{"type":"Answer","lobby_id":"` + lobbyID.String() + `","answer":"Blue"}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	if msg.LobbyID != lobbyID {
		t.Fatalf("LobbyID = %v, want %v", msg.LobbyID, lobbyID)
	}
	action, ok := msg.Action.(engine.AnswerAction)
	if !ok {
		t.Fatalf("Action type = %T, want engine.AnswerAction", msg.Action)
	}
	if action.Answer != "Blue" {
		t.Fatalf("Answer = %q, want %q", action.Answer, "Blue")
	}
}

func TestDecodeAdminActionStartRound(t *testing.T) {
	lobbyID := uuid.New()
	raw := []byte(`{"type":"AdminAction","lobby_id":"` + lobbyID.String() + `","action":{"type":"StartRound","specified_alternatives":["Red","Blue"]}}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	action, ok := msg.Action.(engine.StartRoundAction)
	if !ok {
		t.Fatalf("Action type = %T, want engine.StartRoundAction", msg.Action)
	}
	if len(action.SpecifiedAlternatives) != 2 {
		t.Fatalf("len(SpecifiedAlternatives) = %d, want 2", len(action.SpecifiedAlternatives))
	}
}

func TestDecodeUnknownTypeIsError(t *testing.T) {
	if _, err := DecodeClientMessage([]byte(`{"type":"Bogus"}`)); err == nil {
		t.Fatal("expected an error decoding an unknown message type")
	}
}

func TestDecodeMalformedJSONIsError(t *testing.T) {
	if _, err := DecodeClientMessage([]byte(`not json`)); err == nil {
		t.Fatal("expected an error decoding malformed JSON")
	}
}

func TestEncodeJoinedPayload(t *testing.T) {
	playerID := uuid.New()
	lobbyID := uuid.New()

	wire := EncodeServerMessage(engine.JoinedPayload{
		PlayerID: playerID, LobbyID: lobbyID, Name: "Alice",
		Players: []engine.ScoreEntry{{Name: "Alice", Score: 0}},
	})

	msg, ok := wire.(MsgJoinedLobby)
	if !ok {
		t.Fatalf("wire type = %T, want MsgJoinedLobby", wire)
	}
	if msg.Type != "JoinedLobby" || msg.PlayerID != playerID || msg.LobbyID != lobbyID {
		t.Fatalf("unexpected MsgJoinedLobby: %+v", msg)
	}
}

func TestEncodeAdminInfoColorQuestion(t *testing.T) {
	wire := EncodeServerMessage(engine.AdminInfoPayload{
		Question: catalogue.Question{
			Type:  catalogue.TypeColor,
			Media: catalogue.Media{Title: "Song", Artist: "Artist", PlaybackID: "track-1"},
		},
	})

	msg, ok := wire.(MsgAdminInfo)
	if !ok {
		t.Fatalf("wire type = %T, want MsgAdminInfo", wire)
	}
	if msg.Question.Type != "ColorQuestion" {
		t.Fatalf("Question.Type = %q, want %q", msg.Question.Type, "ColorQuestion")
	}
	if msg.Question.SongName != "Song" {
		t.Fatalf("Question.SongName = %q, want %q", msg.Question.SongName, "Song")
	}
}

func TestEncodeUnknownPayloadFallsBackToError(t *testing.T) {
	wire := EncodeServerMessage(nil)
	if _, ok := wire.(MsgError); !ok {
		t.Fatalf("wire type = %T, want MsgError", wire)
	}
}
