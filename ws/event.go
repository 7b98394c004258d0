package ws

import (
	"encoding/json"

	"github.com/judgegodwins/colormatch-server/game"
)

type Event struct {
	Type    string          `json:"type"`
	TraceID string          `json:"trace_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// EventHandler handles one inbound event. Handlers run on the hub
// goroutine, one at a time.
type EventHandler func(evt Event, c *Client) error

// Inbound events
const (
	EventCreateRoom     = "createRoom"
	EventJoinRoom       = "joinRoom"
	EventStartGame      = "startGame"
	EventSetTargetColor = "setTargetColor"
	EventSubmitScore    = "submitScore"
	EventGetRoomInfo    = "getRoomInfo"
	EventLeaveRoom      = "leaveRoom"
)

// Outbound events
const (
	EventRoomCreated        = "roomCreated"
	EventPlayerJoined       = "playerJoined"
	EventGameStarted        = "gameStarted"
	EventTargetColorChanged = "targetColorChanged"
	EventScoreSubmitted     = "scoreSubmitted"
	EventGameFinished       = "gameFinished"
	EventRoomInfo           = "roomInfo"
	EventPlayerLeft         = "playerLeft"
	EventRoomClosed         = "roomClosed"
	EventError              = "error"
)

type PayloadCreateRoom struct {
	PlayerName  string `json:"playerName" validate:"max=32"`
	TargetColor string `json:"targetColor" validate:"max=64"`
}

type PayloadJoinRoom struct {
	RoomID     string `json:"roomId" validate:"max=16"`
	PlayerName string `json:"playerName" validate:"max=32"`
}

type PayloadRoom struct {
	RoomID string `json:"roomId" validate:"max=16"`
}

type PayloadSetTargetColor struct {
	RoomID      string `json:"roomId" validate:"max=16"`
	TargetColor string `json:"targetColor" validate:"max=64"`
}

type PayloadSubmitScore struct {
	RoomID    string  `json:"roomId" validate:"max=16"`
	Score     float64 `json:"score" validate:"gte=0"`
	TimeTaken float64 `json:"timeTaken" validate:"gte=0"`
}

type PayloadError struct {
	Message string `json:"message"`
}

type PayloadGameInfo struct {
	GameInfo game.Snapshot `json:"gameInfo"`
}

type PayloadRoomCreated struct {
	RoomID   string        `json:"roomId"`
	GameInfo game.Snapshot `json:"gameInfo"`
}

type PayloadPlayerJoined struct {
	PlayerID   string        `json:"playerId"`
	PlayerName string        `json:"playerName"`
	GameInfo   game.Snapshot `json:"gameInfo"`
}

type PayloadTargetColorChanged struct {
	TargetColor string        `json:"targetColor"`
	GameInfo    game.Snapshot `json:"gameInfo"`
}

type PayloadScoreSubmitted struct {
	PlayerID  string        `json:"playerId"`
	Score     float64       `json:"score"`
	TimeTaken float64       `json:"timeTaken"`
	GameInfo  game.Snapshot `json:"gameInfo"`
}

type PayloadPlayerLeft struct {
	PlayerID string        `json:"playerId"`
	GameInfo game.Snapshot `json:"gameInfo"`
}

type PayloadRoomClosed struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

func NewEvent(evtType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)

	if err != nil {
		return Event{}, err
	}

	return NewEventStruct(evtType, b, ""), nil
}

// NewErrorEvent builds the error reply for the event carrying traceId.
func NewErrorEvent(traceId, message string) (Event, error) {
	b, err := json.Marshal(PayloadError{Message: message})

	if err != nil {
		return Event{}, err
	}

	return NewEventStruct(EventError, b, traceId), nil
}

func NewEventStruct(evtType string, payload []byte, traceId string) Event {
	return Event{
		Type:    evtType,
		TraceID: traceId,
		Payload: payload,
	}
}
