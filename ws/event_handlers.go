package ws

import (
	"encoding/json"
	"strings"

	"github.com/judgegodwins/colormatch-server/game"
	"github.com/judgegodwins/colormatch-server/util"
	"go.uber.org/zap"
)

var errInvalidPayload = game.NewError(game.KindInvalidRequest, "Invalid event payload")

// decodePayload unmarshals and validates the payload of e into v.
func decodePayload(e Event, v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errInvalidPayload
	}

	if err := util.Validate.Struct(v); err != nil {
		return game.NewError(game.KindInvalidRequest, "Invalid event payload: "+strings.Join(util.ValidationMessages(err), "; "))
	}

	return nil
}

// Room codes are upper case; accept whatever the player typed.
func normalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func CreateRoomHandler(e Event, c *Client) error {
	var payload PayloadCreateRoom

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	h := c.hub
	room, previous := h.rooms.CreateRoom(c.ID, payload.PlayerName, payload.TargetColor)

	h.announceLeave(previous)

	h.logger.Info("room created",
		zap.String("room_id", room.Code),
		zap.String("host_id", c.ID),
		zap.String("target_color", room.TargetColor),
	)

	return c.PushEventToEgress(EventRoomCreated, PayloadRoomCreated{
		RoomID:   room.Code,
		GameInfo: room.Snapshot(),
	})
}

func JoinRoomHandler(e Event, c *Client) error {
	var payload PayloadJoinRoom

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	h := c.hub
	res, err := h.rooms.JoinRoom(normalizeRoomID(payload.RoomID), c.ID, payload.PlayerName)

	if err != nil {
		return err
	}

	h.announceLeave(res.Previous)

	h.logger.Info("player joined",
		zap.String("room_id", res.Room.Code),
		zap.String("player_id", c.ID),
		zap.Int("players", res.Room.Len()),
	)

	return h.broadcast(res.Room, EventPlayerJoined, PayloadPlayerJoined{
		PlayerID:   res.Player.ID,
		PlayerName: res.Player.Name,
		GameInfo:   res.Room.Snapshot(),
	})
}

func StartGameHandler(e Event, c *Client) error {
	var payload PayloadRoom

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	h := c.hub
	room, err := h.rooms.StartGame(normalizeRoomID(payload.RoomID), c.ID)

	if err != nil {
		return err
	}

	h.logger.Info("game started", zap.String("room_id", room.Code), zap.Int("players", room.Len()))

	return h.broadcast(room, EventGameStarted, PayloadGameInfo{GameInfo: room.Snapshot()})
}

func SetTargetColorHandler(e Event, c *Client) error {
	var payload PayloadSetTargetColor

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	h := c.hub
	room, err := h.rooms.SetTargetColor(normalizeRoomID(payload.RoomID), c.ID, payload.TargetColor)

	if err != nil {
		return err
	}

	return h.broadcast(room, EventTargetColorChanged, PayloadTargetColorChanged{
		TargetColor: room.TargetColor,
		GameInfo:    room.Snapshot(),
	})
}

func SubmitScoreHandler(e Event, c *Client) error {
	var payload PayloadSubmitScore

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	h := c.hub
	room, finished, err := h.rooms.SubmitScore(normalizeRoomID(payload.RoomID), c.ID, payload.Score)

	if err != nil {
		return err
	}

	if err := h.broadcast(room, EventScoreSubmitted, PayloadScoreSubmitted{
		PlayerID:  c.ID,
		Score:     payload.Score,
		TimeTaken: payload.TimeTaken,
		GameInfo:  room.Snapshot(),
	}); err != nil {
		return err
	}

	if !finished {
		return nil
	}

	h.logger.Info("game finished", zap.String("room_id", room.Code), zap.Int("ranked", len(room.Leaderboard())))

	return h.broadcast(room, EventGameFinished, PayloadGameInfo{GameInfo: room.Snapshot()})
}

func GetRoomInfoHandler(e Event, c *Client) error {
	var payload PayloadRoom

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	room, err := c.hub.rooms.Room(normalizeRoomID(payload.RoomID))

	if err != nil {
		return err
	}

	return c.PushEventToEgress(EventRoomInfo, PayloadGameInfo{GameInfo: room.Snapshot()})
}

func LeaveRoomHandler(e Event, c *Client) error {
	var payload PayloadRoom

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	h := c.hub
	h.announceLeave(h.rooms.LeaveRoom(normalizeRoomID(payload.RoomID), c.ID))

	return nil
}
