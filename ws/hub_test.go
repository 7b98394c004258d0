package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/judgegodwins/colormatch-server/game"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixedCode(code string) game.Option {
	return game.WithCodeGenerator(func() string { return code })
}

// createRoom makes alice the host of a new room and returns its snapshot.
func createRoom(t *testing.T, alice *testClient, color string) game.Snapshot {
	t.Helper()

	alice.send(EventCreateRoom, "create", PayloadCreateRoom{PlayerName: "Alice", TargetColor: color})

	var created PayloadRoomCreated
	alice.expect(EventRoomCreated, &created)
	require.Equal(t, created.RoomID, created.GameInfo.RoomID)

	return created.GameInfo
}

func joinRoom(t *testing.T, roomID, name string, joiner *testClient, members ...*testClient) PayloadPlayerJoined {
	t.Helper()

	joiner.send(EventJoinRoom, "join", PayloadJoinRoom{RoomID: roomID, PlayerName: name})

	var joined PayloadPlayerJoined
	for _, m := range members {
		m.expect(EventPlayerJoined, &joined)
		require.Equal(t, name, joined.PlayerName)
	}
	joiner.expect(EventPlayerJoined, &joined)

	return joined
}

func TestFullRound(t *testing.T) {
	_, url := startHub(t, testConfig(), fixedCode("ROUND1"))

	alice := dial(t, url)
	bob := dial(t, url)

	info := createRoom(t, alice, "#FF0000")
	require.Equal(t, "ROUND1", info.RoomID)
	require.Equal(t, "#FF0000", info.TargetColor)
	require.Equal(t, game.StateWaiting, info.GameState)
	require.Nil(t, info.StartTime)
	require.Len(t, info.Players, 1)
	aliceID := info.HostID

	joined := joinRoom(t, "round1", "Bob", bob, alice)
	bobID := joined.PlayerID
	require.Len(t, joined.GameInfo.Players, 2)
	require.Equal(t, aliceID, joined.GameInfo.HostID)

	alice.send(EventSetTargetColor, "", PayloadSetTargetColor{RoomID: "ROUND1", TargetColor: "#00FF00"})
	for _, c := range []*testClient{alice, bob} {
		var changed PayloadTargetColorChanged
		c.expect(EventTargetColorChanged, &changed)
		require.Equal(t, "#00FF00", changed.TargetColor)
		require.Equal(t, "#00FF00", changed.GameInfo.TargetColor)
	}

	alice.send(EventStartGame, "", PayloadRoom{RoomID: "ROUND1"})
	for _, c := range []*testClient{alice, bob} {
		var started PayloadGameInfo
		c.expect(EventGameStarted, &started)
		require.Equal(t, game.StatePlaying, started.GameInfo.GameState)
		require.NotNil(t, started.GameInfo.StartTime)
	}

	alice.send(EventSubmitScore, "", PayloadSubmitScore{RoomID: "ROUND1", Score: 80, TimeTaken: 4200})
	for _, c := range []*testClient{alice, bob} {
		var submitted PayloadScoreSubmitted
		c.expect(EventScoreSubmitted, &submitted)
		require.Equal(t, aliceID, submitted.PlayerID)
		require.Equal(t, 80.0, submitted.Score)
		require.Equal(t, 4200.0, submitted.TimeTaken)
	}

	bob.send(EventSubmitScore, "", PayloadSubmitScore{RoomID: "ROUND1", Score: 90, TimeTaken: 3100})
	for _, c := range []*testClient{alice, bob} {
		var submitted PayloadScoreSubmitted
		c.expect(EventScoreSubmitted, &submitted)
		require.Equal(t, bobID, submitted.PlayerID)

		var finished PayloadGameInfo
		c.expect(EventGameFinished, &finished)
		require.Equal(t, game.StateFinished, finished.GameInfo.GameState)
		require.NotNil(t, finished.GameInfo.EndTime)
		require.Len(t, finished.GameInfo.Leaderboard, 2)
		require.Equal(t, "Bob", finished.GameInfo.Leaderboard[0].Name)
		require.Equal(t, 90.0, finished.GameInfo.Leaderboard[0].BestScore)
		require.Equal(t, "Alice", finished.GameInfo.Leaderboard[1].Name)
		require.Equal(t, 80.0, finished.GameInfo.Leaderboard[1].BestScore)
	}
}

func TestErrorsGoToSenderOnly(t *testing.T) {
	_, url := startHub(t, testConfig(), fixedCode("ERRORS"))

	alice := dial(t, url)
	bob := dial(t, url)

	createRoom(t, alice, "#FF0000")
	joinRoom(t, "ERRORS", "Bob", bob, alice)

	bob.send(EventStartGame, "t-1", PayloadRoom{RoomID: "ERRORS"})
	evt := bob.expectError(game.ErrNotHost.Error())
	require.Equal(t, "t-1", evt.TraceID)

	bob.send(EventSetTargetColor, "t-2", PayloadSetTargetColor{RoomID: "ERRORS", TargetColor: "#000000"})
	bob.expectError(game.ErrNotHost.Error())

	bob.send(EventSubmitScore, "t-3", PayloadSubmitScore{RoomID: "ERRORS", Score: 50})
	bob.expectError(game.ErrGameNotInProgress.Error())

	// alice saw none of it; her next event is her own room info
	alice.send(EventGetRoomInfo, "", PayloadRoom{RoomID: "ERRORS"})
	var info PayloadGameInfo
	alice.expect(EventRoomInfo, &info)
	require.Equal(t, game.StateWaiting, info.GameInfo.GameState)
	require.Equal(t, "#FF0000", info.GameInfo.TargetColor)
}

func TestRequestErrors(t *testing.T) {
	_, url := startHub(t, testConfig())
	client := dial(t, url)

	testCases := []struct {
		name    string
		send    func()
		message string
	}{
		{
			name: "join unknown room",
			send: func() {
				client.send(EventJoinRoom, "", PayloadJoinRoom{RoomID: "NOPE00", PlayerName: "Eve"})
			},
			message: game.ErrRoomNotFound.Error(),
		},
		{
			name: "room info for unknown room",
			send: func() {
				client.send(EventGetRoomInfo, "", PayloadRoom{RoomID: "NOPE00"})
			},
			message: game.ErrRoomNotFound.Error(),
		},
		{
			name: "unknown event type",
			send: func() {
				client.send("danceParty", "", struct{}{})
			},
			message: "there is no such event type",
		},
		{
			name: "malformed envelope",
			send: func() {
				client.sendRaw("{not json")
			},
			message: "Cannot unmarshal json payload",
		},
		{
			name: "payload of the wrong shape",
			send: func() {
				client.send(EventSubmitScore, "", map[string]string{"score": "lots"})
			},
			message: "Invalid event payload",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.send()
			client.expectError(tc.message)
		})
	}

	t.Run("negative score fails validation", func(t *testing.T) {
		client.send(EventSubmitScore, "", PayloadSubmitScore{RoomID: "NOPE00", Score: -1})

		var payload PayloadError
		client.expect(EventError, &payload)
		require.Contains(t, payload.Message, "Invalid event payload")
	})
}

func TestDisconnectHandsOverHost(t *testing.T) {
	hub, url := startHub(t, testConfig(), fixedCode("LEAVE1"))

	alice := dial(t, url)
	bob := dial(t, url)
	carol := dial(t, url)

	createRoom(t, alice, "#123456")
	bobID := joinRoom(t, "LEAVE1", "Bob", bob, alice).PlayerID
	joinRoom(t, "LEAVE1", "Carol", carol, alice, bob)

	alice.close()

	for _, c := range []*testClient{bob, carol} {
		var left PayloadPlayerLeft
		c.expect(EventPlayerLeft, &left)
		require.Equal(t, bobID, left.GameInfo.HostID)
		require.Len(t, left.GameInfo.Players, 2)
	}

	carol.send(EventLeaveRoom, "", PayloadRoom{RoomID: "LEAVE1"})

	var left PayloadPlayerLeft
	bob.expect(EventPlayerLeft, &left)
	require.Len(t, left.GameInfo.Players, 1)

	bob.send(EventLeaveRoom, "", PayloadRoom{RoomID: "LEAVE1"})

	require.Eventually(t, func() bool {
		rooms, err := hub.ListRooms(context.Background())
		return err == nil && len(rooms) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHostLeavingAloneRemovesRoom(t *testing.T) {
	hub, url := startHub(t, testConfig(), fixedCode("SOLO01"))
	alice := dial(t, url)

	createRoom(t, alice, "#FFFFFF")

	rooms, err := hub.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	alice.send(EventLeaveRoom, "", PayloadRoom{RoomID: "SOLO01"})

	require.Eventually(t, func() bool {
		rooms, err := hub.ListRooms(context.Background())
		return err == nil && len(rooms) == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err = hub.RoomInfo(context.Background(), "SOLO01")
	require.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestStatsCountsConnections(t *testing.T) {
	hub, url := startHub(t, testConfig())

	alice := dial(t, url)
	dial(t, url)
	createRoom(t, alice, "#ABCDEF")

	require.Eventually(t, func() bool {
		stats, err := hub.Stats(context.Background())
		return err == nil && stats.Connections == 2 && stats.Rooms == 1
	}, 2*time.Second, 10*time.Millisecond)

	alice.close()

	require.Eventually(t, func() bool {
		stats, err := hub.Stats(context.Background())
		return err == nil && stats.Connections == 1 && stats.Rooms == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIdleRoomsAreClosed(t *testing.T) {
	hub, url := startHub(t, testConfig(), fixedCode("IDLE01"))
	alice := dial(t, url)

	createRoom(t, alice, "#FF00FF")

	err := hub.call(context.Background(), func() {
		hub.sweepIdle(time.Now().Add(time.Hour))
	})
	require.NoError(t, err)

	var closed PayloadRoomClosed
	alice.expect(EventRoomClosed, &closed)
	require.Equal(t, "IDLE01", closed.RoomID)
	require.Equal(t, "idle", closed.Reason)

	rooms, err := hub.ListRooms(context.Background())
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestRateLimit(t *testing.T) {
	config := testConfig()
	config.EventRate = 0.001
	config.EventBurst = 1

	_, url := startHub(t, config)
	client := dial(t, url)

	client.send(EventGetRoomInfo, "first", PayloadRoom{RoomID: "NOPE00"})
	client.send(EventGetRoomInfo, "second", PayloadRoom{RoomID: "NOPE00"})

	messages := map[string]string{}
	for i := 0; i < 2; i++ {
		evt := client.next()
		require.Equal(t, EventError, evt.Type)

		var payload PayloadError
		require.NoError(t, json.Unmarshal(evt.Payload, &payload))
		messages[evt.TraceID] = payload.Message
	}

	require.Equal(t, map[string]string{
		"first":  game.ErrRoomNotFound.Error(),
		"second": "Too many requests",
	}, messages)
}

func TestHubStops(t *testing.T) {
	hub := NewHub(testConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() {
		stopped <- hub.Run(ctx)
	}()

	cancel()
	require.NoError(t, <-stopped)

	_, err := hub.ListRooms(context.Background())
	require.ErrorIs(t, err, ErrHubStopped)

	// the inbox still has room, but nothing may be queued once Run is gone
	for i := 0; i < inboxSize; i++ {
		require.ErrorIs(t, hub.do(context.Background(), func() {}), ErrHubStopped)
	}
	require.Empty(t, hub.inbox)
}
