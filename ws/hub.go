package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/judgegodwins/colormatch-server/game"
	"github.com/judgegodwins/colormatch-server/util"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrorMessage500 is sent to clients when a handler fails unexpectedly.
const ErrorMessage500 = "Something went wrong!"

const inboxSize = 256

// ErrHubStopped is returned to callers once Run has exited.
var ErrHubStopped = errors.New("hub stopped")

type ClientList map[string]*Client

// Stats is a point in time view of the hub used by the health probe.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Hub owns the room manager and every connected client. All of its state
// is touched only by the goroutine running Run; everything else talks to
// it through the inbox, so operations are applied in arrival order.
type Hub struct {
	rooms    *game.Manager
	clients  ClientList
	handlers map[string]EventHandler
	inbox    chan func()
	done     chan struct{}
	stopOnce sync.Once
	upgrader websocket.Upgrader
	config   *util.Config
	logger   *zap.Logger
}

func NewHub(config *util.Config, logger *zap.Logger, opts ...game.Option) *Hub {
	h := &Hub{
		rooms:    game.NewManager(opts...),
		clients:  make(ClientList),
		handlers: make(map[string]EventHandler),
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
		config:   config,
		logger:   logger.Named("hub"),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	h.setupEventHandlers()

	return h
}

func (h *Hub) setupEventHandlers() {
	h.handlers[EventCreateRoom] = CreateRoomHandler
	h.handlers[EventJoinRoom] = JoinRoomHandler
	h.handlers[EventStartGame] = StartGameHandler
	h.handlers[EventSetTargetColor] = SetTargetColorHandler
	h.handlers[EventSubmitScore] = SubmitScoreHandler
	h.handlers[EventGetRoomInfo] = GetRoomInfoHandler
	h.handlers[EventLeaveRoom] = LeaveRoomHandler
}

// Run processes the inbox until ctx is cancelled. When an idle timeout is
// configured it also closes rooms nobody has touched for that long.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.done) })

	var sweep <-chan time.Time
	if h.config.RoomIdleTimeout > 0 {
		ticker := time.NewTicker(h.config.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	h.logger.Info("hub started",
		zap.Duration("room_idle_timeout", h.config.RoomIdleTimeout),
		zap.Duration("sweep_interval", h.config.SweepInterval),
	)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub stopped", zap.Int("rooms", h.rooms.Len()), zap.Int("clients", len(h.clients)))
			h.closeClients()
			return nil
		case fn := <-h.inbox:
			fn()
		case now := <-sweep:
			h.sweepIdle(now)
		}
	}
}

// do queues fn for the hub goroutine. It fails if ctx ends or the hub
// stops before fn could be queued.
func (h *Hub) do(ctx context.Context, fn func()) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.inbox <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

// call queues fn and waits for it to run.
func (h *Hub) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})

	if err := h.do(ctx, func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		// fn may have been the last thing Run did
		select {
		case <-ran:
			return nil
		default:
			return ErrHubStopped
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, evt Event, c *Client) error {
	return h.do(ctx, func() {
		h.routeEvent(evt, c)
	})
}

// routeEvent runs the handler for evt. Any failure is reported to the
// sender only and never leaves the hub.
func (h *Hub) routeEvent(evt Event, c *Client) {
	if h.clients[c.ID] != c {
		// the client disconnected after the event was queued
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panicked",
				zap.String("type", evt.Type),
				zap.String("client_id", c.ID),
				zap.Any("panic", r),
			)
			c.sendError(evt.TraceID, ErrorMessage500)
		}
	}()

	handler, ok := h.handlers[evt.Type]
	if !ok {
		c.sendError(evt.TraceID, "there is no such event type")
		return
	}

	if err := handler(evt, c); err != nil {
		h.replyError(evt, c, err)
	}
}

func (h *Hub) replyError(evt Event, c *Client, err error) {
	if game.KindOf(err) != game.KindInternal {
		h.logger.Debug("event rejected",
			zap.String("type", evt.Type),
			zap.String("client_id", c.ID),
			zap.Stringer("kind", game.KindOf(err)),
			zap.Error(err),
		)
		c.sendError(evt.TraceID, err.Error())
		return
	}

	h.logger.Error("error handling event",
		zap.String("type", evt.Type),
		zap.String("client_id", c.ID),
		zap.Error(err),
	)
	c.sendError(evt.TraceID, ErrorMessage500)
}

// addClient waits for the registration so a client is never left out of
// closeClients when the hub stops meanwhile.
func (h *Hub) addClient(ctx context.Context, client *Client) error {
	return h.call(ctx, func() {
		h.clients[client.ID] = client
		h.logger.Debug("client connected", zap.String("client_id", client.ID), zap.Int("clients", len(h.clients)))
	})
}

// removeClient drops the client and runs the same cleanup as leaving its
// room.
func (h *Hub) removeClient(ctx context.Context, client *Client) error {
	return h.do(ctx, func() {
		if h.clients[client.ID] != client {
			return
		}
		delete(h.clients, client.ID)

		h.announceLeave(h.rooms.Disconnect(client.ID))
		h.logger.Debug("client disconnected", zap.String("client_id", client.ID), zap.Int("clients", len(h.clients)))
	})
}

// emitToRoom sends evt to every connected member of room.
func (h *Hub) emitToRoom(room *game.Room, evt Event) {
	for _, id := range room.MemberIDs() {
		if client, ok := h.clients[id]; ok {
			client.send(evt)
		}
	}
}

func (h *Hub) broadcast(room *game.Room, evtType string, payload any) error {
	evt, err := NewEvent(evtType, payload)
	if err != nil {
		return fmt.Errorf("building %s event: %w", evtType, err)
	}

	h.emitToRoom(room, evt)
	return nil
}

// announceLeave tells the remaining members of a room that someone left.
// Nothing is sent when the room was closed by the departure.
func (h *Hub) announceLeave(res game.LeaveResult) {
	if !res.Left() {
		return
	}

	log := h.logger.With(zap.String("room_id", res.Room.Code), zap.String("player_id", res.PlayerID))

	if res.Closed {
		log.Info("room closed, no members left")
		return
	}

	if res.HostChanged {
		log.Info("host transferred", zap.String("host_id", res.Room.HostID))
	}

	if err := h.broadcast(res.Room, EventPlayerLeft, PayloadPlayerLeft{
		PlayerID: res.PlayerID,
		GameInfo: res.Room.Snapshot(),
	}); err != nil {
		log.Error("cannot announce departure", zap.Error(err))
		return
	}

	if res.Finished {
		log.Info("round finished after departure")
		if err := h.broadcast(res.Room, EventGameFinished, PayloadGameInfo{GameInfo: res.Room.Snapshot()}); err != nil {
			log.Error("cannot announce finished round", zap.Error(err))
		}
	}
}

func (h *Hub) sweepIdle(now time.Time) {
	for _, closed := range h.rooms.SweepIdle(now, h.config.RoomIdleTimeout) {
		h.logger.Info("closing idle room", zap.String("room_id", closed.Code), zap.Int("members", len(closed.MemberIDs)))

		evt, err := NewEvent(EventRoomClosed, PayloadRoomClosed{RoomID: closed.Code, Reason: "idle"})
		if err != nil {
			h.logger.Error("cannot build roomClosed event", zap.Error(err))
			continue
		}

		for _, id := range closed.MemberIDs {
			if client, ok := h.clients[id]; ok {
				client.send(evt)
			}
		}
	}
}

// closeClients ends every open connection. Their pumps notice the closed
// socket and tear themselves down.
func (h *Hub) closeClients() {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")

	for _, client := range h.clients {
		client.connection.WriteControl(websocket.CloseMessage, msg, deadline)
		client.connection.Close()
	}
}

// ListRooms returns a summary of every active room.
func (h *Hub) ListRooms(ctx context.Context) ([]game.Summary, error) {
	var rooms []game.Summary

	err := h.call(ctx, func() {
		rooms = h.rooms.List()
	})

	return rooms, err
}

// RoomInfo returns the snapshot of one room, or game.ErrRoomNotFound.
func (h *Hub) RoomInfo(ctx context.Context, code string) (game.Snapshot, error) {
	var (
		snapshot game.Snapshot
		lookup   error
	)

	err := h.call(ctx, func() {
		room, err := h.rooms.Room(normalizeRoomID(code))
		if err != nil {
			lookup = err
			return
		}
		snapshot = room.Snapshot()
	})

	if err != nil {
		return game.Snapshot{}, err
	}

	return snapshot, lookup
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	err := h.call(ctx, func() {
		stats = Stats{Rooms: h.rooms.Len(), Connections: len(h.clients)}
	})

	return stats, err
}

// Websocket connection handler
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)

	if err != nil {
		// the upgrader has already replied to the client
		h.logger.Warn("error upgrading to websocket connection", zap.Error(err))
		return
	}

	client := NewClient(conn, h)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if err := h.addClient(ctx, client); err != nil {
		h.logger.Warn("cannot register client", zap.Error(err))
		conn.Close()
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		client.readMessages(ctx)
	}()

	go func() {
		defer wg.Done()
		client.writeMessages(ctx)
	}()

	err = <-client.Err()
	client.logger.Debug("closing connection", zap.Error(err))

	cancel()

	// the request context is gone at this point; use a fresh one so the
	// departure still reaches the hub
	if err := h.removeClient(context.Background(), client); err != nil && !errors.Is(err, ErrHubStopped) {
		client.logger.Error("cannot remove client", zap.Error(err))
	}

	err = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		client.logger.Debug("error sending close message", zap.Error(err))
	}

	conn.Close()
	wg.Wait()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	if origin == "" || len(h.config.AllowedOrigins) == 0 {
		return true
	}

	return lo.Contains(h.config.AllowedOrigins, origin) || lo.Contains(h.config.AllowedOrigins, "*")
}
