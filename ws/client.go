package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	pongWait     = 10 * time.Second
	pingInterval = (pongWait * 9) / 10
	writeWait    = 5 * time.Second
)

const (
	maxMessageSize = 1024
	egressSize     = 64
)

var errEgressClosed = errors.New("client egress channel unexpectedly closed")

type Client struct {
	ID         string
	connection *websocket.Conn
	hub        *Hub
	egress     chan Event
	limiter    *rate.Limiter
	logger     *zap.Logger
	err        chan error
}

func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	id := uuid.NewString()

	return &Client{
		ID:         id,
		connection: conn,
		hub:        hub,
		egress:     make(chan Event, egressSize),
		limiter:    rate.NewLimiter(rate.Limit(hub.config.EventRate), hub.config.EventBurst),
		logger:     hub.logger.Named("client").With(zap.String("client_id", id)),
		err:        make(chan error, 2),
	}
}

// Reads incoming messages from the client's websocket connection and
// forwards them to the hub.
func (c *Client) readMessages(ctx context.Context) {
	c.connection.SetReadLimit(maxMessageSize)

	if err := c.connection.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.handleError(err)
		return
	}

	c.connection.SetPongHandler(c.pongHandler)

	for {
		_, payload, err := c.connection.ReadMessage()

		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("unexpected socket closure", zap.Error(err))
			}
			c.handleError(err)
			return
		}

		var evt Event

		if err := json.Unmarshal(payload, &evt); err != nil {
			c.sendError("", "Cannot unmarshal json payload")
			continue
		}

		if !c.limiter.Allow() {
			c.sendError(evt.TraceID, "Too many requests")
			continue
		}

		c.logger.Debug("event received", zap.String("type", evt.Type), zap.String("trace_id", evt.TraceID))

		if err := c.hub.dispatch(ctx, evt, c); err != nil {
			c.handleError(err)
			return
		}
	}
}

// writes messages pushed to the client's egress channel
func (c *Client) writeMessages(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)

	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.egress:
			if !ok {
				c.handleError(errEgressClosed)
				return
			}

			data, err := json.Marshal(message)

			if err != nil {
				c.logger.Error("cannot marshal outbound event", zap.String("type", message.Type), zap.Error(err))
				continue
			}

			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.TextMessage, data); err != nil {
				c.handleError(err)
				return
			}
		case <-ticker.C:
			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.handleError(err)
				return
			}
		}
	}
}

// Sets a new read deadline when a pong is received for a ping message.
func (c *Client) pongHandler(string) error {
	return c.connection.SetReadDeadline(time.Now().Add(pongWait))
}

// Reports the first error from either pump. Later errors are dropped; the
// connection is already being torn down.
func (c *Client) handleError(e error) {
	select {
	case c.err <- e:
	default:
	}
}

// Returns the error channel
func (c *Client) Err() <-chan error {
	return c.err
}

// send queues evt for delivery without blocking. It reports false when
// the client is too slow to keep up and the event was dropped.
func (c *Client) send(evt Event) bool {
	select {
	case c.egress <- evt:
		return true
	default:
		c.logger.Warn("egress full, dropping event", zap.String("type", evt.Type))
		return false
	}
}

// Creates an event and queues it for the client
func (c *Client) PushEventToEgress(evtType string, payload any) error {
	evt, err := NewEvent(evtType, payload)
	if err != nil {
		return err
	}
	c.send(evt)
	return nil
}

func (c *Client) sendError(traceID, message string) {
	evt, err := NewErrorEvent(traceID, message)
	if err != nil {
		c.logger.Error("cannot build error event", zap.Error(err))
		return
	}
	c.send(evt)
}
