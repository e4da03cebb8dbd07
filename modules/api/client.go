package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/example/study-room-signaling/modules/presence"
	"github.com/gofiber/contrib/websocket"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 25 * time.Second
	maxFrameSize   = 64 * 1024
	sendBufferSize = 64
)

// client is one WebSocket connection. Frames are queued on out and written
// by writeLoop, so Send never blocks the presence event loop.
type client struct {
	id      string
	conn    *websocket.Conn
	out     chan OutboundFrame
	limiter *rate.Limiter
	logger  types.Logger

	closeOnce sync.Once
	done      chan struct{}
}

var _ presence.Outbox = (*client)(nil)

func newClient(conn *websocket.Conn, limiter *rate.Limiter, logger types.Logger) *client {
	return &client{
		conn:    conn,
		out:     make(chan OutboundFrame, sendBufferSize),
		limiter: limiter,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Send queues a presence event. A full buffer means the peer stopped
// reading; the connection is closed and the event dropped.
func (c *client) Send(evt presence.Event) bool {
	return c.enqueue(OutboundFrame{Event: evt.Name, Data: evt.Data})
}

func (c *client) enqueue(f OutboundFrame) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- f:
		return true
	default:
		c.logger.Warn("Send buffer full, closing connection", "session", c.id)
		c.close()
		return false
	}
}

func (c *client) ack(id int64, data any) {
	if id == 0 {
		return
	}
	c.enqueue(OutboundFrame{Event: EventAck, Ack: id, Data: data})
}

func (c *client) sendError(message string) {
	c.enqueue(OutboundFrame{Event: EventError, Data: ErrorPayload{Message: message}})
}

// allow reports whether another inbound frame fits the rate limit.
func (c *client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writeLoop drains out and keeps the connection alive with pings.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.out:
			data, err := json.Marshal(f)
			if err != nil {
				c.logger.Error("Failed to marshal frame", "session", c.id, "event", f.Event, "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Write failed", "session", c.id, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}
