package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/example/study-room-signaling/modules/presence"
	"github.com/gofiber/contrib/websocket"
	"golang.org/x/time/rate"
)

// handleWebSocket runs one connection: it registers a session, then reads
// frames until the peer goes away and finally disconnects the session.
func (m *APIModule) handleWebSocket(conn *websocket.Conn) {
	limiter := rate.NewLimiter(rate.Limit(m.cfg.WSRatePerSecond), m.cfg.WSRateBurst)
	c := newClient(conn, limiter, m.logger)

	ctx := context.Background()
	session, err := m.manager.Connect(ctx, c)
	if err != nil {
		m.logger.Error("Failed to register WebSocket session", "error", err)
		return
	}
	c.id = session.ID

	go c.writeLoop()
	defer func() {
		if err := m.manager.Disconnect(context.Background(), c.id); err != nil {
			m.logger.Warn("Failed to disconnect session", "session", c.id, "error", err)
		}
		c.close()
		m.logger.Info("WebSocket client disconnected", "session", c.id)
	}()

	m.logger.Info("WebSocket client connected", "session", c.id, "remote", conn.RemoteAddr().String())
	c.enqueue(OutboundFrame{Event: EventConnected, Data: ConnectedPayload{ID: c.id}})

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "session", c.id, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.allow() {
			c.sendError("Rate limit exceeded")
			continue
		}

		var frame InboundFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			c.sendError("Invalid message format")
			continue
		}
		m.dispatch(ctx, c, frame)
	}
}

// dispatch handles one inbound frame. Failures are reported to the client
// where it can act on them and otherwise only logged.
func (m *APIModule) dispatch(ctx context.Context, c *client, frame InboundFrame) {
	switch frame.Event {
	case EventCreateRoom:
		code, err := m.manager.CreateRoom(ctx, c.id)
		if err != nil {
			m.logger.Warn("create-room failed", "session", c.id, "error", err)
			c.ack(frame.Ack, CreateRoomAck{OK: false})
			return
		}
		c.ack(frame.Ack, CreateRoomAck{RoomCode: code, OK: true})

	case EventJoinRoom:
		var p JoinRoomPayload
		if err := decodeData(frame.Data, &p); err != nil {
			c.sendError("Invalid join-room payload")
			c.ack(frame.Ack, JoinRoomAck{OK: false})
			return
		}
		err := m.manager.JoinRoom(ctx, c.id, p.RoomCode, p.Name)
		if err != nil {
			m.logger.Info("join-room rejected", "session", c.id, "code", p.RoomCode, "error", err)
		}
		c.ack(frame.Ack, JoinRoomAck{OK: err == nil})

	case EventLeaveRoom:
		var p LeaveRoomPayload
		if err := decodeData(frame.Data, &p); err != nil {
			c.sendError("Invalid leave-room payload")
			return
		}
		m.logDropped("leave-room", c.id, m.manager.LeaveRoom(ctx, c.id, p.RoomCode))

	case EventSignal:
		var p SignalPayload
		if err := decodeData(frame.Data, &p); err != nil || isEmptyJSON(p.Signal) {
			c.sendError("Invalid signal payload")
			return
		}
		m.logDropped("signal", c.id, m.manager.Signal(ctx, c.id, p.ToID, p.Signal))

	case EventMessage:
		var p MessagePayload
		if err := decodeData(frame.Data, &p); err != nil {
			c.sendError("Invalid message payload")
			return
		}
		err := m.manager.SendChat(ctx, c.id, p.RoomCode, p.Sender, p.Message)
		if errors.Is(err, presence.ErrMessageTooLong) {
			c.sendError("Message too long")
			return
		}
		m.logDropped("message", c.id, err)

	case EventUpdateStats:
		var p UpdateStatsPayload
		if err := decodeData(frame.Data, &p); err != nil {
			c.sendError("Invalid update-stats payload")
			return
		}
		if err := m.manager.UpdateStats(ctx, c.id, p.Stats); err != nil {
			if errors.Is(err, presence.ErrInvalidStats) {
				c.sendError("Stats must be non-negative")
				return
			}
			m.logDropped("update-stats", c.id, err)
		}

	case EventSetName:
		var p SetNamePayload
		if err := decodeData(frame.Data, &p); err != nil {
			c.sendError("Invalid set-name payload")
			return
		}
		m.logDropped("set-name", c.id, m.manager.SetName(ctx, c.id, p.Name))

	default:
		c.sendError("Unknown event: " + frame.Event)
	}
}

// logDropped records operations that were dropped without telling the client.
func (m *APIModule) logDropped(event, sessionID string, err error) {
	if err == nil {
		return
	}
	m.logger.Debug("Event dropped", "event", event, "session", sessionID, "error", err)
}
