package api

import (
	"encoding/json"

	"github.com/example/study-room-signaling/domain/room"
)

// Client to server events.
const (
	EventCreateRoom  = "create-room"
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSignal      = "signal"
	EventMessage     = "message"
	EventUpdateStats = "update-stats"
	EventSetName     = "set-name"
)

// Server to client events owned by the transport. Room events are named in
// the presence package.
const (
	EventConnected = "connected"
	EventAck       = "ack"
	EventError     = "error"
)

// InboundFrame is a client message. Ack, when non-zero, asks for an ack frame
// carrying the same number.
type InboundFrame struct {
	Event string          `json:"event"`
	Ack   int64           `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is a server message.
type OutboundFrame struct {
	Event string `json:"event"`
	Ack   int64  `json:"ack,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// ConnectedPayload is sent once after the upgrade.
type ConnectedPayload struct {
	ID string `json:"id"`
}

// ErrorPayload reports a rejected frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// CreateRoomAck answers create-room.
type CreateRoomAck struct {
	RoomCode string `json:"roomCode,omitempty"`
	OK       bool   `json:"ok"`
}

// JoinRoomPayload is the data of join-room.
type JoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

// JoinRoomAck answers join-room.
type JoinRoomAck struct {
	OK bool `json:"ok"`
}

// LeaveRoomPayload is the data of leave-room.
type LeaveRoomPayload struct {
	RoomCode string `json:"roomCode"`
}

// SignalPayload is the data of signal.
type SignalPayload struct {
	ToID   string          `json:"toId,omitempty"`
	Signal json.RawMessage `json:"signal"`
}

// MessagePayload is the data of message.
type MessagePayload struct {
	RoomCode string `json:"roomCode,omitempty"`
	Message  string `json:"message"`
	Sender   string `json:"sender"`
}

// UpdateStatsPayload is the data of update-stats.
type UpdateStatsPayload struct {
	Stats room.StatsPatch `json:"stats"`
}

// SetNamePayload is the data of set-name.
type SetNamePayload struct {
	Name string `json:"name"`
}

// decodeData unmarshals an optional frame payload.
func decodeData(data json.RawMessage, v any) error {
	if isEmptyJSON(data) {
		return nil
	}
	return json.Unmarshal(data, v)
}

func isEmptyJSON(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
