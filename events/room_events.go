package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// Room creation sources.
const (
	SourceSocket = "socket"
	SourceHTTP   = "http"
)

// Reasons a member left a room.
const (
	LeaveReasonLeave      = "leave"
	LeaveReasonSwitch     = "switch"
	LeaveReasonDisconnect = "disconnect"
)

// RoomCreatedEvent is emitted when a room code is handed out, either as a
// live room (socket) or as a reservation (http).
type RoomCreatedEvent struct {
	RoomCode  string    `json:"room_code"`
	CreatedBy string    `json:"created_by,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomCreatedV1 is the typed event definition for room creation.
// Subject: events.presence.v1.room-created
var RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
	"presence", "RoomCreated", "v1",
)

// MemberJoinedEvent is emitted when a session enters a room.
type MemberJoinedEvent struct {
	RoomCode    string    `json:"room_code"`
	SessionID   string    `json:"session_id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count"`
	JoinedAt    time.Time `json:"joined_at"`
}

// MemberJoinedV1 is the typed event definition for room joins.
// Subject: events.presence.v1.member-joined
var MemberJoinedV1 = helper.EventDefinition[MemberJoinedEvent](
	"presence", "MemberJoined", "v1",
)

// MemberLeftEvent is emitted when a session leaves a room for any reason.
type MemberLeftEvent struct {
	RoomCode   string    `json:"room_code"`
	SessionID  string    `json:"session_id"`
	Name       string    `json:"name"`
	Reason     string    `json:"reason"`
	RoomClosed bool      `json:"room_closed"`
	LeftAt     time.Time `json:"left_at"`
}

// MemberLeftV1 is the typed event definition for room departures.
// Subject: events.presence.v1.member-left
var MemberLeftV1 = helper.EventDefinition[MemberLeftEvent](
	"presence", "MemberLeft", "v1",
)

// ChatRelayedEvent is emitted after a chat message was fanned out. The text
// itself is not carried.
type ChatRelayedEvent struct {
	RoomCode   string    `json:"room_code"`
	SessionID  string    `json:"session_id"`
	Length     int       `json:"length"`
	Recipients int       `json:"recipients"`
	SentAt     time.Time `json:"sent_at"`
}

// ChatRelayedV1 is the typed event definition for relayed chat.
// Subject: events.presence.v1.chat-relayed
var ChatRelayedV1 = helper.EventDefinition[ChatRelayedEvent](
	"presence", "ChatRelayed", "v1",
)

// StatsUpdatedEvent is emitted when a session reports new stats.
type StatsUpdatedEvent struct {
	SessionID        string    `json:"session_id"`
	RoomCode         string    `json:"room_code,omitempty"`
	ExperiencePoints int       `json:"xp_points"`
	FocusTimeMinutes int       `json:"focus_time"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StatsUpdatedV1 is the typed event definition for stats updates.
// Subject: events.presence.v1.stats-updated
var StatsUpdatedV1 = helper.EventDefinition[StatsUpdatedEvent](
	"presence", "StatsUpdated", "v1",
)
