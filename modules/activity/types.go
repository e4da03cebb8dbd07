package activity

import "time"

// ServiceSummary is the request-reply service returning the activity summary.
const ServiceSummary = "activity-summary"

const (
	defaultRecentLimit = 20
	maxRecentEntries   = 200
)

// Entry is one line of the recent activity log.
type Entry struct {
	Type      string    `json:"type"`
	RoomCode  string    `json:"room_code,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Counters are totals since process start.
type Counters struct {
	RoomsCreated   int `json:"rooms_created"`
	RoomsReserved  int `json:"rooms_reserved"`
	RoomsClosed    int `json:"rooms_closed"`
	Joins          int `json:"joins"`
	Leaves         int `json:"leaves"`
	Disconnects    int `json:"disconnects"`
	ChatMessages   int `json:"chat_messages"`
	StatsUpdates   int `json:"stats_updates"`
	PeakRoomMember int `json:"peak_room_members"`
}

// SummaryRequest asks for the counters and the last Limit log entries.
type SummaryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// SummaryResponse is the activity summary.
type SummaryResponse struct {
	Counters Counters `json:"counters"`
	Recent   []Entry  `json:"recent"`
}
