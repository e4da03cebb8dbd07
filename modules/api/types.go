package api

import (
	"github.com/example/study-room-signaling/modules/activity"
	"github.com/pion/webrtc/v4"
)

// Banner is returned by GET /.
const Banner = "Virtual Study Room signaling server"

// CreateRoomResponse is the response of POST /create-room.
type CreateRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

// ICEConfigResponse is the response of GET /ice-config.
type ICEConfigResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

// ActivityResponse is the response of GET /api/v1/activity.
type ActivityResponse struct {
	Counters activity.Counters `json:"counters"`
	Recent   []activity.Entry  `json:"recent"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
