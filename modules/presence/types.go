package presence

import "github.com/example/study-room-signaling/domain/room"

// Service names registered by the presence module.
const (
	ServiceProvisionRoom = "provision-room"
	ServiceRoomInfo      = "room-info"
	ServiceOverview      = "presence-overview"
)

// ProvisionRoomRequest is the request for reserving a room code.
type ProvisionRoomRequest struct{}

// ProvisionRoomResponse carries the reserved code.
type ProvisionRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

// RoomInfoRequest asks for the members of a room.
type RoomInfoRequest struct {
	RoomCode string `json:"roomCode"`
}

// RoomInfoResponse describes an active room.
type RoomInfoResponse struct {
	Room room.Info `json:"room"`
}

// OverviewRequest asks for the live counts.
type OverviewRequest struct{}

// OverviewResponse carries the live counts.
type OverviewResponse struct {
	Overview Overview `json:"overview"`
}
