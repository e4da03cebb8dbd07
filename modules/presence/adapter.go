package presence

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/example/study-room-signaling/domain/room"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// PresencePort is the request-reply surface of the presence module.
type PresencePort interface {
	ProvisionRoom(ctx context.Context) (string, error)
	RoomInfo(ctx context.Context, code string) (*room.Info, error)
	Overview(ctx context.Context) (*Overview, error)
}

type presenceAdapter struct {
	container mono.ServiceContainer
}

// NewPresenceAdapter creates an adapter over the presence module's ServiceContainer.
func NewPresenceAdapter(container mono.ServiceContainer) PresencePort {
	if container == nil {
		panic("presence adapter requires non-nil ServiceContainer")
	}
	return &presenceAdapter{container: container}
}

// ProvisionRoom reserves a room code via the provision-room service.
func (a *presenceAdapter) ProvisionRoom(ctx context.Context) (string, error) {
	var resp ProvisionRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceProvisionRoom,
		json.Marshal,
		json.Unmarshal,
		&ProvisionRoomRequest{},
		&resp,
	); err != nil {
		return "", mapServiceError(err)
	}
	return resp.RoomCode, nil
}

// RoomInfo describes a room via the room-info service.
func (a *presenceAdapter) RoomInfo(ctx context.Context, code string) (*room.Info, error) {
	var resp RoomInfoResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRoomInfo,
		json.Marshal,
		json.Unmarshal,
		&RoomInfoRequest{RoomCode: code},
		&resp,
	); err != nil {
		return nil, mapServiceError(err)
	}
	return &resp.Room, nil
}

// Overview returns the live counts via the presence-overview service.
func (a *presenceAdapter) Overview(ctx context.Context) (*Overview, error) {
	var resp OverviewResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceOverview,
		json.Marshal,
		json.Unmarshal,
		&OverviewRequest{},
		&resp,
	); err != nil {
		return nil, mapServiceError(err)
	}
	return &resp.Overview, nil
}

// mapServiceError restores sentinel errors that lost their identity crossing the bus.
func mapServiceError(err error) error {
	if err == nil {
		return nil
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, ErrRoomNotFound.Error()):
		return ErrRoomNotFound
	case strings.Contains(errMsg, ErrInvalidRoomCode.Error()):
		return ErrInvalidRoomCode
	case strings.Contains(errMsg, ErrCodeSpaceExhausted.Error()):
		return ErrCodeSpaceExhausted
	case strings.Contains(errMsg, ErrManagerStopped.Error()):
		return ErrManagerStopped
	}
	return err
}
