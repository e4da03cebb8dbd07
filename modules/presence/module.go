package presence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/study-room-signaling/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module hosts the presence Manager: it runs the event loop, exposes the
// HTTP-facing operations as request-reply services and publishes domain events.
type Module struct {
	manager    *Manager
	eventBus   mono.EventBus
	logger     types.Logger
	cancelLoop context.CancelFunc
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Publisher                  = (*Module)(nil)
)

// NewModule creates the presence module. Options are passed to the Manager.
func NewModule(logger types.Logger, opts ...Option) (*Module, error) {
	m := &Module{logger: logger}

	manager, err := NewManager(logger, append(opts, WithPublisher(m))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create presence manager: %w", err)
	}
	m.manager = manager
	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// Manager returns the manager the WebSocket transport drives directly.
func (m *Module) Manager() *Manager {
	return m.manager
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.MemberJoinedV1.ToBase(),
		events.MemberLeftV1.ToBase(),
		events.ChatRelayedV1.ToBase(),
		events.StatsUpdatedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceProvisionRoom, json.Unmarshal, json.Marshal, m.provisionRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceProvisionRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomInfo, json.Unmarshal, json.Marshal, m.roomInfo,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomInfo, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceOverview, json.Unmarshal, json.Marshal, m.overview,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceOverview, err)
	}

	m.logger.Info("Registered services",
		"services", []string{ServiceProvisionRoom, ServiceRoomInfo, ServiceOverview})
	return nil
}

// Start launches the event loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelLoop = cancel
	go m.manager.Run(ctx)

	if m.eventBus == nil {
		m.logger.Warn("EventBus not set, domain events will not be published")
	}
	m.logger.Info("Presence module started", "capacity", m.manager.Capacity())
	return nil
}

// Stop ends the event loop and waits for it.
func (m *Module) Stop(_ context.Context) error {
	if m.cancelLoop != nil {
		m.cancelLoop()
		m.manager.Wait()
	}
	m.logger.Info("Presence module stopped")
	return nil
}

// Health reports the live counts.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	o, err := m.manager.Overview(ctx)
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"sessions":     o.Sessions,
			"rooms":        o.Rooms,
			"reservations": o.Reservations,
		},
	}
}

// Publish sends a domain event on the bus. Failures are logged and dropped.
func (m *Module) Publish(event any) {
	if m.eventBus == nil {
		return
	}

	var err error
	switch e := event.(type) {
	case events.RoomCreatedEvent:
		err = events.RoomCreatedV1.Publish(m.eventBus, e, nil)
	case events.MemberJoinedEvent:
		err = events.MemberJoinedV1.Publish(m.eventBus, e, nil)
	case events.MemberLeftEvent:
		err = events.MemberLeftV1.Publish(m.eventBus, e, nil)
	case events.ChatRelayedEvent:
		err = events.ChatRelayedV1.Publish(m.eventBus, e, nil)
	case events.StatsUpdatedEvent:
		err = events.StatsUpdatedV1.Publish(m.eventBus, e, nil)
	default:
		err = fmt.Errorf("unknown event type %T", event)
	}
	if err != nil {
		m.logger.Warn("Failed to publish event", "type", fmt.Sprintf("%T", event), "error", err)
	}
}

func (m *Module) provisionRoom(ctx context.Context, _ ProvisionRoomRequest, _ *mono.Msg) (ProvisionRoomResponse, error) {
	code, err := m.manager.ProvisionRoom(ctx)
	if err != nil {
		return ProvisionRoomResponse{}, err
	}
	return ProvisionRoomResponse{RoomCode: code}, nil
}

func (m *Module) roomInfo(ctx context.Context, req RoomInfoRequest, _ *mono.Msg) (RoomInfoResponse, error) {
	code := NormalizeRoomCode(req.RoomCode)
	if !IsValidRoomCode(code) {
		return RoomInfoResponse{}, ErrInvalidRoomCode
	}
	info, err := m.manager.RoomInfo(ctx, code)
	if err != nil {
		return RoomInfoResponse{}, err
	}
	return RoomInfoResponse{Room: info}, nil
}

func (m *Module) overview(ctx context.Context, _ OverviewRequest, _ *mono.Msg) (OverviewResponse, error) {
	o, err := m.manager.Overview(ctx)
	if err != nil {
		return OverviewResponse{}, err
	}
	return OverviewResponse{Overview: o}, nil
}
