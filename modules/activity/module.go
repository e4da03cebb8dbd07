package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/example/study-room-signaling/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module consumes presence events and keeps counters plus a bounded log of
// recent activity.
type Module struct {
	mu       sync.RWMutex
	counters Counters
	recent   []Entry
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the activity module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		recent: make([]Entry, 0, maxRecentEntries),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// RegisterEventConsumers subscribes to the presence events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomCreatedV1, m.handleRoomCreated, m); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MemberJoinedV1, m.handleMemberJoined, m); err != nil {
		return fmt.Errorf("failed to register MemberJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MemberLeftV1, m.handleMemberLeft, m); err != nil {
		return fmt.Errorf("failed to register MemberLeft consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.ChatRelayedV1, m.handleChatRelayed, m); err != nil {
		return fmt.Errorf("failed to register ChatRelayed consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.StatsUpdatedV1, m.handleStatsUpdated, m); err != nil {
		return fmt.Errorf("failed to register StatsUpdated consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", "RoomCreated, MemberJoined, MemberLeft, ChatRelayed, StatsUpdated")
	return nil
}

// RegisterServices registers the activity-summary service.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSummary, json.Unmarshal, json.Marshal, m.summary,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSummary, err)
	}
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	c := m.Counters()
	m.logger.Info("Activity module stopped", "joins", c.Joins, "chat_messages", c.ChatMessages)
	return nil
}

// Health returns the counters as health details.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	c := m.Counters()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms_created": c.RoomsCreated,
			"joins":         c.Joins,
			"chat_messages": c.ChatMessages,
		},
	}
}

func (m *Module) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.Source == events.SourceHTTP {
		m.counters.RoomsReserved++
		m.record("room_reserved", event.RoomCode, "", "Room code reserved over HTTP", event.CreatedAt)
		return nil
	}
	m.counters.RoomsCreated++
	m.record("room_created", event.RoomCode, event.CreatedBy, "Room created", event.CreatedAt)
	return nil
}

func (m *Module) handleMemberJoined(_ context.Context, event events.MemberJoinedEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.Joins++
	if event.MemberCount > m.counters.PeakRoomMember {
		m.counters.PeakRoomMember = event.MemberCount
	}
	m.record("member_joined", event.RoomCode, event.SessionID,
		fmt.Sprintf("%s joined (%d members)", event.Name, event.MemberCount), event.JoinedAt)
	return nil
}

func (m *Module) handleMemberLeft(_ context.Context, event events.MemberLeftEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.Reason == events.LeaveReasonDisconnect {
		m.counters.Disconnects++
	} else {
		m.counters.Leaves++
	}
	detail := fmt.Sprintf("%s left (%s)", event.Name, event.Reason)
	if event.RoomClosed {
		m.counters.RoomsClosed++
		detail += ", room closed"
	}
	m.record("member_left", event.RoomCode, event.SessionID, detail, event.LeftAt)
	return nil
}

func (m *Module) handleChatRelayed(_ context.Context, event events.ChatRelayedEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.ChatMessages++
	m.record("chat_relayed", event.RoomCode, event.SessionID,
		fmt.Sprintf("%d bytes to %d members", event.Length, event.Recipients), event.SentAt)
	return nil
}

func (m *Module) handleStatsUpdated(_ context.Context, event events.StatsUpdatedEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.StatsUpdates++
	m.record("stats_updated", event.RoomCode, event.SessionID,
		fmt.Sprintf("xp=%d focus=%dm", event.ExperiencePoints, event.FocusTimeMinutes), event.UpdatedAt)
	return nil
}

// record appends to the log, dropping the oldest entry when full. Callers hold mu.
func (m *Module) record(entryType, roomCode, sessionID, detail string, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	if len(m.recent) == maxRecentEntries {
		copy(m.recent, m.recent[1:])
		m.recent = m.recent[:len(m.recent)-1]
	}
	m.recent = append(m.recent, Entry{
		Type:      entryType,
		RoomCode:  roomCode,
		SessionID: sessionID,
		Detail:    detail,
		Timestamp: ts,
	})
}

// Counters returns a copy of the counters.
func (m *Module) Counters() Counters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters
}

// Recent returns up to limit entries, newest first.
func (m *Module) Recent(limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > len(m.recent) {
		limit = len(m.recent)
	}
	out := make([]Entry, 0, limit)
	for i := len(m.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.recent[i])
	}
	return out
}

func (m *Module) summary(_ context.Context, req SummaryRequest, _ *mono.Msg) (SummaryResponse, error) {
	return SummaryResponse{
		Counters: m.Counters(),
		Recent:   m.Recent(req.Limit),
	}, nil
}
