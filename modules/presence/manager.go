package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/study-room-signaling/domain/room"
	"github.com/example/study-room-signaling/events"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Server to client event names.
const (
	EventRoomUpdate        = "room-update"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventSignal            = "signal"
	EventMessage           = "message"
	EventLeaderboardUpdate = "leaderboard-update"
	EventRoomError         = "room-error"
)

const (
	// DefaultCapacity is the number of members a room admits.
	DefaultCapacity = 3

	// DefaultReservationTTL is how long a provisioned code stays reserved.
	DefaultReservationTTL = 10 * time.Minute

	// MaxMessageLength caps chat messages, in bytes.
	MaxMessageLength = 5000

	defaultSweepInterval = time.Minute
)

// Event is an outbound message for one client.
type Event struct {
	Name string
	Data any
}

// Outbox receives the events addressed to one session. Send is called from
// the event loop and must not block; it reports false if the event was dropped.
type Outbox interface {
	Send(event Event) bool
}

// Publisher receives domain events after the operation that raised them has
// completed. It is called outside the event loop.
type Publisher interface {
	Publish(event any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(any) {}

// Overview counts the live state.
type Overview struct {
	Sessions     int `json:"sessions"`
	Rooms        int `json:"rooms"`
	Reservations int `json:"reservations"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCodeGenerator replaces the random room code generator.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(m *Manager) { m.newCode = gen }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithCapacity sets the room capacity. Zero disables the limit.
func WithCapacity(n int) Option {
	return func(m *Manager) { m.capacity = n }
}

// WithReservationTTL sets how long codes provisioned over HTTP stay reserved.
func WithReservationTTL(d time.Duration) Option {
	return func(m *Manager) { m.reservationTTL = d }
}

// WithSweepInterval sets how often expired reservations are dropped.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) { m.sweepInterval = d }
}

// WithPublisher sets the domain event publisher.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// Manager owns the registry and the room table. Every operation is executed
// on the single goroutine running Run, one at a time and to completion, so
// the broadcasts of an operation always reflect its mutation and all earlier ones.
type Manager struct {
	registry *Registry
	table    *Table

	publisher Publisher
	logger    types.Logger

	now            func() time.Time
	newCode        CodeGenerator
	newID          func() string
	capacity       int
	reservationTTL time.Duration
	sweepInterval  time.Duration

	cmds    chan func()
	stopped chan struct{}

	// pending is only touched from the event loop.
	pending []any
}

// NewManager creates a Manager. Call Run to start processing.
func NewManager(logger types.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{
		registry:       NewRegistry(),
		table:          NewTable(),
		publisher:      nopPublisher{},
		logger:         logger,
		now:            time.Now,
		newID:          uuid.NewString,
		capacity:       DefaultCapacity,
		reservationTTL: DefaultReservationTTL,
		sweepInterval:  defaultSweepInterval,
		cmds:           make(chan func()),
		stopped:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.newCode == nil {
		gen, err := NewCodeGenerator()
		if err != nil {
			return nil, err
		}
		m.newCode = gen
	}
	if m.capacity < 0 {
		return nil, fmt.Errorf("capacity must be >= 0, got %d", m.capacity)
	}
	return m, nil
}

// Run processes operations until ctx is cancelled. It must be called once.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	defer close(m.stopped)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Presence loop stopped",
				"sessions", m.registry.Len(),
				"rooms", m.table.Len())
			return
		case cmd := <-m.cmds:
			m.exec(cmd)
		case <-ticker.C:
			if n := m.table.SweepReservations(m.now()); n > 0 {
				m.logger.Debug("Expired room reservations", "count", n)
			}
		}
	}
}

// Wait blocks until Run has returned.
func (m *Manager) Wait() {
	<-m.stopped
}

// Capacity returns the configured room capacity.
func (m *Manager) Capacity() int {
	return m.capacity
}

func (m *Manager) exec(cmd func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Presence operation panicked", "panic", r)
		}
	}()
	cmd()
}

// do runs fn on the event loop and waits for it. Domain events raised by fn
// are published afterwards from the calling goroutine.
func (m *Manager) do(ctx context.Context, fn func()) error {
	var raised []any
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		defer func() {
			raised = m.pending
			m.pending = nil
		}()
		fn()
	}

	select {
	case m.cmds <- cmd:
	case <-m.stopped:
		return ErrManagerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done

	for _, evt := range raised {
		m.publisher.Publish(evt)
	}
	return nil
}

// Connect registers a new session whose events go to out.
func (m *Manager) Connect(ctx context.Context, out Outbox) (Session, error) {
	var s Session
	err := m.do(ctx, func() {
		id := m.newID()
		for {
			if _, exists := m.registry.Get(id); !exists {
				break
			}
			id = m.newID()
		}
		added := m.registry.Add(id, m.now())
		added.out = out
		s = *added
	})
	return s, err
}

// Disconnect leaves the session's room, notifying the remaining members,
// and removes the session. Unknown ids are ignored.
func (m *Manager) Disconnect(ctx context.Context, id string) error {
	return m.do(ctx, func() {
		s, ok := m.registry.Get(id)
		if !ok {
			return
		}
		m.leave(s, events.LeaveReasonDisconnect)
		m.registry.Remove(id)
	})
}

// SetName changes the display name of a session.
func (m *Manager) SetName(ctx context.Context, id, name string) error {
	return m.do(ctx, func() {
		if !m.registry.SetName(id, name) {
			return
		}
		if s, _ := m.registry.Get(id); s.RoomCode != "" {
			m.sendLeaderboard(s.RoomCode)
		}
	})
}

// UpdateStats merges patch into the session's stats and re-sends the
// leaderboard of its room.
func (m *Manager) UpdateStats(ctx context.Context, id string, patch room.StatsPatch) error {
	var opErr error
	err := m.do(ctx, func() {
		s, err := m.registry.UpdateStats(id, patch)
		if err != nil {
			opErr = err
			return
		}
		if s.RoomCode != "" {
			m.sendLeaderboard(s.RoomCode)
		}
		m.raise(events.StatsUpdatedEvent{
			SessionID:        s.ID,
			RoomCode:         s.RoomCode,
			ExperiencePoints: s.Stats.ExperiencePoints,
			FocusTimeMinutes: s.Stats.FocusTimeMinutes,
			UpdatedAt:        m.now(),
		})
	})
	if err != nil {
		return err
	}
	return opErr
}

// CreateRoom puts the session alone in a room with a fresh code, leaving its
// current room first.
func (m *Manager) CreateRoom(ctx context.Context, id string) (string, error) {
	var code string
	var opErr error
	err := m.do(ctx, func() {
		s, ok := m.registry.Get(id)
		if !ok {
			opErr = ErrUnknownSession
			return
		}
		now := m.now()
		c, err := m.uniqueCode(now)
		if err != nil {
			opErr = err
			m.sendRoomError(id, err)
			return
		}

		m.leave(s, events.LeaveReasonSwitch)
		m.table.AddMember(c, id, now)
		s.RoomCode = c
		code = c

		m.sendRoster(c)
		m.raise(events.RoomCreatedEvent{RoomCode: c, CreatedBy: id, Source: events.SourceSocket, CreatedAt: now})
		m.raise(events.MemberJoinedEvent{RoomCode: c, SessionID: id, Name: s.Name, MemberCount: 1, JoinedAt: now})
		m.logger.Info("Room created", "code", c, "session", id)
	})
	if err != nil {
		return "", err
	}
	return code, opErr
}

// ProvisionRoom reserves a fresh code without a member. The first join
// turns the reservation into a room.
func (m *Manager) ProvisionRoom(ctx context.Context) (string, error) {
	var code string
	var opErr error
	err := m.do(ctx, func() {
		now := m.now()
		c, err := m.uniqueCode(now)
		if err != nil {
			opErr = err
			return
		}
		m.table.Reserve(c, now.Add(m.reservationTTL))
		code = c
		m.raise(events.RoomCreatedEvent{RoomCode: c, Source: events.SourceHTTP, CreatedAt: now})
		m.logger.Info("Room code reserved", "code", c, "ttl", m.reservationTTL)
	})
	if err != nil {
		return "", err
	}
	return code, opErr
}

// JoinRoom admits the session to an existing or reserved room. On failure
// the caller receives a room-error and stays where it was.
func (m *Manager) JoinRoom(ctx context.Context, id, code, name string) error {
	var opErr error
	err := m.do(ctx, func() {
		opErr = m.join(id, NormalizeRoomCode(code), name)
		if opErr != nil && !errors.Is(opErr, ErrUnknownSession) {
			m.sendRoomError(id, opErr)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

func (m *Manager) join(id, code, name string) error {
	s, ok := m.registry.Get(id)
	if !ok {
		return ErrUnknownSession
	}
	if !IsValidRoomCode(code) {
		return ErrInvalidRoomCode
	}

	now := m.now()
	r, exists := m.table.Get(code)
	if !exists && !m.table.Reserved(code, now) {
		return ErrRoomNotFound
	}

	if s.RoomCode == code {
		m.registry.SetName(id, name)
		m.sendRoster(code)
		return nil
	}
	if exists && m.capacity > 0 && len(r.Members) >= m.capacity {
		return ErrRoomFull
	}

	m.leave(s, events.LeaveReasonSwitch)
	m.registry.SetName(id, name)
	r, _ = m.table.AddMember(code, id, now)
	s.RoomCode = code

	joined := Event{Name: EventUserJoined, Data: s.Member()}
	for _, memberID := range r.Members {
		if memberID != id {
			m.deliver(memberID, joined)
		}
	}
	m.sendRoster(code)

	m.raise(events.MemberJoinedEvent{
		RoomCode:    code,
		SessionID:   id,
		Name:        s.Name,
		MemberCount: len(r.Members),
		JoinedAt:    now,
	})
	m.logger.Info("Session joined room", "code", code, "session", id, "members", len(r.Members))
	return nil
}

// LeaveRoom removes the session from its room. A non-empty code that is not
// the session's current room is ignored and reported as ErrNotInRoom.
func (m *Manager) LeaveRoom(ctx context.Context, id, code string) error {
	var opErr error
	err := m.do(ctx, func() {
		s, ok := m.registry.Get(id)
		if !ok {
			opErr = ErrUnknownSession
			return
		}
		code = NormalizeRoomCode(code)
		if s.RoomCode == "" || (code != "" && code != s.RoomCode) {
			opErr = ErrNotInRoom
			return
		}
		m.leave(s, events.LeaveReasonLeave)
	})
	if err != nil {
		return err
	}
	return opErr
}

// Signal relays an opaque negotiation payload. With a target it goes to that
// session only, otherwise to the other members of the sender's room.
func (m *Manager) Signal(ctx context.Context, fromID, toID string, payload json.RawMessage) error {
	var opErr error
	err := m.do(ctx, func() {
		s, ok := m.registry.Get(fromID)
		if !ok {
			opErr = ErrUnknownSession
			return
		}
		evt := Event{Name: EventSignal, Data: room.Signal{From: fromID, Signal: payload}}

		if toID != "" {
			if _, ok := m.registry.Get(toID); !ok {
				opErr = ErrUnknownTarget
				return
			}
			m.deliver(toID, evt)
			return
		}

		if s.RoomCode == "" {
			opErr = ErrNotInRoom
			return
		}
		for _, memberID := range m.table.MembersOf(s.RoomCode) {
			if memberID != fromID {
				m.deliver(memberID, evt)
			}
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// SendChat stamps a message with the room's chat clock and sends it to every
// member of the sender's room, the sender included.
func (m *Manager) SendChat(ctx context.Context, fromID, code, sender, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return ErrMessageTooLong
	}

	var opErr error
	err := m.do(ctx, func() {
		s, ok := m.registry.Get(fromID)
		if !ok {
			opErr = ErrUnknownSession
			return
		}
		code = NormalizeRoomCode(code)
		if s.RoomCode == "" || (code != "" && code != s.RoomCode) {
			opErr = ErrNotInRoom
			return
		}
		r, _ := m.table.Get(s.RoomCode)

		now := m.now()
		ts := now.UnixMilli()
		if ts < r.LastChatAt {
			ts = r.LastChatAt
		}
		r.LastChatAt = ts

		if sender = sanitizeName(sender); sender == "" {
			sender = s.Name
		}
		evt := Event{Name: EventMessage, Data: room.ChatMessage{Sender: sender, Message: text, TS: ts}}
		for _, memberID := range r.Members {
			m.deliver(memberID, evt)
		}

		m.raise(events.ChatRelayedEvent{
			RoomCode:   r.Code,
			SessionID:  fromID,
			Length:     len(text),
			Recipients: len(r.Members),
			SentAt:     now,
		})
	})
	if err != nil {
		return err
	}
	return opErr
}

// RoomInfo describes an active room.
func (m *Manager) RoomInfo(ctx context.Context, code string) (room.Info, error) {
	var info room.Info
	var opErr error
	err := m.do(ctx, func() {
		r, ok := m.table.Get(NormalizeRoomCode(code))
		if !ok {
			opErr = ErrRoomNotFound
			return
		}
		members := make([]room.Member, 0, len(r.Members))
		for _, s := range m.sessionsOf(r.Members) {
			members = append(members, s.Member())
		}
		info = room.Info{Code: r.Code, Members: members, Capacity: m.capacity, CreatedAt: r.CreatedAt}
	})
	if err != nil {
		return room.Info{}, err
	}
	return info, opErr
}

// Overview returns the current counts.
func (m *Manager) Overview(ctx context.Context) (Overview, error) {
	var o Overview
	err := m.do(ctx, func() {
		o = Overview{
			Sessions:     m.registry.Len(),
			Rooms:        m.table.Len(),
			Reservations: m.table.ReservationCount(),
		}
	})
	return o, err
}

// leave removes s from its room and notifies the members left behind.
func (m *Manager) leave(s *Session, reason string) {
	code := s.RoomCode
	if code == "" {
		return
	}
	s.RoomCode = ""
	_, deleted := m.table.RemoveMember(code, s.ID)

	if !deleted {
		left := Event{Name: EventUserLeft, Data: s.Member()}
		for _, memberID := range m.table.MembersOf(code) {
			m.deliver(memberID, left)
		}
		m.sendRoster(code)
	}

	m.raise(events.MemberLeftEvent{
		RoomCode:   code,
		SessionID:  s.ID,
		Name:       s.Name,
		Reason:     reason,
		RoomClosed: deleted,
		LeftAt:     m.now(),
	})
	m.logger.Info("Session left room", "code", code, "session", s.ID, "reason", reason, "closed", deleted)
}

func (m *Manager) uniqueCode(now time.Time) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := m.newCode()
		if !m.table.Taken(code, now) {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// sendRoster sends room-update and then leaderboard-update to every member.
func (m *Manager) sendRoster(code string) {
	ids := m.table.MembersOf(code)
	update := Event{Name: EventRoomUpdate, Data: ids}
	for _, id := range ids {
		m.deliver(id, update)
	}
	m.sendLeaderboard(code)
}

func (m *Manager) sendLeaderboard(code string) {
	ids := m.table.MembersOf(code)
	board := Event{Name: EventLeaderboardUpdate, Data: BuildLeaderboard(m.sessionsOf(ids))}
	for _, id := range ids {
		m.deliver(id, board)
	}
}

func (m *Manager) sendRoomError(id string, err error) {
	m.deliver(id, Event{Name: EventRoomError, Data: room.RoomError{Message: err.Error()}})
}

func (m *Manager) sessionsOf(ids []string) []*Session {
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.registry.Get(id); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

func (m *Manager) deliver(id string, evt Event) {
	s, ok := m.registry.Get(id)
	if !ok || s.out == nil {
		return
	}
	if !s.out.Send(evt) {
		m.logger.Warn("Dropped event for slow client", "session", id, "event", evt.Name)
	}
}

func (m *Manager) raise(evt any) {
	m.pending = append(m.pending, evt)
}
