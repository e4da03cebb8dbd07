package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/study-room-signaling/domain/room"
	"github.com/example/study-room-signaling/modules/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialCodes(codes ...string) presence.CodeGenerator {
	i := 0
	return func() string {
		c := codes[i%len(codes)]
		i++
		return c
	}
}

// newDispatchAPI returns an APIModule driving a running presence manager.
func newDispatchAPI(t *testing.T, opts ...presence.Option) *APIModule {
	t.Helper()
	manager, err := presence.NewManager(&mockLogger{}, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Run(ctx)
	t.Cleanup(func() {
		cancel()
		manager.Wait()
	})

	m := NewModule(testConfig(), &mockLogger{})
	m.SetManager(manager)
	return m
}

// connectClient registers a client without a socket; frames stay in c.out.
func connectClient(t *testing.T, m *APIModule) *client {
	t.Helper()
	c := newClient(nil, nil, &mockLogger{})
	s, err := m.manager.Connect(context.Background(), c)
	require.NoError(t, err)
	c.id = s.ID
	return c
}

// drain returns the queued frames.
func drain(c *client) []OutboundFrame {
	var frames []OutboundFrame
	for {
		select {
		case f := <-c.out:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func frameNames(frames []OutboundFrame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func findFrame(frames []OutboundFrame, event string) (OutboundFrame, bool) {
	for _, f := range frames {
		if f.Event == event {
			return f, true
		}
	}
	return OutboundFrame{}, false
}

func inbound(t *testing.T, event string, ack int64, data any) InboundFrame {
	t.Helper()
	f := InboundFrame{Event: event, Ack: ack}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		f.Data = raw
	}
	return f
}

func TestDispatchCreateAndJoin(t *testing.T) {
	m := newDispatchAPI(t, presence.WithCodeGenerator(sequentialCodes("ROOM-AAAAA")))
	ctx := context.Background()
	alice := connectClient(t, m)
	bob := connectClient(t, m)

	m.dispatch(ctx, alice, inbound(t, EventCreateRoom, 1, nil))
	frames := drain(alice)
	ack, ok := findFrame(frames, EventAck)
	require.True(t, ok)
	assert.Equal(t, int64(1), ack.Ack)
	assert.Equal(t, CreateRoomAck{RoomCode: "ROOM-AAAAA", OK: true}, ack.Data)
	assert.Contains(t, frameNames(frames), presence.EventRoomUpdate)

	m.dispatch(ctx, bob, inbound(t, EventJoinRoom, 7, JoinRoomPayload{RoomCode: "room-aaaaa", Name: "Bob"}))
	bobFrames := drain(bob)
	ack, ok = findFrame(bobFrames, EventAck)
	require.True(t, ok)
	assert.Equal(t, int64(7), ack.Ack)
	assert.Equal(t, JoinRoomAck{OK: true}, ack.Data)
	assert.Contains(t, frameNames(bobFrames), presence.EventLeaderboardUpdate)

	aliceFrames := drain(alice)
	joined, ok := findFrame(aliceFrames, presence.EventUserJoined)
	require.True(t, ok)
	assert.Equal(t, room.Member{ID: bob.id, Name: "Bob"}, joined.Data)
}

func TestDispatchJoinUnknownRoom(t *testing.T) {
	m := newDispatchAPI(t)
	c := connectClient(t, m)

	m.dispatch(context.Background(), c, inbound(t, EventJoinRoom, 3, JoinRoomPayload{RoomCode: "ROOM-ZZZZZ"}))

	frames := drain(c)
	assert.Contains(t, frameNames(frames), presence.EventRoomError)
	ack, ok := findFrame(frames, EventAck)
	require.True(t, ok)
	assert.Equal(t, JoinRoomAck{OK: false}, ack.Data)
}

func TestDispatchSignalAndChat(t *testing.T) {
	m := newDispatchAPI(t, presence.WithCodeGenerator(sequentialCodes("ROOM-AAAAA")))
	ctx := context.Background()
	alice := connectClient(t, m)
	bob := connectClient(t, m)

	m.dispatch(ctx, alice, inbound(t, EventCreateRoom, 0, nil))
	m.dispatch(ctx, bob, inbound(t, EventJoinRoom, 0, JoinRoomPayload{RoomCode: "ROOM-AAAAA", Name: "Bob"}))
	drain(alice)
	drain(bob)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	m.dispatch(ctx, alice, inbound(t, EventSignal, 0, SignalPayload{ToID: bob.id, Signal: offer}))
	sig, ok := findFrame(drain(bob), presence.EventSignal)
	require.True(t, ok)
	got, ok := sig.Data.(room.Signal)
	require.True(t, ok)
	assert.Equal(t, alice.id, got.From)
	assert.JSONEq(t, string(offer), string(got.Signal))
	assert.Empty(t, drain(alice))

	m.dispatch(ctx, bob, inbound(t, EventMessage, 0, MessagePayload{Message: "hi", Sender: "Bob"}))
	for _, c := range []*client{alice, bob} {
		msg, ok := findFrame(drain(c), presence.EventMessage)
		require.True(t, ok)
		chat, ok := msg.Data.(room.ChatMessage)
		require.True(t, ok)
		assert.Equal(t, "hi", chat.Message)
	}
}

func TestDispatchRejectsBadInput(t *testing.T) {
	m := newDispatchAPI(t)
	ctx := context.Background()
	c := connectClient(t, m)

	tests := []struct {
		name  string
		frame InboundFrame
		want  string
	}{
		{name: "unknown event", frame: InboundFrame{Event: "teleport"}, want: "Unknown event: teleport"},
		{name: "malformed join", frame: InboundFrame{Event: EventJoinRoom, Data: json.RawMessage(`"ROOM-AAAAA"`)}, want: "Invalid join-room payload"},
		{name: "signal without payload", frame: inbound(t, EventSignal, 0, SignalPayload{ToID: "x"}), want: "Invalid signal payload"},
		{name: "negative stats", frame: inbound(t, EventUpdateStats, 0, map[string]any{"stats": map[string]any{"xpPoints": -1}}), want: "Stats must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.dispatch(ctx, c, tt.frame)
			errFrame, ok := findFrame(drain(c), EventError)
			require.True(t, ok)
			assert.Equal(t, ErrorPayload{Message: tt.want}, errFrame.Data)
		})
	}
}

func TestDispatchLongMessage(t *testing.T) {
	m := newDispatchAPI(t, presence.WithCodeGenerator(sequentialCodes("ROOM-AAAAA")))
	ctx := context.Background()
	c := connectClient(t, m)
	m.dispatch(ctx, c, inbound(t, EventCreateRoom, 0, nil))
	drain(c)

	long := make([]byte, presence.MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	m.dispatch(ctx, c, inbound(t, EventMessage, 0, MessagePayload{Message: string(long), Sender: "A"}))

	frames := drain(c)
	errFrame, ok := findFrame(frames, EventError)
	require.True(t, ok)
	assert.Equal(t, ErrorPayload{Message: "Message too long"}, errFrame.Data)
	_, relayed := findFrame(frames, presence.EventMessage)
	assert.False(t, relayed)
}

func TestDispatchStatsAndName(t *testing.T) {
	m := newDispatchAPI(t, presence.WithCodeGenerator(sequentialCodes("ROOM-AAAAA")))
	ctx := context.Background()
	c := connectClient(t, m)
	m.dispatch(ctx, c, inbound(t, EventCreateRoom, 0, nil))
	drain(c)

	m.dispatch(ctx, c, inbound(t, EventSetName, 0, SetNamePayload{Name: "Grace"}))
	m.dispatch(ctx, c, inbound(t, EventUpdateStats, 0, map[string]any{"stats": map[string]any{"xpPoints": 120, "focusTime": 45}}))

	var last []room.LeaderboardEntry
	for _, f := range drain(c) {
		if f.Event == presence.EventLeaderboardUpdate {
			last = f.Data.([]room.LeaderboardEntry)
		}
	}
	require.Len(t, last, 1)
	assert.Equal(t, "Grace", last[0].Name)
	assert.Equal(t, 120, last[0].ExperiencePoints)
	assert.Equal(t, 45, last[0].FocusTimeMinutes)
}

func TestDispatchLeaveRoom(t *testing.T) {
	m := newDispatchAPI(t, presence.WithCodeGenerator(sequentialCodes("ROOM-AAAAA")))
	ctx := context.Background()
	alice := connectClient(t, m)
	bob := connectClient(t, m)
	m.dispatch(ctx, alice, inbound(t, EventCreateRoom, 0, nil))
	m.dispatch(ctx, bob, inbound(t, EventJoinRoom, 0, JoinRoomPayload{RoomCode: "ROOM-AAAAA", Name: "Bob"}))
	drain(alice)

	m.dispatch(ctx, bob, inbound(t, EventLeaveRoom, 0, LeaveRoomPayload{RoomCode: "ROOM-AAAAA"}))

	assert.Contains(t, frameNames(drain(alice)), presence.EventUserLeft)
	info, err := m.manager.RoomInfo(ctx, "ROOM-AAAAA")
	require.NoError(t, err)
	assert.Len(t, info.Members, 1)
}
