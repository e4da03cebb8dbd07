package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/study-room-signaling/config"
	"github.com/example/study-room-signaling/domain/room"
	"github.com/example/study-room-signaling/modules/activity"
	"github.com/example/study-room-signaling/modules/presence"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)          {}
func (m *mockLogger) Info(msg string, args ...any)           {}
func (m *mockLogger) Warn(msg string, args ...any)           {}
func (m *mockLogger) Error(msg string, args ...any)          {}
func (m *mockLogger) With(args ...any) types.Logger          { return m }
func (m *mockLogger) WithError(err error) types.Logger       { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// fakePresence implements presence.PresencePort.
type fakePresence struct {
	codes        []string
	provisioned  int
	provisionErr error
	rooms        map[string]room.Info
	infoErr      error
	overview     presence.Overview
	overviewErr  error
}

func (f *fakePresence) ProvisionRoom(context.Context) (string, error) {
	if f.provisionErr != nil {
		return "", f.provisionErr
	}
	code := f.codes[f.provisioned%len(f.codes)]
	f.provisioned++
	return code, nil
}

func (f *fakePresence) RoomInfo(_ context.Context, code string) (*room.Info, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	code = presence.NormalizeRoomCode(code)
	if !presence.IsValidRoomCode(code) {
		return nil, presence.ErrInvalidRoomCode
	}
	info, ok := f.rooms[code]
	if !ok {
		return nil, presence.ErrRoomNotFound
	}
	return &info, nil
}

func (f *fakePresence) Overview(context.Context) (*presence.Overview, error) {
	if f.overviewErr != nil {
		return nil, f.overviewErr
	}
	o := f.overview
	return &o, nil
}

// fakeActivity implements activity.ActivityPort.
type fakeActivity struct {
	lastLimit int
	summary   activity.SummaryResponse
}

func (f *fakeActivity) Summary(_ context.Context, limit int) (*activity.SummaryResponse, error) {
	f.lastLimit = limit
	s := f.summary
	return &s, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                "test",
		Port:               "4000",
		CORSAllowedOrigins: "*",
		STUNURL:            config.DefaultSTUNURL,
		RoomCapacity:       3,
		ReservationTTL:     10 * time.Minute,
		WSRatePerSecond:    20,
		WSRateBurst:        40,
		CreateRoomLimit:    30,
		CreateRoomWindow:   time.Minute,
	}
}

func newTestAPI(t *testing.T, cfg *config.Config, p presence.PresencePort, a activity.ActivityPort) *APIModule {
	t.Helper()
	m := NewModule(cfg, &mockLogger{})
	m.presence = p
	m.activity = a
	m.app = m.newApp()
	return m
}

func doRequest(t *testing.T, m *APIModule, method, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := m.app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

func TestIndexHandler(t *testing.T) {
	m := newTestAPI(t, testConfig(), &fakePresence{}, &fakeActivity{})

	resp, body := doRequest(t, m, http.MethodGet, "/")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, Banner, string(body))
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		p := &fakePresence{overview: presence.Overview{Sessions: 4, Rooms: 2, Reservations: 1}}
		m := newTestAPI(t, testConfig(), p, &fakeActivity{})

		resp, body := doRequest(t, m, http.MethodGet, "/health")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var health HealthResponse
		require.NoError(t, json.Unmarshal(body, &health))
		assert.Equal(t, "healthy", health.Status)
		assert.EqualValues(t, 4, health.Details["sessions"])
		assert.EqualValues(t, 2, health.Details["rooms"])
		assert.EqualValues(t, 1, health.Details["reservations"])
		assert.Contains(t, health.Details, "activity")
	})

	t.Run("presence unavailable", func(t *testing.T) {
		p := &fakePresence{overviewErr: presence.ErrManagerStopped}
		m := newTestAPI(t, testConfig(), p, &fakeActivity{})

		resp, body := doRequest(t, m, http.MethodGet, "/health")
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		assert.Contains(t, string(body), "unhealthy")
	})
}

func TestICEConfigHandler(t *testing.T) {
	tests := []struct {
		name      string
		turnURL   string
		wantCount int
		wantTURN  []string
	}{
		{name: "stun only", wantCount: 1},
		{name: "single turn url", turnURL: "turn:turn.example.com:3478", wantCount: 2, wantTURN: []string{"turn:turn.example.com:3478"}},
		{
			name:      "comma separated turn urls",
			turnURL:   "turn:a.example.com:3478, turns:a.example.com:5349",
			wantCount: 2,
			wantTURN:  []string{"turn:a.example.com:3478", "turns:a.example.com:5349"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.TURNURL = tt.turnURL
			if tt.turnURL != "" {
				cfg.TURNUsername = "user"
				cfg.TURNPassword = "secret"
			}
			m := newTestAPI(t, cfg, &fakePresence{}, &fakeActivity{})

			resp, body := doRequest(t, m, http.MethodGet, "/ice-config")
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			var got struct {
				ICEServers []struct {
					URLs       []string `json:"urls"`
					Username   string   `json:"username"`
					Credential string   `json:"credential"`
				} `json:"iceServers"`
			}
			require.NoError(t, json.Unmarshal(body, &got))
			require.Len(t, got.ICEServers, tt.wantCount)
			assert.Equal(t, []string{config.DefaultSTUNURL}, got.ICEServers[0].URLs)
			if tt.wantTURN != nil {
				assert.Equal(t, tt.wantTURN, got.ICEServers[1].URLs)
				assert.Equal(t, "user", got.ICEServers[1].Username)
				assert.Equal(t, "secret", got.ICEServers[1].Credential)
			}
		})
	}
}

func TestCreateRoomHandler(t *testing.T) {
	t.Run("returns reserved code", func(t *testing.T) {
		p := &fakePresence{codes: []string{"ROOM-AB12C"}}
		m := newTestAPI(t, testConfig(), p, &fakeActivity{})

		resp, body := doRequest(t, m, http.MethodPost, "/create-room")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var got CreateRoomResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "ROOM-AB12C", got.RoomCode)
		assert.Equal(t, 1, p.provisioned)
	})

	t.Run("provisioning failure", func(t *testing.T) {
		p := &fakePresence{provisionErr: presence.ErrCodeSpaceExhausted}
		m := newTestAPI(t, testConfig(), p, &fakeActivity{})

		resp, body := doRequest(t, m, http.MethodPost, "/create-room")
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, string(body), "create_failed")
	})

	t.Run("rate limited", func(t *testing.T) {
		cfg := testConfig()
		cfg.CreateRoomLimit = 2
		p := &fakePresence{codes: []string{"ROOM-AAAAA", "ROOM-BBBBB", "ROOM-CCCCC"}}
		m := newTestAPI(t, cfg, p, &fakeActivity{})

		for i := 0; i < 2; i++ {
			resp, _ := doRequest(t, m, http.MethodPost, "/create-room")
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
		}
		resp, body := doRequest(t, m, http.MethodPost, "/create-room")
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
		assert.Contains(t, string(body), "rate_limited")
		assert.Equal(t, 2, p.provisioned)
	})
}

func TestGetRoomHandler(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &fakePresence{rooms: map[string]room.Info{
		"ROOM-AB12C": {
			Code:      "ROOM-AB12C",
			Members:   []room.Member{{ID: "s1", Name: "Ada"}},
			Capacity:  3,
			CreatedAt: created,
		},
	}}
	m := newTestAPI(t, testConfig(), p, &fakeActivity{})

	t.Run("found", func(t *testing.T) {
		resp, body := doRequest(t, m, http.MethodGet, "/api/v1/rooms/room-ab12c")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var info room.Info
		require.NoError(t, json.Unmarshal(body, &info))
		assert.Equal(t, "ROOM-AB12C", info.Code)
		assert.Equal(t, []room.Member{{ID: "s1", Name: "Ada"}}, info.Members)
		assert.Equal(t, 3, info.Capacity)
	})

	t.Run("not found", func(t *testing.T) {
		resp, _ := doRequest(t, m, http.MethodGet, "/api/v1/rooms/ROOM-ZZZZZ")
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid code", func(t *testing.T) {
		resp, _ := doRequest(t, m, http.MethodGet, "/api/v1/rooms/lobby")
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("lookup failure", func(t *testing.T) {
		broken := newTestAPI(t, testConfig(), &fakePresence{infoErr: errors.New("bus down")}, &fakeActivity{})
		resp, _ := doRequest(t, broken, http.MethodGet, "/api/v1/rooms/ROOM-AB12C")
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})
}

func TestActivityHandler(t *testing.T) {
	a := &fakeActivity{summary: activity.SummaryResponse{
		Counters: activity.Counters{RoomsCreated: 2, Joins: 5},
		Recent:   []activity.Entry{{Type: "member_joined", RoomCode: "ROOM-AB12C"}},
	}}
	m := newTestAPI(t, testConfig(), &fakePresence{}, a)

	tests := []struct {
		query     string
		wantLimit int
	}{
		{query: "", wantLimit: defaultActivityLimit},
		{query: "?limit=5", wantLimit: 5},
		{query: "?limit=0", wantLimit: defaultActivityLimit},
		{query: "?limit=abc", wantLimit: defaultActivityLimit},
		{query: "?limit=100000", wantLimit: defaultActivityLimit},
	}

	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			resp, body := doRequest(t, m, http.MethodGet, "/api/v1/activity"+tt.query)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantLimit, a.lastLimit)

			var got ActivityResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, 2, got.Counters.RoomsCreated)
			assert.Equal(t, 5, got.Counters.Joins)
			require.Len(t, got.Recent, 1)
			assert.Equal(t, "ROOM-AB12C", got.Recent[0].RoomCode)
		})
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	m := newTestAPI(t, testConfig(), &fakePresence{}, &fakeActivity{})

	resp, _ := doRequest(t, m, http.MethodGet, "/ws")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestStartRequiresDependencies(t *testing.T) {
	m := NewModule(testConfig(), &mockLogger{})
	assert.Error(t, m.Start(context.Background()))

	m.presence = &fakePresence{}
	assert.Error(t, m.Start(context.Background()))
}

func TestLimiterStorageFallsBackToMemory(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{name: "unset", addr: ""},
		{name: "missing port", addr: "localhost"},
		{name: "non numeric port", addr: "localhost:redis"},
		{name: "unreachable", addr: "127.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RedisAddr = tt.addr
			m := NewModule(cfg, &mockLogger{})
			assert.Nil(t, m.limiterStorage())
		})
	}
}
