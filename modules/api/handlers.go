package api

import (
	"errors"
	"strconv"

	"github.com/example/study-room-signaling/modules/presence"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 200
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/", m.indexHandler)
	app.Get("/health", m.healthHandler)
	app.Get("/ice-config", m.iceConfigHandler)

	app.Post("/create-room", limiter.New(limiter.Config{
		Max:        m.cfg.CreateRoomLimit,
		Expiration: m.cfg.CreateRoomWindow,
		Storage:    m.storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many rooms created, try again later",
			})
		},
	}), m.createRoomHandler)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	v1 := app.Group("/api/v1")
	v1.Get("/rooms/:code", m.getRoomHandler)
	v1.Get("/activity", m.activityHandler)
}

// indexHandler handles GET /.
func (m *APIModule) indexHandler(c *fiber.Ctx) error {
	return c.SendString(Banner)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{"module": "api"}

	overview, err := m.presence.Overview(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
			Status:  "unhealthy",
			Details: map[string]any{"error": err.Error()},
		})
	}
	details["sessions"] = overview.Sessions
	details["rooms"] = overview.Rooms
	details["reservations"] = overview.Reservations

	if m.activity != nil {
		if summary, err := m.activity.Summary(c.UserContext(), 1); err == nil {
			details["activity"] = summary.Counters
		}
	}

	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// iceConfigHandler handles GET /ice-config.
func (m *APIModule) iceConfigHandler(c *fiber.Ctx) error {
	return c.JSON(ICEConfigResponse{ICEServers: m.cfg.ICEServers()})
}

// createRoomHandler handles POST /create-room. The code is reserved, the
// room itself exists once someone joins it.
func (m *APIModule) createRoomHandler(c *fiber.Ctx) error {
	code, err := m.presence.ProvisionRoom(c.UserContext())
	if err != nil {
		m.logger.Error("Failed to provision room", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create room",
		})
	}
	return c.JSON(CreateRoomResponse{RoomCode: code})
}

// getRoomHandler handles GET /api/v1/rooms/:code.
func (m *APIModule) getRoomHandler(c *fiber.Ctx) error {
	info, err := m.presence.RoomInfo(c.UserContext(), c.Params("code"))
	switch {
	case err == nil:
		return c.JSON(info)
	case errors.Is(err, presence.ErrInvalidRoomCode):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid room code",
		})
	case errors.Is(err, presence.ErrRoomNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	default:
		m.logger.Error("Failed to get room", "code", c.Params("code"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "lookup_failed",
			Message: "Failed to get room",
		})
	}
}

// activityHandler handles GET /api/v1/activity.
func (m *APIModule) activityHandler(c *fiber.Ctx) error {
	if m.activity == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "unavailable",
			Message: "Activity log is not available",
		})
	}

	limit := defaultActivityLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxActivityLimit {
			limit = parsed
		}
	}

	summary, err := m.activity.Summary(c.UserContext(), limit)
	if err != nil {
		m.logger.Error("Failed to read activity", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "activity_failed",
			Message: "Failed to read activity",
		})
	}

	return c.JSON(ActivityResponse{
		Counters: summary.Counters,
		Recent:   summary.Recent,
	})
}
