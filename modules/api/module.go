package api

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/example/study-room-signaling/config"
	"github.com/example/study-room-signaling/modules/activity"
	"github.com/example/study-room-signaling/modules/presence"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
)

// APIModule serves the HTTP endpoints and the /ws signaling socket.
type APIModule struct {
	cfg    *config.Config
	logger types.Logger

	app     *fiber.App
	storage fiber.Storage

	presence presence.PresencePort
	activity activity.ActivityPort
	manager  *presence.Manager
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(cfg *config.Config, logger types.Logger) *APIModule {
	return &APIModule{
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"presence", "activity"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "presence":
		m.presence = presence.NewPresenceAdapter(container)
	case "activity":
		m.activity = activity.NewActivityAdapter(container)
	}
}

// SetManager sets the presence manager driven by WebSocket connections
// (called from the serve command, the manager is not reachable through the ServiceContainer).
func (m *APIModule) SetManager(manager *presence.Manager) {
	m.manager = manager
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.presence == nil {
		return fmt.Errorf("presence adapter dependency not set")
	}
	if m.manager == nil {
		return fmt.Errorf("presence manager dependency not set")
	}

	m.storage = m.limiterStorage()
	m.app = m.newApp()

	go func() {
		if err := m.app.Listen(":" + m.cfg.Port); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "port", m.cfg.Port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	err := m.app.ShutdownWithContext(ctx)
	if m.storage != nil {
		if cerr := m.storage.Close(); cerr != nil {
			m.logger.Warn("Failed to close limiter storage", "error", cerr)
		}
	}
	return err
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":          m.cfg.Port,
			"redis_limiter": m.storage != nil,
		},
	}
}

// newApp builds the Fiber application with middleware and routes.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		// WebSocket upgrades log through the session lifecycle instead.
		Next: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderUpgrade) == "websocket"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.cfg.AllowedOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	m.setupRoutes(app)
	return app
}

// limiterStorage returns Redis storage for the create-room limiter when
// redis_addr is set and reachable, nil (in-memory) otherwise.
func (m *APIModule) limiterStorage() fiber.Storage {
	if m.cfg.RedisAddr == "" {
		return nil
	}

	host, portStr, err := net.SplitHostPort(m.cfg.RedisAddr)
	if err != nil {
		m.logger.Warn("Invalid redis_addr, using in-memory limiter", "addr", m.cfg.RedisAddr, "error", err)
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		m.logger.Warn("Invalid redis port, using in-memory limiter", "addr", m.cfg.RedisAddr, "error", err)
		return nil
	}

	// gofiber/storage/redis panics when it cannot connect, so probe first.
	conn, err := net.DialTimeout("tcp", m.cfg.RedisAddr, 2*time.Second)
	if err != nil {
		m.logger.Warn("Redis not reachable, using in-memory limiter", "addr", m.cfg.RedisAddr, "error", err)
		return nil
	}
	_ = conn.Close()

	m.logger.Info("Using Redis for create-room rate limiting", "addr", m.cfg.RedisAddr)
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: m.cfg.RedisPassword,
	})
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
