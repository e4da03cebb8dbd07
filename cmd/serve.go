package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/study-room-signaling/config"
	"github.com/example/study-room-signaling/modules/activity"
	"github.com/example/study-room-signaling/modules/api"
	"github.com/example/study-room-signaling/modules/presence"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket signaling server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("=== Virtual Study Room - Fiber + EventBus ===", "env", cfg.Env)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Create modules
	presenceModule, err := presence.NewModule(app.Logger(),
		presence.WithCapacity(cfg.RoomCapacity),
		presence.WithReservationTTL(cfg.ReservationTTL),
	)
	if err != nil {
		return err
	}
	activityModule := activity.NewModule(app.Logger())
	apiModule := api.NewModule(cfg, app.Logger())

	// The WebSocket transport drives the manager directly
	// (it is not exposed via ServiceContainer).
	apiModule.SetManager(presenceModule.Manager())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - presence: room state (ServiceProviderModule + EventEmitterModule)
	// - activity: event consumer (counters and recent activity log)
	// - api: driving adapter (Fiber HTTP/WebSocket server, depends on presence and activity)
	app.Register(presenceModule)
	app.Register(activityModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	printStartupInfo(logger, cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				logger.Info("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("Application exited", "code", exitCode)
	os.Exit(exitCode)
	return nil
}

func printStartupInfo(logger *slog.Logger, cfg *config.Config) {
	logger.Info("Application started successfully!",
		"port", cfg.Port,
		"room_capacity", cfg.RoomCapacity,
		"reservation_ttl", cfg.ReservationTTL,
		"turn", cfg.TURNConfigured(),
		"redis_limiter", cfg.RedisAddr != "",
	)
	logger.Info("HTTP endpoints",
		"index", "GET /",
		"health", "GET /health",
		"ice", "GET /ice-config",
		"create", "POST /create-room",
		"room", "GET /api/v1/rooms/:code",
		"activity", "GET /api/v1/activity",
	)
	logger.Info("WebSocket endpoint",
		"url", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port),
		"events", "create-room, join-room, leave-room, signal, message, update-stats, set-name",
	)
	logger.Info("Press Ctrl+C to shutdown gracefully")
}
