// Package cmd contains the CLI setup and commands exposed to the user.
package cmd

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/example/study-room-signaling/config"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigFile is the optional config file given with --config.
var ConfigFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "studyroomd",
	Short: "Room presence and WebRTC signaling relay for virtual study rooms",
	Long: `studyroomd keeps track of who is in which study room, relays WebRTC
signaling and chat between room members and pushes leaderboards built from
the stats each member reports.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err.Error())
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "config file (yaml, toml or json)")
}

// loadConfig reads .env, the config file and the environment.
func loadConfig() (*config.Config, error) {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg, err := config.Load(viper.New(), ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger returns the process logger: JSON in production, colored text otherwise.
func newLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug, TimeFormat: time.Kitchen})
	}
	return slog.New(handler)
}
