// Package config loads server settings from defaults, an optional config file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

// DefaultSTUNURL is the public STUN server handed to every client.
const DefaultSTUNURL = "stun:stun.l.google.com:19302"

// Config holds the resolved server settings.
type Config struct {
	Env                string
	Port               string
	CORSAllowedOrigins string

	STUNURL      string
	TURNURL      string
	TURNUsername string
	TURNPassword string

	RoomCapacity   int
	ReservationTTL time.Duration

	WSRatePerSecond float64
	WSRateBurst     int

	CreateRoomLimit  int
	CreateRoomWindow time.Duration
	RedisAddr        string
	RedisPassword    string

	ShutdownTimeout time.Duration
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "4000")
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("stun_url", DefaultSTUNURL)
	v.SetDefault("turn_url", "")
	v.SetDefault("turn_username", "")
	v.SetDefault("turn_password", "")
	v.SetDefault("room_capacity", 3)
	v.SetDefault("reservation_ttl", 10*time.Minute)
	v.SetDefault("ws_rate_per_second", 20.0)
	v.SetDefault("ws_rate_burst", 40)
	v.SetDefault("create_room_limit", 30)
	v.SetDefault("create_room_window", time.Minute)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("shutdown_timeout", 30*time.Second)
}

// Load reads the configuration. Environment variables use the upper-cased
// key name (PORT, TURN_URL, ...) and take precedence over the file.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
			}
		}
	}

	cfg := &Config{
		Env:                v.GetString("env"),
		Port:               v.GetString("port"),
		CORSAllowedOrigins: v.GetString("cors_allowed_origins"),
		STUNURL:            v.GetString("stun_url"),
		TURNURL:            v.GetString("turn_url"),
		TURNUsername:       v.GetString("turn_username"),
		TURNPassword:       v.GetString("turn_password"),
		RoomCapacity:       v.GetInt("room_capacity"),
		ReservationTTL:     v.GetDuration("reservation_ttl"),
		WSRatePerSecond:    v.GetFloat64("ws_rate_per_second"),
		WSRateBurst:        v.GetInt("ws_rate_burst"),
		CreateRoomLimit:    v.GetInt("create_room_limit"),
		CreateRoomWindow:   v.GetDuration("create_room_window"),
		RedisAddr:          v.GetString("redis_addr"),
		RedisPassword:      v.GetString("redis_password"),
		ShutdownTimeout:    v.GetDuration("shutdown_timeout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("port must not be empty")
	}
	if c.RoomCapacity < 0 {
		return fmt.Errorf("room_capacity must be >= 0, got %d", c.RoomCapacity)
	}
	if c.ReservationTTL <= 0 {
		return fmt.Errorf("reservation_ttl must be positive, got %s", c.ReservationTTL)
	}
	if c.WSRatePerSecond <= 0 || c.WSRateBurst <= 0 {
		return errors.New("ws_rate_per_second and ws_rate_burst must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// TURNConfigured reports whether all three TURN settings are present.
func (c *Config) TURNConfigured() bool {
	return c.TURNURL != "" && c.TURNUsername != "" && c.TURNPassword != ""
}

// ICEServers returns the STUN entry followed by the TURN entry when configured.
func (c *Config) ICEServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if c.STUNURL != "" {
		servers = append(servers, webrtc.ICEServer{URLs: []string{c.STUNURL}})
	}
	if c.TURNConfigured() {
		if urls := splitCSV(c.TURNURL); len(urls) > 0 {
			servers = append(servers, webrtc.ICEServer{
				URLs:       urls,
				Username:   c.TURNUsername,
				Credential: c.TURNPassword,
			})
		}
	}
	return servers
}

// AllowedOrigins returns the CORS origins as a comma-joined list for fiber's cors middleware.
func (c *Config) AllowedOrigins() string {
	origins := splitCSV(c.CORSAllowedOrigins)
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
