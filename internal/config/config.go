package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration, loaded from a .env file when present
// and from real environment variables otherwise.
type Config struct {
	Host             string
	Port             int
	ClientPort       int
	RoomSize         int
	EnablePrometheus bool
	Development      bool

	// Derived
	AllowOrigins string
}

const (
	DefaultPort     = 3001
	DefaultRoomSize = 8
)

// Load reads SERVER_HOST, SERVER_PORT, CLIENT_PORT, ROOM_SIZE,
// PROMETHEUS_ENABLED and APP_ENV. All are optional; defaults match the
// historical deployment.
func Load() (*Config, error) {
	// Missing .env is fine, the environment may carry everything.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("server_host", "")
	v.SetDefault("server_port", DefaultPort)
	v.SetDefault("client_port", 0)
	v.SetDefault("room_size", DefaultRoomSize)
	v.SetDefault("prometheus_enabled", false)
	v.SetDefault("app_env", "production")

	cfg := &Config{
		Host:             v.GetString("server_host"),
		Port:             v.GetInt("server_port"),
		ClientPort:       v.GetInt("client_port"),
		RoomSize:         v.GetInt("room_size"),
		EnablePrometheus: v.GetBool("prometheus_enabled"),
		Development:      v.GetString("app_env") == "development",
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid SERVER_PORT: %d", cfg.Port)
	}
	if cfg.RoomSize <= 0 {
		return nil, fmt.Errorf("invalid ROOM_SIZE: %d", cfg.RoomSize)
	}

	// The browser client is served from the configured host and port; when
	// either is absent, fall back to allowing any origin.
	if cfg.Host != "" && cfg.ClientPort > 0 {
		cfg.AllowOrigins = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.ClientPort)
	} else {
		cfg.AllowOrigins = "*"
	}

	return cfg, nil
}

func (c *Config) PortString() string {
	return fmt.Sprintf("%d", c.Port)
}
