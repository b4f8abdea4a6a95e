package config

import (
	"time"

	"github.com/spf13/viper"
)

// Server defaults.
const (
	DefaultServerAddress      = ":8080"
	DefaultServerReadTimeout  = 15 * time.Second
	DefaultServerWriteTimeout = 15 * time.Second
	DefaultServerIdleTimeout  = 60 * time.Second
)

// ServerConfig holds read API server settings.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LoadServer loads server configuration from viper and environment variables.
func LoadServer(v *viper.Viper) ServerConfig {
	return ServerConfig{
		Address:      getString("SERVER_ADDRESS", "server.address", DefaultServerAddress, v),
		ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", "server.read_timeout", DefaultServerReadTimeout, v),
		WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", "server.write_timeout", DefaultServerWriteTimeout, v),
		IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", "server.idle_timeout", DefaultServerIdleTimeout, v),
	}
}
