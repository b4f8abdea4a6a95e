package config

import "github.com/spf13/viper"

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level       string
	Encoding    string
	Development bool
}

// LoadLogger loads logger configuration from viper and environment variables.
func LoadLogger(v *viper.Viper) LoggerConfig {
	return LoggerConfig{
		Level:       getString("LOG_LEVEL", "logger.level", "info", v),
		Encoding:    getString("LOG_FORMAT", "logger.encoding", "console", v),
		Development: v.GetBool("logger.development"),
	}
}
