// Package config provides configuration management. Values resolve in order:
// environment variables, viper config file keys, then documented defaults.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates the per-concern configuration sections.
type Config struct {
	Logger   LoggerConfig
	Database DatabaseConfig
	Proxy    ProxyConfig
	Crawler  CrawlerConfig
	Scanner  ScannerConfig
	DirScan  DirScanConfig
	Server   ServerConfig
}

// Load builds the full configuration from viper and the environment.
func Load(v *viper.Viper) *Config {
	return &Config{
		Logger:   LoadLogger(v),
		Database: LoadDatabase(v),
		Proxy:    LoadProxy(v),
		Crawler:  LoadCrawler(v),
		Scanner:  LoadScanner(v),
		DirScan:  LoadDirScan(v),
		Server:   LoadServer(v),
	}
}

// getString retrieves a value from environment or viper, with a default fallback.
func getString(envKey, viperKey, defaultValue string, v *viper.Viper) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if val := v.GetString(viperKey); val != "" {
		return val
	}
	return defaultValue
}

// getInt retrieves an integer value from environment or viper, with a default fallback.
func getInt(envKey, viperKey string, defaultValue int, v *viper.Viper) int {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	if v.IsSet(viperKey) {
		return v.GetInt(viperKey)
	}
	return defaultValue
}

// getDuration retrieves a duration from environment or viper, with a default
// fallback. Environment values accept either Go duration syntax or bare seconds.
func getDuration(envKey, viperKey string, defaultValue time.Duration, v *viper.Viper) time.Duration {
	if val := os.Getenv(envKey); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	if v.IsSet(viperKey) {
		return v.GetDuration(viperKey)
	}
	return defaultValue
}
