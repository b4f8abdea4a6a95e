package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Database defaults.
const (
	DefaultDBHost         = "localhost"
	DefaultDBPort         = "5432"
	DefaultDBUser         = "postgres"
	DefaultDBName         = "torcrawl"
	DefaultDBSSLMode      = "disable"
	DefaultDBMaxOpenConns = 10
)

// DatabaseConfig represents database configuration settings.
type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
}

// DSN returns the connection string. DATABASE_URL wins when set; otherwise
// the string is assembled from the component fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadDatabase loads database configuration from viper and environment variables.
func LoadDatabase(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		Host:         getString("DB_HOST", "database.host", DefaultDBHost, v),
		Port:         getString("DB_PORT", "database.port", DefaultDBPort, v),
		User:         getString("DB_USER", "database.user", DefaultDBUser, v),
		Password:     getString("DB_PASSWORD", "database.password", "", v),
		DBName:       getString("DB_NAME", "database.dbname", DefaultDBName, v),
		SSLMode:      getString("DB_SSLMODE", "database.sslmode", DefaultDBSSLMode, v),
		MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", "database.max_open_conns", DefaultDBMaxOpenConns, v),
	}
}
