// Package common holds the startup plumbing shared by every subcommand.
package common

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"

	"github.com/jonesrussell/torcrawl/internal/config"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/logger"
)

// Runtime bundles what every subsystem process needs at startup.
type Runtime struct {
	Config *config.Config
	Logger logger.Interface
	DB     *sqlx.DB
}

// Setup loads configuration, builds the logger and opens the database pool.
func Setup() (*Runtime, error) {
	cfg := config.Load(viper.GetViper())

	log := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Development: cfg.Logger.Development,
	})

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Runtime{Config: cfg, Logger: log, DB: db}, nil
}

// Close releases the runtime resources.
func (r *Runtime) Close() {
	if err := r.DB.Close(); err != nil {
		r.Logger.Error("failed to close database", "error", err.Error())
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// WorkerID generates a unique worker identity with a subsystem prefix.
func WorkerID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
