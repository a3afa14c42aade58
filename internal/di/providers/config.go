// Package providers contains dependency injection providers for the reading engine server.
package providers

import (
	"log/slog"
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/readtrack-server/internal/config"
	"github.com/listenupapp/readtrack-server/internal/logger"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
const shutdownTimeout = 30 * time.Second

// ProvideConfig provides the application configuration from the process
// arguments and environment.
func ProvideConfig(_ do.Injector) (*config.Config, error) {
	return config.LoadConfig(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting ReadTrack server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_dir", cfg.App.DataDir,
		"activity_backend", cfg.Activity.Backend,
		"time_zone", cfg.Engine.TimeZone,
	)

	return log, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
