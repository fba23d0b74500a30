// Package providers contains dependency injection providers for the ClipBox daemon.
package providers

import (
	"io"

	"github.com/samber/do/v2"

	"github.com/clipbox/clipbox/internal/config"
	"github.com/clipbox/clipbox/internal/logger"
)

// Args are the command-line arguments the configuration is parsed from.
type Args []string

// LogOutput is where log records go when no log file is configured.
type LogOutput struct {
	io.Writer
}

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	args := do.MustInvoke[Args](i)
	return config.LoadConfig(args)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	out := do.MustInvoke[LogOutput](i)

	log := logger.New(logger.Config{
		Writer:      out.Writer,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
		FilePath:    cfg.Logger.FilePath,
	})

	log.Info("Starting ClipBox daemon",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.BasePath,
		"staging_path", cfg.Storage.StagingPath,
	)

	return log, nil
}
