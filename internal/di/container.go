// Package di provides dependency injection configuration for the ClipBox daemon.
package di

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/clipbox/clipbox/internal/config"
	"github.com/clipbox/clipbox/internal/di/providers"
	"github.com/clipbox/clipbox/internal/logger"
	"github.com/clipbox/clipbox/internal/media/images"
	"github.com/clipbox/clipbox/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
// args are parsed into the configuration.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, providers.Args(args))
	do.ProvideValue(injector, providers.LogOutput{Writer: os.Stdout})

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Store layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvidePrimaryStore)
	do.Provide(injector, providers.ProvideReferenceStore)
	do.Provide(injector, providers.ProvideStagingStore)

	// Blob storage
	do.Provide(injector, providers.ProvideStagingImageStorage)
	do.Provide(injector, providers.ProvideImageStorages)
	do.Provide(injector, providers.ProvideImageProcessor)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Services
	do.Provide(injector, providers.ProvideCoordinator)
	do.Provide(injector, providers.ProvideCapturer)
	do.Provide(injector, providers.ProvideExporter)

	// Workers
	do.Provide(injector, providers.ProvideTriggerLimiter)
	do.Provide(injector, providers.ProvideFileWatcher)
	do.Provide(injector, providers.ProvideMaintenanceLoop)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. Invocation order matters only for
// startup logging; the container resolves dependencies itself.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)

	for _, invoke := range []func() error{
		invokeErr[*providers.SSEManagerHandle](injector),
		invokeErr[*providers.PrimaryStoreHandle](injector),
		invokeErr[*providers.ReferenceStoreHandle](injector),
		invokeErr[*providers.StagingStoreHandle](injector),
		invokeErr[*providers.ImageStorages](injector),
		invokeErr[*images.Processor](injector),
		invokeErr[*providers.SearchIndexHandle](injector),
		invokeErr[*providers.CoordinatorHandle](injector),
		invokeErr[*providers.FileWatcherHandle](injector),
		invokeErr[*providers.MaintenanceLoop](injector),
		invokeErr[*providers.HTTPServerHandle](injector),
	} {
		if err := invoke(); err != nil {
			return err
		}
	}

	providers.TriggerSearchReindexIfNeeded(injector)
	return nil
}

func invokeErr[T any](injector do.Injector) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
