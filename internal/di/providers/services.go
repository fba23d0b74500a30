package providers

import (
	"github.com/samber/do/v2"

	"github.com/clipbox/clipbox/internal/backup"
	"github.com/clipbox/clipbox/internal/capture"
	"github.com/clipbox/clipbox/internal/logger"
	"github.com/clipbox/clipbox/internal/media/images"
	"github.com/clipbox/clipbox/internal/service"
	"github.com/clipbox/clipbox/internal/validation"
)

// CoordinatorHandle wraps the coordinator with shutdown capability.
type CoordinatorHandle struct {
	*service.Coordinator
}

// Shutdown implements do.Shutdownable.
func (h *CoordinatorHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideValidator provides the struct validator.
func ProvideValidator(_ do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideCoordinator provides the maintenance coordinator over every store.
func ProvideCoordinator(i do.Injector) (*CoordinatorHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	primary := do.MustInvoke[*PrimaryStoreHandle](i)
	ref := do.MustInvoke[*ReferenceStoreHandle](i)
	stage := do.MustInvoke[*StagingStoreHandle](i)
	storages := do.MustInvoke[*ImageStorages](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	v := do.MustInvoke[*validation.Validator](i)

	// Clip writes must reach the index.
	_ = do.MustInvoke[*SearchIndexHandle](i)

	c := service.NewCoordinator(service.Deps{
		Primary:       primary.Store,
		Reference:     ref.Store,
		Staging:       stage.Store,
		Images:        storages.Images,
		StagingImages: storages.Staging,
		Validator:     v,
		Events:        sseHandle.Manager,
		Logger:        log.Logger,
	})
	return &CoordinatorHandle{Coordinator: c}, nil
}

// ProvideCapturer provides the capture flow writing into the staging area.
// It never resolves the primary store or the primary blob store.
func ProvideCapturer(i do.Injector) (*capture.Capturer, error) {
	log := do.MustInvoke[*logger.Logger](i)
	ref := do.MustInvoke[*ReferenceStoreHandle](i)
	stage := do.MustInvoke[*StagingStoreHandle](i)
	staged := do.MustInvoke[*images.StagingStorage](i)
	processor := do.MustInvoke[*images.Processor](i)
	v := do.MustInvoke[*validation.Validator](i)

	return capture.New(stage.Store, staged, ref.Store, processor, v, log.Logger), nil
}

// ProvideExporter provides the archive exporter over the primary store.
// Both entity reads share one hold of the coordinator lock, so an archive
// never holds a pass's uncommitted records.
func ProvideExporter(i do.Injector) (*backup.Exporter, error) {
	log := do.MustInvoke[*logger.Logger](i)
	c := do.MustInvoke[*CoordinatorHandle](i)
	storages := do.MustInvoke[*ImageStorages](i)
	e := backup.NewExporter(c.Primary(), storages.Images, log.Logger)
	e.SetLocker(c.Coordinator)
	return e, nil
}
