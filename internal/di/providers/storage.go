package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/clipbox/clipbox/internal/config"
	"github.com/clipbox/clipbox/internal/logger"
	"github.com/clipbox/clipbox/internal/media/images"
)

// ImageStorages groups the blob stores.
type ImageStorages struct {
	Images  *images.Storage        // Primary blob store
	Staging *images.StagingStorage // Staging blob area
}

// ProvideImageStorages provides the primary blob store and the staging blob area.
func ProvideImageStorages(i do.Injector) (*ImageStorages, error) {
	cfg := do.MustInvoke[*config.Config](i)

	imgs, err := images.NewStorage(cfg.ImagesPath())
	if err != nil {
		return nil, fmt.Errorf("create image storage: %w", err)
	}
	staged := do.MustInvoke[*images.StagingStorage](i)

	return &ImageStorages{Images: imgs, Staging: staged}, nil
}

// ProvideStagingImageStorage provides the staging blob area alone, for
// callers that must not touch the primary stores.
func ProvideStagingImageStorage(i do.Injector) (*images.StagingStorage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	staged, err := images.NewStagingStorage(cfg.StagingImagesPath())
	if err != nil {
		return nil, fmt.Errorf("create staging image storage: %w", err)
	}
	return staged, nil
}

// ProvideImageProcessor provides the image processor.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return images.NewProcessor(log.Logger), nil
}
