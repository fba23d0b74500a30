package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/clipbox/clipbox/internal/config"
	"github.com/clipbox/clipbox/internal/logger"
	"github.com/clipbox/clipbox/internal/sse"
	"github.com/clipbox/clipbox/internal/store/reference"
	"github.com/clipbox/clipbox/internal/store/sqlite"
	"github.com/clipbox/clipbox/internal/store/staging"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := shutdownContext()
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{Manager: manager, cancel: cancel}, nil
}

// PrimaryStoreHandle wraps the primary SQLite store with shutdown capability.
type PrimaryStoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *PrimaryStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvidePrimaryStore provides the primary store.
func ProvidePrimaryStore(i do.Injector) (*PrimaryStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.PrimaryDBPath(), log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("Primary store initialized", "path", cfg.PrimaryDBPath())
	return &PrimaryStoreHandle{Store: db}, nil
}

// ReferenceStoreHandle wraps the Badger reference store with shutdown capability.
type ReferenceStoreHandle struct {
	*reference.Store
}

// Shutdown implements do.Shutdownable.
func (h *ReferenceStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideReferenceStore provides the reference store.
func ProvideReferenceStore(i do.Injector) (*ReferenceStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := reference.Open(cfg.ReferencePath(), log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("Reference store initialized", "path", cfg.ReferencePath())
	return &ReferenceStoreHandle{Store: db}, nil
}

// StagingStoreHandle wraps the staging SQLite store with shutdown capability.
type StagingStoreHandle struct {
	*staging.Store
}

// Shutdown implements do.Shutdownable.
func (h *StagingStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStagingStore provides the staging store.
func ProvideStagingStore(i do.Injector) (*StagingStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := staging.Open(cfg.StagingDBPath(), log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("Staging store initialized", "path", cfg.StagingDBPath())
	return &StagingStoreHandle{Store: db}, nil
}
