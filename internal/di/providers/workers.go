package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/clipbox/clipbox/internal/config"
	"github.com/clipbox/clipbox/internal/logger"
	"github.com/clipbox/clipbox/internal/ratelimit"
	"github.com/clipbox/clipbox/internal/service"
	"github.com/clipbox/clipbox/internal/watcher"
)

// FileWatcherHandle wraps the staging watcher with shutdown capability.
// Watcher is nil when watching is disabled.
type FileWatcherHandle struct {
	Watcher *watcher.Watcher
	cancel  context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideFileWatcher provides the fsnotify watcher on the staging area.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	// The staging directories must exist before they are watched.
	_ = do.MustInvoke[*StagingStoreHandle](i)
	_ = do.MustInvoke[*ImageStorages](i)

	if !cfg.Maintenance.WatchStaging {
		log.Info("Staging watcher disabled by configuration")
		return &FileWatcherHandle{}, nil
	}

	w, err := watcher.New(log.Logger, watcher.StagingOptions(250*time.Millisecond))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(cfg.Storage.StagingPath); err != nil {
		_ = w.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("Staging watcher stopped", "error", err)
		}
	}()

	log.Info("Staging watcher started", "path", cfg.Storage.StagingPath)
	return &FileWatcherHandle{Watcher: w, cancel: cancel}, nil
}

// TriggerLimiter is the limiter shared by maintenance triggers and the API.
type TriggerLimiter struct {
	*ratelimit.Keyed
}

// ProvideTriggerLimiter provides the keyed trigger limiter.
func ProvideTriggerLimiter(i do.Injector) (*TriggerLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &TriggerLimiter{Keyed: ratelimit.New(cfg.Maintenance.TriggerRate, 1)}, nil
}

// MaintenanceLoop runs the coordinator's foreground and watcher triggers.
type MaintenanceLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable. It waits for the pass in flight.
func (l *MaintenanceLoop) Shutdown() error {
	l.cancel()
	select {
	case <-l.done:
	case <-time.After(shutdownTimeout):
	}
	return nil
}

// ProvideMaintenanceLoop starts the coordinator loop in the background.
func ProvideMaintenanceLoop(i do.Injector) (*MaintenanceLoop, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	coordinator := do.MustInvoke[*CoordinatorHandle](i)
	watcherHandle := do.MustInvoke[*FileWatcherHandle](i)
	limiter := do.MustInvoke[*TriggerLimiter](i)

	ctx, cancel := context.WithCancel(context.Background())
	loop := &MaintenanceLoop{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(loop.done)
		err := coordinator.Run(ctx, service.RunOptions{
			ForegroundInterval: cfg.Maintenance.ForegroundInterval,
			Limiter:            limiter.Keyed,
			Watcher:            watcherHandle.Watcher,
		})
		if err != nil {
			log.Error("Maintenance loop stopped", "error", err)
		}
	}()

	log.Info("Maintenance loop started", "foreground_interval", cfg.Maintenance.ForegroundInterval)
	return loop, nil
}
