package providers

import (
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/clipbox/clipbox/internal/api"
	"github.com/clipbox/clipbox/internal/capture"
	"github.com/clipbox/clipbox/internal/config"
	"github.com/clipbox/clipbox/internal/logger"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := shutdownContext()
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	coordinator := do.MustInvoke[*CoordinatorHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	limiter := do.MustInvoke[*TriggerLimiter](i)
	capturer := do.MustInvoke[*capture.Capturer](i)

	handler := api.NewServer(api.Options{
		Coordinator:    coordinator.Coordinator,
		Capturer:       capturer,
		Search:         index.ClipIndex,
		SSEManager:     sseHandle.Manager,
		Limiter:        limiter.Keyed,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
