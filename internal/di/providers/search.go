package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/clipbox/clipbox/internal/config"
	"github.com/clipbox/clipbox/internal/logger"
	"github.com/clipbox/clipbox/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.ClipIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve clip index and subscribes it to
// primary-store clip writes.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	primary := do.MustInvoke[*PrimaryStoreHandle](i)

	index, err := search.NewClipIndex(search.Options{
		DataPath: cfg.SearchPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}
	primary.SetClipIndexer(index)

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{ClipIndex: index}, nil
}

// TriggerSearchReindexIfNeeded fills an empty index from the primary store.
// Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	index := do.MustInvoke[*SearchIndexHandle](i)
	primary := do.MustInvoke[*PrimaryStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	count, err := index.DocumentCount()
	if err != nil || count > 0 {
		return
	}

	go func() {
		ctx := context.Background()
		clips, err := primary.ReadAllClips(ctx)
		if err != nil {
			log.Error("Failed to read clips for reindex", "error", err)
			return
		}
		if len(clips) == 0 {
			return
		}
		if err := index.Reindex(ctx, clips); err != nil {
			log.Error("Search reindex failed", "error", err)
			return
		}
		log.Info("Search index rebuilt from primary store", "clips", len(clips))
	}()
}
