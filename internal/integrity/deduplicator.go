package integrity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/store"
)

// Deduplicator collapses records the sync layer forked during a merge.
// It runs before reconciliation when remote tag or album-item changes arrive.
type Deduplicator struct {
	primary store.ClipStorage
	logger  *slog.Logger
}

// NewDeduplicator creates a deduplicator.
func NewDeduplicator(primary store.ClipStorage, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{primary: primary, logger: logger}
}

// DeduplicateTags collapses tags sharing a normalized name with any inserted
// or updated tag.
func (d *Deduplicator) DeduplicateTags(ctx context.Context, changes domain.ChangeSet) error {
	ids := changes.Touched()
	if len(ids) == 0 {
		return nil
	}
	if err := d.primary.DeduplicateTags(ctx, ids); err != nil {
		d.logger.Error("failed to deduplicate tags", "tag_ids", ids, "error", err)
		return fmt.Errorf("deduplicate tags: %w", err)
	}
	d.logger.Debug("tags deduplicated", "count", len(ids))
	return nil
}

// DeduplicateAlbumItems collapses album items sharing an (album, clip) pair
// with any inserted or updated item.
func (d *Deduplicator) DeduplicateAlbumItems(ctx context.Context, changes domain.ChangeSet) error {
	ids := changes.Touched()
	if len(ids) == 0 {
		return nil
	}
	if err := d.primary.DeduplicateAlbumItems(ctx, ids); err != nil {
		d.logger.Error("failed to deduplicate album items", "album_item_ids", ids, "error", err)
		return fmt.Errorf("deduplicate album items: %w", err)
	}
	d.logger.Debug("album items deduplicated", "count", len(ids))
	return nil
}
