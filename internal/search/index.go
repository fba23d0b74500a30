package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/logger"
)

// ClipIndex wraps a Bleve index of clips. It implements store.ClipIndexer.
//
// All methods are safe for concurrent use. The mutex guards the index
// handle against Rebuild swapping it out.
type ClipIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the clip index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Uses a discard logger if nil
}

// mappingVersion is bumped whenever buildIndexMapping changes; a mismatch
// on open rebuilds the index.
const mappingVersion = "1"

const batchSize = 500

// NewClipIndex opens the index under opts.DataPath, creating it when
// missing. An index that fails to open or carries an outdated mapping is
// removed and recreated empty; callers repopulate it with Reindex.
func NewClipIndex(opts Options) (*ClipIndex, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	indexPath := filepath.Join(opts.DataPath, "clips.bleve")
	versionPath := filepath.Join(opts.DataPath, "clips.version")

	var index bleve.Index
	needsRebuild := false

	indexExists := false
	if _, err := os.Stat(indexPath); err == nil {
		indexExists = true
	}

	if indexExists {
		existing, err := os.ReadFile(versionPath)
		switch {
		case err != nil:
			log.Info("search index has no version file, will rebuild", "new_version", mappingVersion)
			needsRebuild = true
		case string(existing) != mappingVersion:
			log.Info("search index mapping version changed, will rebuild",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		var err error
		index, err = bleve.Open(indexPath)
		if err != nil {
			log.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index = nil
	}

	if index == nil {
		if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			log.Warn("failed to write search version file", "error", err)
		}
		log.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		log.Info("opened existing search index", "path", indexPath)
	}

	return &ClipIndex{index: index, path: indexPath, logger: log}, nil
}

// Close closes the index.
func (s *ClipIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexClip adds or replaces a clip's document.
func (s *ClipIndex) IndexClip(_ context.Context, clip *domain.Clip) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := NewClipDocument(clip)
	return s.index.Index(doc.ID, doc.ToMap())
}

// DeleteClip removes a clip's document. Deleting an unknown id is not an error.
func (s *ClipIndex) DeleteClip(_ context.Context, clipID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(clipID)
}

// Reindex indexes clips in batches.
func (s *ClipIndex) Reindex(ctx context.Context, clips []*domain.Clip) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := 0; i < len(clips); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(clips))

		batch := s.index.NewBatch()
		for _, c := range clips[i:end] {
			doc := NewClipDocument(c)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DocumentCount returns the number of indexed clips.
func (s *ClipIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and indexes clips into a fresh one. It blocks
// every other index operation while it runs.
func (s *ClipIndex) Rebuild(ctx context.Context, clips []*domain.Clip) error {
	s.mu.Lock()
	if err := s.index.Close(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("remove index: %w", err)
	}
	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index
	s.mu.Unlock()

	s.logger.Info("rebuilt search index", "path", s.path, "clips", len(clips))
	return s.Reindex(ctx, clips)
}
