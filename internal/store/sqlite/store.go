// Package sqlite implements the ClipBox primary store on SQLite.
package sqlite

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/clipbox/clipbox/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed persistence of tags, clips and albums.
// It implements store.ClipStorage.
type Store struct {
	*TxDB
	logger  *slog.Logger
	indexer store.ClipIndexer
}

var _ store.ClipStorage = (*Store)(nil)

// Open creates a new primary store at the given path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := OpenDB(path, schemaSQL)
	if err != nil {
		return nil, fmt.Errorf("open primary store: %w", err)
	}

	return &Store{
		TxDB:    NewTxDB(db),
		logger:  logger,
		indexer: store.NoopClipIndexer{},
	}, nil
}

// SetClipIndexer sets the indexer notified after clip writes are committed.
func (s *Store) SetClipIndexer(indexer store.ClipIndexer) {
	s.indexer = indexer
}
