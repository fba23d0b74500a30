// Package reference implements the reference store: the Badger-backed
// mirror of primary tags and clips that carries a dirty flag per record.
package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/store"
)

// Store wraps a Badger database instance.
//
// At most one explicit transaction is open at a time. While it is open every
// read and write runs inside it, so reads observe uncommitted writes.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu  sync.Mutex
	txn *badger.Txn

	tags  *collection[domain.ReferenceTag]
	clips *collection[domain.ReferenceClip]
}

var _ store.ReferenceClipStorage = (*Store)(nil)

// Open opens the reference store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return open(opts, logger)
}

// OpenInMemory opens a reference store that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.tags = newCollection(s, "rtag:", func(t *domain.ReferenceTag) string { return t.ID })
	s.clips = newCollection(s, "rclip:", func(c *domain.ReferenceClip) string { return c.ID })

	logger.Debug("reference store opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return s, nil
}

// Close discards any open transaction and closes the database.
func (s *Store) Close() error {
	_ = s.CancelTransactionIfNeeded()
	return s.db.Close()
}

// BeginTransaction opens the explicit transaction.
func (s *Store) BeginTransaction(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txn != nil {
		return store.ErrTransactionInProgress
	}
	s.txn = s.db.NewTransaction(true)
	return nil
}

// CommitTransaction commits the explicit transaction.
func (s *Store) CommitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txn == nil {
		return store.ErrNoTransaction
	}
	txn := s.txn
	s.txn = nil
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit reference transaction: %w", err)
	}
	return nil
}

// CancelTransactionIfNeeded discards the explicit transaction if one is open.
func (s *Store) CancelTransactionIfNeeded() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txn != nil {
		s.txn.Discard()
		s.txn = nil
	}
	return nil
}

// view runs fn in the open transaction, or in a read-only one.
func (s *Store) view(fn func(txn *badger.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txn != nil {
		return fn(s.txn)
	}
	return s.db.View(fn)
}

// update runs fn in the open transaction, or in a read-write one that is
// committed when fn succeeds.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txn != nil {
		return fn(s.txn)
	}
	return s.db.Update(fn)
}

// isNotFound reports whether err is Badger's missing-key error.
func isNotFound(err error) bool {
	return errors.Is(err, badger.ErrKeyNotFound)
}
