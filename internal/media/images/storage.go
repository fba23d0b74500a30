// Package images provides the ClipBox blob stores and image probing.
//
// Storage is the transactional primary blob store keyed by image id.
// StagingStorage is the non-transactional staging blob area keyed by
// (clip id, image file name).
package images

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/store"
)

const pendingDir = ".pending"

// Storage manages image filesystem operations for the primary blob store.
// Thread-safe for concurrent operations.
//
// While a transaction is open, created images are written under a pending
// directory and deletions are recorded; commit renames pending files into
// place and applies deletions, cancel removes the pending files.
type Storage struct {
	basePath string
	mu       sync.RWMutex // Protects file operations and tx
	tx       *pendingTx
}

type pendingTx struct {
	writes  map[string]bool // image id -> written under pendingDir
	deletes map[string]bool
}

var _ store.ImageStorage = (*Storage)(nil)

// NewStorage creates a Storage rooted at basePath (e.g. ~/ClipBox/images).
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	// Leftovers of an interrupted transaction are never committed.
	if err := os.RemoveAll(filepath.Join(basePath, pendingDir)); err != nil {
		return nil, fmt.Errorf("failed to clear pending images: %w", err)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	return &Storage{basePath: basePath}, nil
}

// BeginTransaction starts grouping writes.
func (s *Storage) BeginTransaction(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return store.ErrTransactionInProgress
	}
	if err := os.MkdirAll(filepath.Join(s.basePath, pendingDir), 0o755); err != nil {
		return fmt.Errorf("failed to create pending directory: %w", err)
	}
	s.tx = &pendingTx{writes: make(map[string]bool), deletes: make(map[string]bool)}
	return nil
}

// CommitTransaction moves pending images into place and applies deletions.
// On failure the remaining pending files are discarded.
func (s *Storage) CommitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return store.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil

	var errs []error
	for id := range tx.deletes {
		if err := os.Remove(s.Path(id)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("delete image %s: %w", id, err))
		}
	}
	for id := range tx.writes {
		if err := os.Rename(s.pendingPath(id), s.Path(id)); err != nil {
			errs = append(errs, fmt.Errorf("commit image %s: %w", id, err))
		}
	}
	_ = os.RemoveAll(filepath.Join(s.basePath, pendingDir))

	return errors.Join(errs...)
}

// CancelTransactionIfNeeded discards pending images.
func (s *Storage) CancelTransactionIfNeeded() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	s.tx = nil
	if err := os.RemoveAll(filepath.Join(s.basePath, pendingDir)); err != nil {
		return fmt.Errorf("failed to discard pending images: %w", err)
	}
	return nil
}

// Create stores image bytes under the container id.
func (s *Storage) Create(_ context.Context, img *domain.ImageContainer) error {
	if err := validateID(img.ID); err != nil {
		return err
	}
	if len(img.Data) == 0 {
		return store.ErrInvalidInput.WithMessage("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		if err := os.WriteFile(s.pendingPath(img.ID), img.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write image file: %w", err)
		}
		s.tx.writes[img.ID] = true
		delete(s.tx.deletes, img.ID)
		return nil
	}

	return writeFileAtomic(s.Path(img.ID), img.Data)
}

// Read returns the bytes of an image.
// Returns store.ErrNotFound if it does not exist.
func (s *Storage) Read(_ context.Context, id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.Path(id)
	if s.tx != nil {
		if s.tx.deletes[id] {
			return nil, store.ErrNotFound
		}
		if s.tx.writes[id] {
			path = s.pendingPath(id)
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, store.ErrNotFound.WithCause(fmt.Errorf("image %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// Exists checks if an image exists.
func (s *Storage) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Read(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes an image. Deleting a missing image is not an error.
func (s *Storage) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		if s.tx.writes[id] {
			_ = os.Remove(s.pendingPath(id))
			delete(s.tx.writes, id)
		}
		s.tx.deletes[id] = true
		return nil
	}

	if err := os.Remove(s.Path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// Hash computes the SHA256 hash of an image.
// Returns hex-encoded string for ETag/cache validation.
func (s *Storage) Hash(ctx context.Context, id string) (string, error) {
	data, err := s.Read(ctx, id)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// Path returns the committed filesystem path of an image.
func (s *Storage) Path(id string) string {
	return filepath.Join(s.basePath, id)
}

func (s *Storage) pendingPath(id string) string {
	return filepath.Join(s.basePath, pendingDir, id)
}

// validateID rejects ids that could escape the storage directory.
func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return store.ErrInvalidInput.WithMessage(fmt.Sprintf("invalid image id %q", id))
	}
	return nil
}

// writeFileAtomic writes data to a temp file next to path and renames it.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move image file: %w", err)
	}
	return nil
}
