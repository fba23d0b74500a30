package images

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/clipbox/clipbox/internal/store"
)

// StagingStorage is the staging blob area: {root}/{clipID}/{fileName}.
// It is shared with the capture flow and is not transactional.
type StagingStorage struct {
	root string
	mu   sync.Mutex
}

var _ store.TemporaryImageStorage = (*StagingStorage)(nil)

// NewStagingStorage creates the staging blob area rooted at root.
func NewStagingStorage(root string) (*StagingStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("staging path cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging images directory: %w", err)
	}
	return &StagingStorage{root: root}, nil
}

// Root returns the directory holding every staged image.
func (s *StagingStorage) Root() string { return s.root }

// Save writes image bytes for a clip, replacing any previous file.
func (s *StagingStorage) Save(clipID, fileName string, data []byte) error {
	path, err := s.path(clipID, fileName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create clip directory: %w", err)
	}
	return writeFileAtomic(path, data)
}

// Read returns staged bytes, or store.ErrNotFound when the file is absent.
func (s *StagingStorage) Read(clipID, fileName string) ([]byte, error) {
	path, err := s.path(clipID, fileName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, store.ErrNotFound.WithCause(fmt.Errorf("staged image %s/%s", clipID, fileName))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read staged image: %w", err)
	}
	return data, nil
}

// Delete removes one staged image. Missing files are ignored.
func (s *StagingStorage) Delete(clipID, fileName string) error {
	path, err := s.path(clipID, fileName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete staged image: %w", err)
	}
	return nil
}

// DeleteAll removes the staging directory of a clip.
func (s *StagingStorage) DeleteAll(clipID string) error {
	if err := validateID(clipID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.root, clipID)); err != nil {
		return fmt.Errorf("failed to delete clip directory: %w", err)
	}
	return nil
}

// DeleteAllInStaging removes every staged image, keeping the root.
func (s *StagingStorage) DeleteAllInStaging() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to list staging images: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return fmt.Errorf("failed to delete %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *StagingStorage) path(clipID, fileName string) (string, error) {
	if err := validateID(clipID); err != nil {
		return "", err
	}
	if err := validateID(fileName); err != nil {
		return "", err
	}
	return filepath.Join(s.root, clipID, fileName), nil
}
