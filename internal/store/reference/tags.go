package reference

import (
	"context"

	"github.com/clipbox/clipbox/internal/domain"
)

// ReadAllTags returns every reference tag.
func (s *Store) ReadAllTags(_ context.Context) ([]*domain.ReferenceTag, error) {
	return s.tags.all(nil)
}

// ReadAllDirtyTags returns the tags holding unreconciled local edits.
func (s *Store) ReadAllDirtyTags(_ context.Context) ([]*domain.ReferenceTag, error) {
	return s.tags.all(func(t *domain.ReferenceTag) bool { return t.IsDirty })
}

// CreateTags inserts tags as given, dirty flag included.
func (s *Store) CreateTags(_ context.Context, tags []*domain.ReferenceTag) error {
	return s.tags.createAll(tags)
}

// UpdateTagName renames a tag.
func (s *Store) UpdateTagName(_ context.Context, id, name string) error {
	return s.tags.modify(id, func(t *domain.ReferenceTag) { t.Name = name })
}

// UpdateTagHidden sets the hidden flag of a tag.
func (s *Store) UpdateTagHidden(_ context.Context, id string, hidden bool) error {
	return s.tags.modify(id, func(t *domain.ReferenceTag) { t.IsHidden = hidden })
}

// CleanTags clears the dirty flag of the given tags.
func (s *Store) CleanTags(_ context.Context, ids []string) error {
	for _, id := range ids {
		if err := s.tags.modify(id, func(t *domain.ReferenceTag) { t.IsDirty = false }); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTags removes tags. Missing ids are ignored.
func (s *Store) DeleteTags(_ context.Context, ids []string) error {
	return s.tags.deleteAll(ids)
}
