package reference

import (
	"context"
	"slices"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
)

// ReadAllClips returns every reference clip.
func (s *Store) ReadAllClips(_ context.Context) ([]*domain.ReferenceClip, error) {
	return s.clips.all(nil)
}

// CreateClips inserts clips as given, dirty flag included.
func (s *Store) CreateClips(_ context.Context, clips []*domain.ReferenceClip) error {
	return s.clips.createAll(clips)
}

// UpdateClipURL sets the URL of a clip.
func (s *Store) UpdateClipURL(_ context.Context, id string, url *string) error {
	return s.clips.modify(id, func(c *domain.ReferenceClip) { c.URL = url })
}

// UpdateClipDescription sets the description of a clip.
func (s *Store) UpdateClipDescription(_ context.Context, id string, description *string) error {
	return s.clips.modify(id, func(c *domain.ReferenceClip) { c.Description = description })
}

// UpdateClipHidden sets the hidden flag of a clip.
func (s *Store) UpdateClipHidden(_ context.Context, id string, hidden bool) error {
	return s.clips.modify(id, func(c *domain.ReferenceClip) { c.IsHidden = hidden })
}

// UpdateClipTagIDs replaces the tag references of a clip.
func (s *Store) UpdateClipTagIDs(_ context.Context, id string, tagIDs []string) error {
	return s.clips.modify(id, func(c *domain.ReferenceClip) { c.TagIDs = slices.Clone(tagIDs) })
}

// UpdateClipRegisteredAt sets the registration date of a clip.
func (s *Store) UpdateClipRegisteredAt(_ context.Context, id string, registeredAt time.Time) error {
	return s.clips.modify(id, func(c *domain.ReferenceClip) { c.RegisteredAt = registeredAt })
}

// DeleteClips removes clips. Missing ids are ignored.
func (s *Store) DeleteClips(_ context.Context, ids []string) error {
	return s.clips.deleteAll(ids)
}
