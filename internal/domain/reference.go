package domain

import "time"

// ReferenceTag is the reference-store mirror of a Tag.
//
// IsDirty marks a local edit (usually from the capture flow) that has not been
// pushed into the primary store yet. Dirty records are never overwritten or
// pruned by reconciliation; only a successful push clears the flag.
type ReferenceTag struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsHidden bool   `json:"is_hidden"`
	IsDirty  bool   `json:"is_dirty"`
}

// ReferenceClip is the reference-store mirror of a Clip.
// Tags are referenced by id only. IsDirty follows the ReferenceTag rule.
type ReferenceClip struct {
	ID           string    `json:"id"`
	URL          *string   `json:"url,omitempty"`
	Description  *string   `json:"description,omitempty"`
	TagIDs       []string  `json:"tag_ids"`
	IsHidden     bool      `json:"is_hidden"`
	RegisteredAt time.Time `json:"registered_at"`
	IsDirty      bool      `json:"is_dirty"`
}

// NewReferenceTag mirrors a primary tag as a clean reference record.
func NewReferenceTag(t *Tag) *ReferenceTag {
	return &ReferenceTag{
		ID:       t.ID,
		Name:     t.Name,
		IsHidden: t.IsHidden,
	}
}

// NewReferenceClip mirrors a primary clip as a clean reference record.
func NewReferenceClip(c *Clip) *ReferenceClip {
	return &ReferenceClip{
		ID:           c.ID,
		URL:          c.URL(),
		Description:  c.Description,
		TagIDs:       c.TagIDs(),
		IsHidden:     c.IsHidden,
		RegisteredAt: c.RegisteredAt,
	}
}
