package domain

import "time"

// Tag is a user-defined label owned by the primary store.
// Names are unique after normalization; the primary store enforces it on create.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsHidden  bool      `json:"is_hidden"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (t *Tag) Touch() {
	t.UpdatedAt = time.Now()
}

// TagIDs returns the ids of the given tags in order.
func TagIDs(tags []Tag) []string {
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}
