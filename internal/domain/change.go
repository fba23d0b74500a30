package domain

import "slices"

// ChangeSet reports identities touched by a remote change feed delivery.
type ChangeSet struct {
	Inserted []string `json:"inserted,omitempty"`
	Updated  []string `json:"updated,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
}

// IsEmpty reports whether nothing changed.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Inserted) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Touched returns the inserted and updated ids, deduplicated, in first-seen order.
func (c ChangeSet) Touched() []string {
	out := make([]string, 0, len(c.Inserted)+len(c.Updated))
	for _, ids := range [][]string{c.Inserted, c.Updated} {
		for _, id := range ids {
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}

// RemoteChanges groups the change sets the sync layer reports per entity.
type RemoteChanges struct {
	Tags       ChangeSet `json:"tags"`
	AlbumItems ChangeSet `json:"album_items"`
}

// IsEmpty reports whether no entity changed.
func (r RemoteChanges) IsEmpty() bool {
	return r.Tags.IsEmpty() && r.AlbumItems.IsEmpty()
}

// RemoteBatch is a set of records delivered by the cloud sync layer. The
// primary store applies it without local uniqueness checks, so merged forks
// (two tags with one name, two links for one album/clip pair) can appear and
// are left for deduplication.
type RemoteBatch struct {
	Tags                []Tag       `json:"tags,omitempty"`
	DeletedTagIDs       []string    `json:"deleted_tag_ids,omitempty"`
	AlbumItems          []AlbumItem `json:"album_items,omitempty"`
	DeletedAlbumItemIDs []string    `json:"deleted_album_item_ids,omitempty"`
}
