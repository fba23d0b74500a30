package domain

import "time"

// Album groups clips in a user-defined order.
type Album struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	IsHidden  bool      `json:"is_hidden"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AlbumItem links a clip into an album at a position.
// The remote sync layer may fork links during merge, leaving several items
// for the same (AlbumID, ClipID) pair; deduplication collapses them.
type AlbumItem struct {
	ID        string    `json:"id"`
	AlbumID   string    `json:"album_id"`
	ClipID    string    `json:"clip_id"`
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"created_at"`
}
