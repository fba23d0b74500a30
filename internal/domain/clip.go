package domain

import (
	"sort"
	"time"
)

// Clip is a durable collection of clipped images owned by the primary store.
//
// Items are always kept sorted by ClipIndex ascending. Items 0, 1 and 2 are the
// primary, secondary and tertiary images used for thumbnail composition.
type Clip struct {
	ID           string     `json:"id"`
	Description  *string    `json:"description,omitempty"`
	Items        []ClipItem `json:"items"`
	Tags         []Tag      `json:"tags"`
	IsHidden     bool       `json:"is_hidden"`
	DataSize     int64      `json:"data_size"`
	RegisteredAt time.Time  `json:"registered_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ClipItem is one image of a clip.
type ClipItem struct {
	ID            string    `json:"id"`
	URL           *string   `json:"url,omitempty"`
	ClipID        string    `json:"clip_id"`
	ClipIndex     int       `json:"clip_index"`
	ImageID       string    `json:"image_id"`
	ImageFileName string    `json:"image_file_name"`
	ImageURL      *string   `json:"image_url,omitempty"`
	ImageWidth    int       `json:"image_width"`
	ImageHeight   int       `json:"image_height"`
	ImageSize     int64     `json:"image_size"`
	BlurHash      string    `json:"blur_hash,omitempty"`
	RegisteredAt  time.Time `json:"registered_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SortItems restores the ClipIndex ordering of Items.
func (c *Clip) SortItems() {
	SortClipItems(c.Items)
}

// SortClipItems sorts items by ClipIndex ascending.
func SortClipItems(items []ClipItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ClipIndex < items[j].ClipIndex
	})
}

// PrimaryItem returns the first item or nil.
func (c *Clip) PrimaryItem() *ClipItem { return c.itemAt(0) }

// SecondaryItem returns the second item or nil.
func (c *Clip) SecondaryItem() *ClipItem { return c.itemAt(1) }

// TertiaryItem returns the third item or nil.
func (c *Clip) TertiaryItem() *ClipItem { return c.itemAt(2) }

func (c *Clip) itemAt(i int) *ClipItem {
	if i < 0 || i >= len(c.Items) {
		return nil
	}
	return &c.Items[i]
}

// URL returns the source URL of the primary item, which is what the
// reference store mirrors for a clip.
func (c *Clip) URL() *string {
	if item := c.PrimaryItem(); item != nil {
		return item.URL
	}
	return nil
}

// TagIDs returns the ids of the clip's tags.
func (c *Clip) TagIDs() []string {
	return TagIDs(c.Tags)
}
