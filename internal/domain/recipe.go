package domain

import "time"

// ClipRecipe is a clip captured into the staging store that the primary
// store has not absorbed yet. Recipes are written once by the capture flow and
// deleted once by migration; they are never mutated in between.
type ClipRecipe struct {
	ID           string           `json:"id" validate:"required,uuid"`
	Description  *string          `json:"description,omitempty" validate:"omitempty,max=4096"`
	Items        []ClipItemRecipe `json:"items" validate:"dive"`
	TagIDs       []string         `json:"tag_ids" validate:"unique,dive,required"`
	IsHidden     bool             `json:"is_hidden"`
	DataSize     int64            `json:"data_size" validate:"gte=0"`
	RegisteredAt time.Time        `json:"registered_at" validate:"required"`
	UpdatedAt    time.Time        `json:"updated_at" validate:"required"`
}

// ClipItemRecipe is a staged ClipItem. Its image bytes live in the staging
// blob area under (ClipID, ImageFileName).
type ClipItemRecipe struct {
	ID            string    `json:"id" validate:"required,uuid"`
	URL           *string   `json:"url,omitempty" validate:"omitempty,url"`
	ClipID        string    `json:"clip_id" validate:"required"`
	ClipIndex     int       `json:"clip_index" validate:"gte=0"`
	ImageID       string    `json:"image_id" validate:"required,uuid"`
	ImageFileName string    `json:"image_file_name" validate:"required,max=255,basename"`
	ImageURL      *string   `json:"image_url,omitempty" validate:"omitempty,url"`
	ImageWidth    int       `json:"image_width" validate:"gte=0"`
	ImageHeight   int       `json:"image_height" validate:"gte=0"`
	ImageSize     int64     `json:"image_size" validate:"gte=0"`
	BlurHash      string    `json:"blur_hash,omitempty"`
	RegisteredAt  time.Time `json:"registered_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clip converts the recipe into a primary Clip. Tags carry ids only; the
// primary store resolves them on create.
func (r *ClipRecipe) Clip() *Clip {
	items := make([]ClipItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, it.ClipItem())
	}
	SortClipItems(items)

	tags := make([]Tag, 0, len(r.TagIDs))
	for _, tagID := range r.TagIDs {
		tags = append(tags, Tag{ID: tagID})
	}

	return &Clip{
		ID:           r.ID,
		Description:  r.Description,
		Items:        items,
		Tags:         tags,
		IsHidden:     r.IsHidden,
		DataSize:     r.DataSize,
		RegisteredAt: r.RegisteredAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ClipItem converts the recipe item into a primary ClipItem.
func (r *ClipItemRecipe) ClipItem() ClipItem {
	return ClipItem{
		ID:            r.ID,
		URL:           r.URL,
		ClipID:        r.ClipID,
		ClipIndex:     r.ClipIndex,
		ImageID:       r.ImageID,
		ImageFileName: r.ImageFileName,
		ImageURL:      r.ImageURL,
		ImageWidth:    r.ImageWidth,
		ImageHeight:   r.ImageHeight,
		ImageSize:     r.ImageSize,
		BlurHash:      r.BlurHash,
		RegisteredAt:  r.RegisteredAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// ImageContainer is the unit moved between the staging blob area and the
// primary blob store.
type ImageContainer struct {
	ID   string
	Data []byte
}
