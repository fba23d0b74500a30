// Package search provides full-text search over clips using Bleve.
// The primary store feeds the index after clip writes commit.
package search

import (
	"github.com/clipbox/clipbox/internal/domain"
)

// ClipDocument is the indexed form of a clip.
//
// Tag names and item URLs are denormalized so one query matches a clip by
// its description, its tags or where its images came from.
type ClipDocument struct {
	ID           string
	Description  string
	Tags         []string
	URLs         []string
	Hidden       bool
	ItemCount    int
	RegisteredAt int64 // Unix millis
	UpdatedAt    int64 // Unix millis
}

// NewClipDocument builds the document for a clip.
func NewClipDocument(c *domain.Clip) *ClipDocument {
	doc := &ClipDocument{
		ID:           c.ID,
		Hidden:       c.IsHidden,
		ItemCount:    len(c.Items),
		RegisteredAt: c.RegisteredAt.UnixMilli(),
		UpdatedAt:    c.UpdatedAt.UnixMilli(),
	}
	if c.Description != nil {
		doc.Description = *c.Description
	}
	for _, t := range c.Tags {
		if t.Name != "" {
			doc.Tags = append(doc.Tags, t.Name)
		}
	}
	for _, item := range c.Items {
		if item.URL != nil && *item.URL != "" {
			doc.URLs = append(doc.URLs, *item.URL)
		}
	}
	return doc
}

// ToMap converts the document to a map keyed by the mapping's field names.
func (d *ClipDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":            d.ID,
		"hidden":        d.Hidden,
		"item_count":    d.ItemCount,
		"registered_at": d.RegisteredAt,
		"updated_at":    d.UpdatedAt,
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if len(d.URLs) > 0 {
		m["urls"] = d.URLs
	}
	return m
}
