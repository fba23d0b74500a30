// Package store defines the storage contracts shared by the ClipBox engines.
//
// Every backing engine (primary, reference, staging, blob) implements one of
// the interfaces below plus Transactional. The reconciliation and migration
// engines depend only on these interfaces.
package store

import (
	"context"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
)

// Transactional is implemented by every store that can group writes.
//
// While a transaction is open every write of that store participates in it
// and reads observe the store's own uncommitted writes. Transactions of
// different stores are independent; TransactionSet sequences them.
type Transactional interface {
	// BeginTransaction returns ErrTransactionInProgress if one is already open.
	BeginTransaction(ctx context.Context) error
	// CommitTransaction returns ErrNoTransaction if none is open.
	CommitTransaction() error
	// CancelTransactionIfNeeded rolls back the open transaction, if any.
	CancelTransactionIfNeeded() error
}

// ClipStorage is the primary store of tags, clips and albums.
type ClipStorage interface {
	Transactional

	ReadAllTags(ctx context.Context) ([]*domain.Tag, error)
	ReadAllClips(ctx context.Context) ([]*domain.Clip, error)
	ReadTag(ctx context.Context, id string) (*domain.Tag, error)
	ReadClip(ctx context.Context, id string) (*domain.Clip, error)

	// CreateTag returns ErrDuplicateName when a tag with the same normalized
	// name exists, and ErrAlreadyExists when the id is taken.
	CreateTag(ctx context.Context, tag *domain.Tag) error
	// CreateClip stores the clip, its items and its links to existing tags.
	// Tag ids unknown to the primary store are dropped.
	CreateClip(ctx context.Context, clip *domain.Clip) error
	UpdateTagName(ctx context.Context, id, name string) error
	UpdateTagHidden(ctx context.Context, id string, hidden bool) error
	DeleteTags(ctx context.Context, ids []string) error
	DeleteClips(ctx context.Context, ids []string) error

	// DeduplicateTags collapses tags sharing a normalized name with any of
	// the given tags into the oldest one.
	DeduplicateTags(ctx context.Context, ids []string) error
	// DeduplicateAlbumItems collapses album items sharing an (album, clip)
	// pair with any of the given items.
	DeduplicateAlbumItems(ctx context.Context, ids []string) error

	// ApplyRemoteChanges upserts records delivered by the sync layer without
	// local uniqueness checks and reports what changed.
	ApplyRemoteChanges(ctx context.Context, batch *domain.RemoteBatch) (domain.RemoteChanges, error)
}

// ReferenceClipStorage is the lightweight mirror store with dirty flags.
type ReferenceClipStorage interface {
	Transactional

	ReadAllTags(ctx context.Context) ([]*domain.ReferenceTag, error)
	ReadAllDirtyTags(ctx context.Context) ([]*domain.ReferenceTag, error)
	ReadAllClips(ctx context.Context) ([]*domain.ReferenceClip, error)

	CreateTags(ctx context.Context, tags []*domain.ReferenceTag) error
	UpdateTagName(ctx context.Context, id, name string) error
	UpdateTagHidden(ctx context.Context, id string, hidden bool) error
	// CleanTags clears the dirty flag.
	CleanTags(ctx context.Context, ids []string) error
	DeleteTags(ctx context.Context, ids []string) error

	CreateClips(ctx context.Context, clips []*domain.ReferenceClip) error
	UpdateClipURL(ctx context.Context, id string, url *string) error
	UpdateClipDescription(ctx context.Context, id string, description *string) error
	UpdateClipHidden(ctx context.Context, id string, hidden bool) error
	UpdateClipTagIDs(ctx context.Context, id string, tagIDs []string) error
	UpdateClipRegisteredAt(ctx context.Context, id string, registeredAt time.Time) error
	DeleteClips(ctx context.Context, ids []string) error
}

// TemporaryClipStorage holds clip recipes written by the capture flow.
type TemporaryClipStorage interface {
	Transactional

	ReadAllClips(ctx context.Context) ([]*domain.ClipRecipe, error)
	CreateClip(ctx context.Context, recipe *domain.ClipRecipe) error
	DeleteClip(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// ImageStorage is the primary blob store, keyed by image id.
type ImageStorage interface {
	Transactional

	Create(ctx context.Context, image *domain.ImageContainer) error
	Read(ctx context.Context, id string) ([]byte, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// TemporaryImageStorage is the staging blob area, addressed by
// (clip id, image file name). It is not transactional.
type TemporaryImageStorage interface {
	Save(clipID, fileName string, data []byte) error
	// Read returns ErrNotFound when the image is absent.
	Read(clipID, fileName string) ([]byte, error)
	Delete(clipID, fileName string) error
	// DeleteAll removes the staging directory of one clip.
	DeleteAll(clipID string) error
	// DeleteAllInStaging removes every staged image.
	DeleteAllInStaging() error
}

// ClipIndexer keeps a search index in sync with primary-store clip writes.
type ClipIndexer interface {
	IndexClip(ctx context.Context, clip *domain.Clip) error
	DeleteClip(ctx context.Context, clipID string) error
}

// NoopClipIndexer is a no-op implementation for testing.
type NoopClipIndexer struct{}

// IndexClip is a no-op.
func (NoopClipIndexer) IndexClip(context.Context, *domain.Clip) error { return nil }

// DeleteClip is a no-op.
func (NoopClipIndexer) DeleteClip(context.Context, string) error { return nil }
