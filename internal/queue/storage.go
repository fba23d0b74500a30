package queue

import (
	"context"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/store"
)

// clipStorage routes every primary-store call through a Queue.
type clipStorage struct {
	q *Queue
	s store.ClipStorage
}

// WrapClipStorage returns a store.ClipStorage whose calls, transactions
// included, all run on q.
func WrapClipStorage(q *Queue, s store.ClipStorage) store.ClipStorage {
	return &clipStorage{q: q, s: s}
}

func (c *clipStorage) BeginTransaction(ctx context.Context) error {
	return c.q.Do(ctx, c.s.BeginTransaction)
}

// CommitTransaction and CancelTransactionIfNeeded take no context; they must
// run even when the caller's context is already done.
func (c *clipStorage) CommitTransaction() error {
	return c.q.Do(context.Background(), func(context.Context) error { return c.s.CommitTransaction() })
}

func (c *clipStorage) CancelTransactionIfNeeded() error {
	return c.q.Do(context.Background(), func(context.Context) error { return c.s.CancelTransactionIfNeeded() })
}

func (c *clipStorage) ReadAllTags(ctx context.Context) ([]*domain.Tag, error) {
	return Run(ctx, c.q, c.s.ReadAllTags)
}

func (c *clipStorage) ReadAllClips(ctx context.Context) ([]*domain.Clip, error) {
	return Run(ctx, c.q, c.s.ReadAllClips)
}

func (c *clipStorage) ReadTag(ctx context.Context, id string) (*domain.Tag, error) {
	return Run(ctx, c.q, func(ctx context.Context) (*domain.Tag, error) { return c.s.ReadTag(ctx, id) })
}

func (c *clipStorage) ReadClip(ctx context.Context, id string) (*domain.Clip, error) {
	return Run(ctx, c.q, func(ctx context.Context) (*domain.Clip, error) { return c.s.ReadClip(ctx, id) })
}

func (c *clipStorage) CreateTag(ctx context.Context, tag *domain.Tag) error {
	return c.q.Do(ctx, func(ctx context.Context) error { return c.s.CreateTag(ctx, tag) })
}

func (c *clipStorage) CreateClip(ctx context.Context, clip *domain.Clip) error {
	return c.q.Do(ctx, func(ctx context.Context) error { return c.s.CreateClip(ctx, clip) })
}

func (c *clipStorage) UpdateTagName(ctx context.Context, id, name string) error {
	return c.q.Do(ctx, func(ctx context.Context) error { return c.s.UpdateTagName(ctx, id, name) })
}

func (c *clipStorage) UpdateTagHidden(ctx context.Context, id string, hidden bool) error {
	return c.q.Do(ctx, func(ctx context.Context) error { return c.s.UpdateTagHidden(ctx, id, hidden) })
}

func (c *clipStorage) DeleteTags(ctx context.Context, ids []string) error {
	return c.q.Do(ctx, func(ctx context.Context) error { return c.s.DeleteTags(ctx, ids) })
}

func (c *clipStorage) DeleteClips(ctx context.Context, ids []string) error {
	return c.q.Do(ctx, func(ctx context.Context) error { return c.s.DeleteClips(ctx, ids) })
}

func (c *clipStorage) DeduplicateTags(ctx context.Context, ids []string) error {
	return c.q.Do(ctx, func(ctx context.Context) error { return c.s.DeduplicateTags(ctx, ids) })
}

func (c *clipStorage) DeduplicateAlbumItems(ctx context.Context, ids []string) error {
	return c.q.Do(ctx, func(ctx context.Context) error { return c.s.DeduplicateAlbumItems(ctx, ids) })
}

func (c *clipStorage) ApplyRemoteChanges(ctx context.Context, batch *domain.RemoteBatch) (domain.RemoteChanges, error) {
	return Run(ctx, c.q, func(ctx context.Context) (domain.RemoteChanges, error) {
		return c.s.ApplyRemoteChanges(ctx, batch)
	})
}
