package reference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/logger"
	"github.com/clipbox/clipbox/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestTags_CreateReadUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTags(ctx, []*domain.ReferenceTag{
		{ID: "t1", Name: "one"},
		{ID: "t2", Name: "two", IsDirty: true},
	}))

	all, err := s.ReadAllTags(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	dirty, err := s.ReadAllDirtyTags(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "t2", dirty[0].ID)

	require.NoError(t, s.UpdateTagName(ctx, "t1", "uno"))
	require.NoError(t, s.UpdateTagHidden(ctx, "t1", true))
	require.NoError(t, s.CleanTags(ctx, []string{"t2"}))

	all, err = s.ReadAllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uno", all[0].Name)
	assert.True(t, all[0].IsHidden)

	dirty, err = s.ReadAllDirtyTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestTags_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTags(ctx, []*domain.ReferenceTag{{ID: "t1", Name: "one"}}))

	err := s.CreateTags(ctx, []*domain.ReferenceTag{{ID: "t0", Name: "zero"}, {ID: "t1", Name: "again"}})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	all, err := s.ReadAllTags(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "a rejected batch writes nothing")

	assert.ErrorIs(t, s.UpdateTagName(ctx, "missing", "x"), store.ErrNotFound)
	assert.NoError(t, s.DeleteTags(ctx, []string{"missing"}))
}

func TestClips_Updates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registered := time.Date(2024, 2, 2, 8, 30, 0, 0, time.UTC)

	require.NoError(t, s.CreateClips(ctx, []*domain.ReferenceClip{
		{ID: "c1", URL: strPtr("https://a"), TagIDs: []string{"t1"}, RegisteredAt: registered},
	}))

	require.NoError(t, s.UpdateClipURL(ctx, "c1", nil))
	require.NoError(t, s.UpdateClipDescription(ctx, "c1", strPtr("desc")))
	require.NoError(t, s.UpdateClipHidden(ctx, "c1", true))
	require.NoError(t, s.UpdateClipTagIDs(ctx, "c1", []string{"t2", "t3"}))
	require.NoError(t, s.UpdateClipRegisteredAt(ctx, "c1", registered.Add(time.Hour)))

	clips, err := s.ReadAllClips(ctx)
	require.NoError(t, err)
	require.Len(t, clips, 1)

	c := clips[0]
	assert.Nil(t, c.URL)
	assert.Equal(t, "desc", *c.Description)
	assert.True(t, c.IsHidden)
	assert.Equal(t, []string{"t2", "t3"}, c.TagIDs)
	assert.True(t, c.RegisteredAt.Equal(registered.Add(time.Hour)))

	require.NoError(t, s.DeleteClips(ctx, []string{"c1"}))
	clips, err = s.ReadAllClips(ctx)
	require.NoError(t, err)
	assert.Empty(t, clips)
}

func TestTransaction_ReadsOwnWritesAndDiscards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginTransaction(ctx))
	assert.ErrorIs(t, s.BeginTransaction(ctx), store.ErrTransactionInProgress)

	require.NoError(t, s.CreateTags(ctx, []*domain.ReferenceTag{{ID: "t1", Name: "one"}}))
	all, err := s.ReadAllTags(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "reads inside the transaction see its writes")

	require.NoError(t, s.CancelTransactionIfNeeded())

	all, err = s.ReadAllTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTransaction_Commit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.CommitTransaction(), store.ErrNoTransaction)

	require.NoError(t, s.BeginTransaction(ctx))
	require.NoError(t, s.CreateClips(ctx, []*domain.ReferenceClip{{ID: "c1"}}))
	require.NoError(t, s.CommitTransaction())

	clips, err := s.ReadAllClips(ctx)
	require.NoError(t, err)
	assert.Len(t, clips, 1)
}

func TestOpen_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, s.CreateTags(ctx, []*domain.ReferenceTag{{ID: "t1", Name: "one", IsDirty: true}}))
	require.NoError(t, s.Close())

	s, err = Open(dir, logger.Discard())
	require.NoError(t, err)
	defer s.Close()

	dirty, err := s.ReadAllDirtyTags(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "one", dirty[0].Name)
}
