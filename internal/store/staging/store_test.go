package staging

import (
	"context"
	"path/filepath"
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
	s, err := Open(filepath.Join(t.TempDir(), "staging.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func makeRecipe(id string, registeredAt time.Time) *domain.ClipRecipe {
	return &domain.ClipRecipe{
		ID:          id,
		Description: strPtr("captured"),
		TagIDs:      []string{"tag-1", "tag-2"},
		IsHidden:    true,
		DataSize:    42,
		Items: []domain.ClipItemRecipe{
			{ID: id + "-i1", ClipID: id, ClipIndex: 1, ImageID: id + "-img1", ImageFileName: "two.png", RegisteredAt: registeredAt, UpdatedAt: registeredAt},
			{ID: id + "-i0", ClipID: id, ClipIndex: 0, URL: strPtr("https://example.com"), ImageID: id + "-img0", ImageFileName: "one.png", ImageWidth: 10, ImageHeight: 20, RegisteredAt: registeredAt, UpdatedAt: registeredAt},
		},
		RegisteredAt: registeredAt,
		UpdatedAt:    registeredAt,
	}
}

func TestCreateAndReadAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateClip(ctx, makeRecipe("clip-b", base.Add(time.Minute))))
	require.NoError(t, s.CreateClip(ctx, makeRecipe("clip-a", base)))

	recipes, err := s.ReadAllClips(ctx)
	require.NoError(t, err)
	require.Len(t, recipes, 2)

	first := recipes[0]
	assert.Equal(t, "clip-a", first.ID, "recipes come back in registration order")
	assert.Equal(t, "captured", *first.Description)
	assert.Equal(t, []string{"tag-1", "tag-2"}, first.TagIDs)
	assert.True(t, first.IsHidden)
	assert.EqualValues(t, 42, first.DataSize)
	assert.True(t, first.RegisteredAt.Equal(base))

	require.Len(t, first.Items, 2)
	assert.Equal(t, "clip-a-i0", first.Items[0].ID)
	assert.Equal(t, "https://example.com", *first.Items[0].URL)
	assert.Equal(t, 20, first.Items[0].ImageHeight)
	assert.Nil(t, first.Items[1].URL)
}

func TestCreateClip_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateClip(ctx, makeRecipe("clip-a", time.Now())))
	assert.ErrorIs(t, s.CreateClip(ctx, makeRecipe("clip-a", time.Now())), store.ErrAlreadyExists)
}

func TestDeleteClip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateClip(ctx, makeRecipe("clip-a", time.Now())))
	require.NoError(t, s.CreateClip(ctx, makeRecipe("clip-b", time.Now())))

	require.NoError(t, s.DeleteClip(ctx, "clip-a"))
	assert.ErrorIs(t, s.DeleteClip(ctx, "clip-a"), store.ErrNotFound)

	recipes, err := s.ReadAllClips(ctx)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, "clip-b", recipes[0].ID)

	var items int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM clip_item_recipes`).Scan(&items))
	assert.Equal(t, 2, items, "items of the deleted recipe cascade")
}

func TestTransaction_CancelKeepsRecipe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateClip(ctx, makeRecipe("clip-a", time.Now())))

	require.NoError(t, s.BeginTransaction(ctx))
	require.NoError(t, s.DeleteClip(ctx, "clip-a"))
	require.NoError(t, s.CancelTransactionIfNeeded())

	recipes, err := s.ReadAllClips(ctx)
	require.NoError(t, err)
	assert.Len(t, recipes, 1)
}

func TestDeleteAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateClip(ctx, makeRecipe("clip-a", time.Now())))
	require.NoError(t, s.CreateClip(ctx, makeRecipe("clip-b", time.Now())))
	require.NoError(t, s.DeleteAll(ctx))

	recipes, err := s.ReadAllClips(ctx)
	require.NoError(t, err)
	assert.Empty(t, recipes)
}
