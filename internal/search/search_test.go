package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipbox/clipbox/internal/domain"
)

func setupTestIndex(t *testing.T) *ClipIndex {
	t.Helper()
	index, err := NewClipIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func strPtr(s string) *string { return &s }

func testClip(id, desc string, registered time.Time, tags ...string) *domain.Clip {
	c := &domain.Clip{
		ID:           id,
		RegisteredAt: registered,
		UpdatedAt:    registered,
		Items: []domain.ClipItem{
			{ID: id + "-item", ClipID: id, URL: strPtr("https://photos.example.com/" + id)},
		},
	}
	if desc != "" {
		c.Description = strPtr(desc)
	}
	for i, name := range tags {
		c.Tags = append(c.Tags, domain.Tag{ID: id + "-tag-" + string(rune('a'+i)), Name: name})
	}
	return c
}

func TestNewClipIndex_Empty(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewClipIndex_Reopen(t *testing.T) {
	dir := t.TempDir()
	index, err := NewClipIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexClip(context.Background(), testClip("c1", "harbor at dusk", time.Now())))
	require.NoError(t, index.Close())

	reopened, err := NewClipIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearch_MatchesDescriptionTagsAndURLs(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, index.IndexClip(ctx, testClip("c1", "Sailing boats in the harbor", now, "Travel")))
	require.NoError(t, index.IndexClip(ctx, testClip("c2", "Mountain cabin", now.Add(time.Minute), "Road Trips")))

	ids, err := index.Search(ctx, "boat", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	ids, err = index.Search(ctx, "road", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids)

	ids, err = index.Search(ctx, "photos", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)

	// Every term must match.
	ids, err = index.Search(ctx, "mountain harbor", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSearch_PrefixOnLastTerm(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, index.IndexClip(ctx, testClip("c1", "", time.Now(), "Sunsets")))

	ids, err := index.Search(ctx, "suns", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}

func TestSearch_EmptyQueryListsRecentFirst(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, index.Reindex(ctx, []*domain.Clip{
		testClip("old", "a", base),
		testClip("new", "b", base.Add(time.Hour)),
	}))

	ids, err := index.Search(ctx, "  ", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids)
}

func TestSearch_HiddenExcludedUnlessAsked(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	hidden := testClip("secret", "hidden harbor", time.Now())
	hidden.IsHidden = true
	require.NoError(t, index.IndexClip(ctx, hidden))

	ids, err := index.Search(ctx, "harbor", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = index.SearchWithParams(ctx, Params{Query: "harbor", IncludeHidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"secret"}, ids)
}

func TestDeleteClip(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexClip(ctx, testClip("c1", "harbor", time.Now())))
	require.NoError(t, index.DeleteClip(ctx, "c1"))
	require.NoError(t, index.DeleteClip(ctx, "unknown"))

	ids, err := index.Search(ctx, "harbor", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRebuild(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexClip(ctx, testClip("stale", "harbor", time.Now())))
	require.NoError(t, index.Rebuild(ctx, []*domain.Clip{testClip("fresh", "harbor", time.Now())}))

	ids, err := index.Search(ctx, "harbor", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestNewClipDocument(t *testing.T) {
	c := testClip("c1", "desc", time.UnixMilli(1700000000000), "A", "")
	c.Items = append(c.Items, domain.ClipItem{ID: "i2"})

	doc := NewClipDocument(c)
	assert.Equal(t, "desc", doc.Description)
	assert.Equal(t, []string{"A"}, doc.Tags)
	assert.Equal(t, []string{"https://photos.example.com/c1"}, doc.URLs)
	assert.Equal(t, 2, doc.ItemCount)
	assert.Equal(t, int64(1700000000000), doc.RegisteredAt)

	m := doc.ToMap()
	assert.Equal(t, "c1", m["id"])
	assert.Equal(t, false, m["hidden"])
}
