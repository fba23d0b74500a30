package migration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/id"
	"github.com/clipbox/clipbox/internal/logger"
	"github.com/clipbox/clipbox/internal/media/images"
	"github.com/clipbox/clipbox/internal/store"
	"github.com/clipbox/clipbox/internal/store/reference"
	"github.com/clipbox/clipbox/internal/store/sqlite"
	"github.com/clipbox/clipbox/internal/store/staging"
	"github.com/clipbox/clipbox/internal/validation"
)

var errInjected = errors.New("injected failure")

type testEnv struct {
	primary       *sqlite.Store
	reference     *reference.Store
	staging       *staging.Store
	images        *images.Storage
	stagingImages *images.StagingStorage
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	primary, err := sqlite.Open(filepath.Join(dir, "clips.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { primary.Close() })

	ref, err := reference.OpenInMemory(logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { ref.Close() })

	stage, err := staging.Open(filepath.Join(dir, "staging.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { stage.Close() })

	imgs, err := images.NewStorage(filepath.Join(dir, "images"))
	require.NoError(t, err)

	stagedImgs, err := images.NewStagingStorage(filepath.Join(dir, "staging-images"))
	require.NoError(t, err)

	return &testEnv{primary: primary, reference: ref, staging: stage, images: imgs, stagingImages: stagedImgs}
}

func (e *testEnv) deps() Deps {
	return Deps{
		Primary:       e.primary,
		Reference:     e.reference,
		Staging:       e.staging,
		Images:        e.images,
		StagingImages: e.stagingImages,
		Validator:     validation.New(),
		Logger:        logger.Discard(),
	}
}

// stage writes a one-item recipe and, when data is non-nil, its image.
func (e *testEnv) stage(t *testing.T, registeredAt time.Time, data []byte, tagIDs ...string) *domain.ClipRecipe {
	t.Helper()
	clipID := id.NewUUID()
	url := "https://example.com/" + clipID
	r := &domain.ClipRecipe{
		ID:     clipID,
		TagIDs: tagIDs,
		Items: []domain.ClipItemRecipe{{
			ID:            id.NewUUID(),
			URL:           &url,
			ClipID:        clipID,
			ImageID:       id.NewUUID(),
			ImageFileName: "0.png",
			ImageSize:     int64(len(data)),
			RegisteredAt:  registeredAt,
			UpdatedAt:     registeredAt,
		}},
		DataSize:     int64(len(data)),
		RegisteredAt: registeredAt,
		UpdatedAt:    registeredAt,
	}
	require.NoError(t, e.staging.CreateClip(context.Background(), r))
	if data != nil {
		require.NoError(t, e.stagingImages.Save(clipID, "0.png", data))
	}
	return r
}

func (e *testEnv) stagedIDs(t *testing.T) []string {
	t.Helper()
	recipes, err := e.staging.ReadAllClips(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.ID)
	}
	return ids
}

// faultyPrimary fails CreateClip for one clip, or CreateTag for all tags.
type faultyPrimary struct {
	store.ClipStorage
	failClip  string
	failTags  bool
	creations int
}

func (f *faultyPrimary) CreateClip(ctx context.Context, c *domain.Clip) error {
	f.creations++
	if c.ID == f.failClip {
		return errInjected
	}
	return f.ClipStorage.CreateClip(ctx, c)
}

func (f *faultyPrimary) CreateTag(ctx context.Context, t *domain.Tag) error {
	if f.failTags {
		return errInjected
	}
	return f.ClipStorage.CreateTag(ctx, t)
}

// faultyImages fails every write.
type faultyImages struct {
	store.ImageStorage
}

func (faultyImages) Create(context.Context, *domain.ImageContainer) error { return errInjected }

// failingCommit rolls back and fails the next commits of the wrapped
// primary store.
type failingCommit struct {
	store.ClipStorage
	failures int
}

func (f *failingCommit) CommitTransaction() error {
	if f.failures == 0 {
		return f.ClipStorage.CommitTransaction()
	}
	f.failures--
	if err := f.ClipStorage.CancelTransactionIfNeeded(); err != nil {
		return err
	}
	return errInjected
}

// faultyStaging fails staged clip deletes or one commit.
type faultyStaging struct {
	store.TemporaryClipStorage
	failDelete bool
	failCommit bool
}

func (f *faultyStaging) DeleteClip(ctx context.Context, id string) error {
	if f.failDelete {
		return errInjected
	}
	return f.TemporaryClipStorage.DeleteClip(ctx, id)
}

func (f *faultyStaging) CommitTransaction() error {
	if !f.failCommit {
		return f.TemporaryClipStorage.CommitTransaction()
	}
	f.failCommit = false
	if err := f.TemporaryClipStorage.CancelTransactionIfNeeded(); err != nil {
		return err
	}
	return errInjected
}

// unbeginnable refuses to open a transaction.
type unbeginnable struct {
	store.ReferenceClipStorage
}

func (unbeginnable) BeginTransaction(context.Context) error { return errInjected }

func TestPersist_MovesClipAndImage(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	r := env.stage(t, time.Now(), []byte("png-bytes"))

	result, err := NewMigrator(env.deps()).Persist(ctx)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, []string{r.ID}, result.Migrated)

	clip, err := env.primary.ReadClip(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, clip.Items, 1)

	data, err := env.images.Read(ctx, r.Items[0].ImageID)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	assert.Empty(t, env.stagedIDs(t))
	_, err = env.stagingImages.Read(r.ID, "0.png")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPersist_PerClipIsolation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	base := time.Now()
	first := env.stage(t, base, []byte("first"))
	second := env.stage(t, base.Add(time.Second), []byte("second"))

	deps := env.deps()
	deps.Primary = &faultyPrimary{ClipStorage: env.primary, failClip: first.ID}

	result, err := NewMigrator(deps).Persist(ctx)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, []string{first.ID}, result.FailedIDs())
	assert.Equal(t, "create_clip", result.Failed[0].Reason)
	assert.ErrorIs(t, result.Failed[0].Err, errInjected)
	assert.Equal(t, []string{second.ID}, result.Migrated)

	// The second clip is fully migrated.
	_, err = env.primary.ReadClip(ctx, second.ID)
	require.NoError(t, err)
	exists, err := env.images.Exists(ctx, second.Items[0].ImageID)
	require.NoError(t, err)
	assert.True(t, exists)

	// The first clip is untouched, and no final sweep ran.
	assert.Equal(t, []string{first.ID}, env.stagedIDs(t))
	data, err := env.stagingImages.Read(first.ID, "0.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
	_, err = env.primary.ReadClip(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPersist_MissingImageIsTolerated(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	r := env.stage(t, time.Now(), nil)

	result, err := NewMigrator(env.deps()).Persist(ctx)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, []string{r.ID}, result.Migrated)

	_, err = env.primary.ReadClip(ctx, r.ID)
	require.NoError(t, err)
	exists, err := env.images.Exists(ctx, r.Items[0].ImageID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPersist_ImageWriteFailureIsTolerated(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	r := env.stage(t, time.Now(), []byte("bytes"))

	deps := env.deps()
	deps.Images = faultyImages{ImageStorage: env.images}

	result, err := NewMigrator(deps).Persist(ctx)
	require.NoError(t, err)
	assert.True(t, result.OK())

	_, err = env.primary.ReadClip(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, env.stagedIDs(t))
}

func TestPersist_InvalidRecipeIsAFailedClip(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	r := env.stage(t, time.Now(), []byte("bytes"))
	bad := *r
	bad.ID = id.NewUUID()
	bad.Items = []domain.ClipItemRecipe{r.Items[0]}
	bad.Items[0].ClipID = bad.ID
	bad.Items[0].ID = id.NewUUID()
	bad.Items[0].ImageID = "not-a-uuid"
	require.NoError(t, env.staging.CreateClip(ctx, &bad))

	result, err := NewMigrator(env.deps()).Persist(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{bad.ID}, result.FailedIDs())
	assert.Equal(t, "validate", result.Failed[0].Reason)
	assert.Equal(t, []string{r.ID}, result.Migrated)
	assert.Equal(t, []string{bad.ID}, env.stagedIDs(t))
}

func TestPersist_ObserverSeesEveryClip(t *testing.T) {
	env := setupEnv(t)
	base := time.Now()
	env.stage(t, base, nil)
	env.stage(t, base.Add(time.Second), nil)

	var calls [][2]int
	m := NewMigrator(env.deps())
	m.SetObserver(ObserverFunc(func(index, total int) {
		calls = append(calls, [2]int{index, total})
	}))

	_, err := m.Persist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}

func TestFlushDirtyTags_DuplicateNameIsDiscarded(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, env.primary.CreateTag(ctx, &domain.Tag{ID: "upstream", Name: "Sunset", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, env.reference.CreateTags(ctx, []*domain.ReferenceTag{
		{ID: "local-dup", Name: "sunset", IsHidden: true, IsDirty: true},
		{ID: "local-new", Name: "Beach", IsDirty: true},
	}))

	flushed, discarded, err := NewMigrator(env.deps()).FlushDirtyTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"local-new"}, flushed)
	assert.Equal(t, []string{"local-dup"}, discarded)

	tags, err := env.reference.ReadAllTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "local-new", tags[0].ID)
	assert.False(t, tags[0].IsDirty)

	created, err := env.primary.ReadTag(ctx, "local-new")
	require.NoError(t, err)
	assert.Equal(t, "Beach", created.Name)
}

func TestPersist_TagFlushFailureAbortsPass(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	require.NoError(t, env.reference.CreateTags(ctx, []*domain.ReferenceTag{{ID: "local", Name: "x", IsDirty: true}}))
	r := env.stage(t, time.Now(), nil)

	primary := &faultyPrimary{ClipStorage: env.primary, failTags: true}
	deps := env.deps()
	deps.Primary = primary

	_, err := NewMigrator(deps).Persist(ctx)
	require.ErrorIs(t, err, errInjected)

	assert.Zero(t, primary.creations, "no clip is attempted after a failed flush")
	assert.Equal(t, []string{r.ID}, env.stagedIDs(t))

	dirty, err := env.reference.ReadAllDirtyTags(ctx)
	require.NoError(t, err)
	assert.Len(t, dirty, 1)
}

func TestPersist_ClipLinksFlushedTag(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	require.NoError(t, env.reference.CreateTags(ctx, []*domain.ReferenceTag{{ID: "fresh", Name: "fresh", IsDirty: true}}))
	r := env.stage(t, time.Now(), nil, "fresh", "unknown")

	result, err := NewMigrator(env.deps()).Persist(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, result.FlushedTags)

	clip, err := env.primary.ReadClip(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, clip.TagIDs())
}

func TestPersist_EmptyStagingIsOK(t *testing.T) {
	env := setupEnv(t)

	result, err := NewMigrator(env.deps()).Persist(context.Background())
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Empty(t, result.Migrated)
}

func TestPersist_PrimaryCommitFailureKeepsStagedClip(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	r := env.stage(t, time.Now(), []byte("bytes"))

	deps := env.deps()
	deps.Primary = &failingCommit{ClipStorage: env.primary, failures: 1}

	result, err := NewMigrator(deps).Persist(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, result.FailedIDs())
	assert.Equal(t, "commit", result.Failed[0].Reason)
	assert.ErrorIs(t, result.Failed[0].Err, errInjected)
	assert.Empty(t, result.Migrated)

	_, err = env.primary.ReadClip(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{r.ID}, env.stagedIDs(t))
	data, err := env.stagingImages.Read(r.ID, "0.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), data)

	// The next pass migrates it.
	result, err = NewMigrator(env.deps()).Persist(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, result.Migrated)
	_, err = env.primary.ReadClip(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, env.stagedIDs(t))
}

func TestPersist_StagingCommitFailureIsFinishedNextPass(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	r := env.stage(t, time.Now(), []byte("bytes"))

	deps := env.deps()
	deps.Staging = &faultyStaging{TemporaryClipStorage: env.staging, failCommit: true}

	result, err := NewMigrator(deps).Persist(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, result.FailedIDs())
	assert.Equal(t, "commit", result.Failed[0].Reason)

	// The clip is durable upstream and still staged.
	_, err = env.primary.ReadClip(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, env.stagedIDs(t))

	result, err = NewMigrator(env.deps()).Persist(ctx)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, []string{r.ID}, result.Migrated)
	assert.Empty(t, env.stagedIDs(t))

	data, err := env.images.Read(ctx, r.Items[0].ImageID)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), data)
}

func TestPersist_StagedDeleteFailureRollsBackClip(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	r := env.stage(t, time.Now(), []byte("bytes"))

	deps := env.deps()
	deps.Staging = &faultyStaging{TemporaryClipStorage: env.staging, failDelete: true}

	result, err := NewMigrator(deps).Persist(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, result.FailedIDs())
	assert.Equal(t, "delete_staged_clip", result.Failed[0].Reason)

	_, err = env.primary.ReadClip(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{r.ID}, env.stagedIDs(t))
	exists, err := env.images.Exists(ctx, r.Items[0].ImageID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPersist_TagFlushBeginFailureSkipsClips(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	require.NoError(t, env.reference.CreateTags(ctx, []*domain.ReferenceTag{{ID: "local", Name: "x", IsDirty: true}}))
	r := env.stage(t, time.Now(), nil)

	primary := &faultyPrimary{ClipStorage: env.primary}
	deps := env.deps()
	deps.Primary = primary
	deps.Reference = unbeginnable{ReferenceClipStorage: env.reference}

	_, err := NewMigrator(deps).Persist(ctx)
	require.ErrorIs(t, err, errInjected)
	assert.Zero(t, primary.creations)
	assert.Equal(t, []string{r.ID}, env.stagedIDs(t))

	// Members begun before the failure were cancelled.
	for _, s := range []store.Transactional{env.staging, env.images, env.primary} {
		require.NoError(t, s.BeginTransaction(ctx))
		require.NoError(t, s.CancelTransactionIfNeeded())
	}

	_, err = env.primary.ReadTag(ctx, "local")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFlushDirtyTags_RepushedTagIsCleaned(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, env.primary.CreateTag(ctx, &domain.Tag{ID: "pushed", Name: "Dunes", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, env.reference.CreateTags(ctx, []*domain.ReferenceTag{{ID: "pushed", Name: "Dunes", IsDirty: true}}))

	flushed, discarded, err := NewMigrator(env.deps()).FlushDirtyTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pushed"}, flushed)
	assert.Empty(t, discarded)

	dirty, err := env.reference.ReadAllDirtyTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}
