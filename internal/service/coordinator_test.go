package service

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/id"
	"github.com/clipbox/clipbox/internal/logger"
	"github.com/clipbox/clipbox/internal/media/images"
	"github.com/clipbox/clipbox/internal/migration"
	"github.com/clipbox/clipbox/internal/sse"
	"github.com/clipbox/clipbox/internal/store"
	"github.com/clipbox/clipbox/internal/store/reference"
	"github.com/clipbox/clipbox/internal/store/sqlite"
	"github.com/clipbox/clipbox/internal/store/staging"
	"github.com/clipbox/clipbox/internal/validation"
)

// recordingEmitter collects emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// countingStaging counts staged-clip reads.
type countingStaging struct {
	store.TemporaryClipStorage
	reads atomic.Int32
}

func (c *countingStaging) ReadAllClips(ctx context.Context) ([]*domain.ClipRecipe, error) {
	c.reads.Add(1)
	return c.TemporaryClipStorage.ReadAllClips(ctx)
}

type testEnv struct {
	coordinator   *Coordinator
	primary       *sqlite.Store
	reference     *reference.Store
	staging       *countingStaging
	stagingImages *images.StagingStorage
	events        *recordingEmitter
}

func setupCoordinator(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	log := logger.Discard()

	primary, err := sqlite.Open(filepath.Join(dir, "clips.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { primary.Close() })

	ref, err := reference.OpenInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { ref.Close() })

	stage, err := staging.Open(filepath.Join(dir, "staging.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { stage.Close() })

	imgs, err := images.NewStorage(filepath.Join(dir, "images"))
	require.NoError(t, err)
	stagedImgs, err := images.NewStagingStorage(filepath.Join(dir, "staging-images"))
	require.NoError(t, err)

	env := &testEnv{
		primary:       primary,
		reference:     ref,
		staging:       &countingStaging{TemporaryClipStorage: stage},
		stagingImages: stagedImgs,
		events:        &recordingEmitter{},
	}
	env.coordinator = NewCoordinator(Deps{
		Primary:       primary,
		Reference:     ref,
		Staging:       env.staging,
		Images:        imgs,
		StagingImages: stagedImgs,
		Validator:     validation.New(),
		Events:        env.events,
		Logger:        log,
	})
	t.Cleanup(env.coordinator.Close)
	return env
}

func (e *testEnv) stageClip(t *testing.T, tagIDs ...string) string {
	t.Helper()
	now := time.Now()
	clipID := id.NewUUID()
	require.NoError(t, e.staging.CreateClip(context.Background(), &domain.ClipRecipe{
		ID:     clipID,
		TagIDs: tagIDs,
		Items: []domain.ClipItemRecipe{{
			ID:            id.NewUUID(),
			ClipID:        clipID,
			ImageID:       id.NewUUID(),
			ImageFileName: "0.png",
			RegisteredAt:  now,
			UpdatedAt:     now,
		}},
		RegisteredAt: now,
		UpdatedAt:    now,
	}))
	require.NoError(t, e.stagingImages.Save(clipID, "0.png", []byte("png")))
	return clipID
}

func TestPersistIfNeeded_ReentrantGuard(t *testing.T) {
	env := setupCoordinator(t)
	env.stageClip(t)

	started := make(chan struct{})
	release := make(chan struct{})
	env.coordinator.Persister().SetObserver(migration.ObserverFunc(func(index, total int) {
		close(started)
		<-release
	}))

	firstDone := make(chan bool, 1)
	go func() { firstDone <- env.coordinator.PersistIfNeeded(context.Background()) }()
	<-started

	readsBefore := env.staging.reads.Load()
	assert.True(t, env.coordinator.Persister().IsRunning())

	begin := time.Now()
	assert.True(t, env.coordinator.PersistIfNeeded(context.Background()))
	assert.Less(t, time.Since(begin), time.Second, "second call must not wait for the first")
	assert.Equal(t, readsBefore, env.staging.reads.Load(), "second call touched no store")

	close(release)
	assert.True(t, <-firstDone)
	assert.False(t, env.coordinator.Persister().IsRunning())
}

func TestPersistIfNeeded_WaitsForLockHeldByOtherPass(t *testing.T) {
	env := setupCoordinator(t)

	_, err := env.coordinator.lock.Lock(context.Background())
	require.NoError(t, err)
	defer env.coordinator.lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.False(t, env.coordinator.PersistIfNeeded(ctx))
	assert.Zero(t, env.staging.reads.Load())
}

func TestHandleForeground_PersistsThenReconciles(t *testing.T) {
	env := setupCoordinator(t)
	ctx := context.Background()

	require.NoError(t, env.reference.CreateTags(ctx, []*domain.ReferenceTag{{ID: "tag-local", Name: "Local", IsDirty: true}}))
	clipID := env.stageClip(t, "tag-local")

	outcome, report, err := env.coordinator.HandleForeground(ctx, TriggerAPI)
	require.NoError(t, err)
	assert.True(t, outcome.OK())
	assert.Equal(t, []string{clipID}, outcome.Result.Migrated)
	assert.Equal(t, 1, report.Created, "clip mirror created")

	clips, err := env.reference.ReadAllClips(ctx)
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, []string{"tag-local"}, clips[0].TagIDs)

	dirty, err := env.reference.ReadAllDirtyTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	assert.Equal(t, []sse.EventType{
		sse.EventPersistStarted,
		sse.EventPersistProgress,
		sse.EventPersistCompleted,
		sse.EventReconcileCompleted,
	}, env.events.types())
}

func TestApplyRemoteBatch_DeduplicatesAndReconciles(t *testing.T) {
	env := setupCoordinator(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, env.primary.CreateTag(ctx, &domain.Tag{ID: "t-old", Name: "Trips", CreatedAt: now, UpdatedAt: now}))
	_, err := env.coordinator.Reconcile(ctx)
	require.NoError(t, err)

	changes, err := env.coordinator.ApplyRemoteBatch(ctx, &domain.RemoteBatch{
		Tags: []domain.Tag{{ID: "t-fork", Name: "trips", CreatedAt: now.Add(time.Minute)}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-fork"}, changes.Tags.Inserted)

	tags, err := env.primary.ReadAllTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "t-old", tags[0].ID)

	refTags, err := env.reference.ReadAllTags(ctx)
	require.NoError(t, err)
	require.Len(t, refTags, 1)
	assert.Equal(t, "t-old", refTags[0].ID)
}

func TestHandleRemoteChanges_EmptyIsNoop(t *testing.T) {
	env := setupCoordinator(t)
	require.NoError(t, env.coordinator.HandleRemoteChanges(context.Background(), domain.RemoteChanges{}))
	assert.Empty(t, env.events.types())
}

func TestStatus(t *testing.T) {
	env := setupCoordinator(t)
	ctx := context.Background()
	require.NoError(t, env.reference.CreateTags(ctx, []*domain.ReferenceTag{{ID: "a", Name: "a", IsDirty: true}, {ID: "b", Name: "b"}}))
	env.stageClip(t)

	s, err := env.coordinator.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{ReferenceTags: 2, DirtyTags: 1, StagedClips: 1}, s)
}

func TestReadAllClips_WaitsForOpenTransaction(t *testing.T) {
	env := setupCoordinator(t)
	c := env.coordinator

	ctx, err := c.lock.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.primary.BeginTransaction(ctx))
	require.NoError(t, c.primary.CreateClip(ctx, &domain.Clip{ID: id.NewUUID()}))

	type read struct {
		clips []*domain.Clip
		err   error
	}
	done := make(chan read, 1)
	go func() {
		clips, err := c.ReadAllClips(context.Background())
		done <- read{clips, err}
	}()

	select {
	case <-done:
		t.Fatal("read returned while a transaction was open")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, c.primary.CancelTransactionIfNeeded())
	c.lock.Unlock()

	got := <-done
	require.NoError(t, got.err)
	assert.Empty(t, got.clips, "rolled-back clip must never be read")
}

func TestExclusive_IsReentrant(t *testing.T) {
	env := setupCoordinator(t)
	c := env.coordinator

	err := c.Exclusive(context.Background(), func(ctx context.Context) error {
		tags, err := c.ReadAllTags(ctx)
		assert.Empty(t, tags)
		return err
	})
	require.NoError(t, err)
}

func TestRun_ForegroundAtStartAndStopsOnCancel(t *testing.T) {
	env := setupCoordinator(t)
	clipID := env.stageClip(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.coordinator.Run(ctx, RunOptions{ForegroundInterval: time.Hour}) }()

	require.Eventually(t, func() bool {
		_, err := env.primary.ReadClip(context.Background(), clipID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_RejectsBadInterval(t *testing.T) {
	env := setupCoordinator(t)
	assert.Error(t, env.coordinator.Run(context.Background(), RunOptions{}))
}
