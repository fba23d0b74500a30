// Package service exposes the maintenance entry points of ClipBox: the
// integrity service, the persist service and the coordinator that owns the
// lock and the storage command queue they share.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/integrity"
	"github.com/clipbox/clipbox/internal/lock"
	"github.com/clipbox/clipbox/internal/migration"
	"github.com/clipbox/clipbox/internal/queue"
	"github.com/clipbox/clipbox/internal/ratelimit"
	"github.com/clipbox/clipbox/internal/sse"
	"github.com/clipbox/clipbox/internal/store"
	"github.com/clipbox/clipbox/internal/watcher"
)

// Trigger sources, also used as rate-limit keys.
const (
	TriggerTimer   = "timer"
	TriggerWatcher = "watcher"
	TriggerAPI     = "api"
	TriggerRemote  = "remote"
	TriggerCLI     = "cli"
)

// Deps holds everything a Coordinator needs.
type Deps struct {
	Primary       store.ClipStorage
	Reference     store.ReferenceClipStorage
	Staging       store.TemporaryClipStorage
	Images        store.ImageStorage
	StagingImages store.TemporaryImageStorage
	Validator     migration.RecipeValidator
	Events        sse.Emitter
	Logger        *slog.Logger
}

// Coordinator serializes reconciliation and migration. It owns the
// process-wide re-entrant lock and the primary-store command queue.
type Coordinator struct {
	lock      *lock.Recursive
	queue     *queue.Queue
	primary   store.ClipStorage
	reference store.ReferenceClipStorage
	staging   store.TemporaryClipStorage
	integrity *IntegrityService
	persist   *PersistService
	logger    *slog.Logger
}

// NewCoordinator wires the services over deps. Every primary-store call
// made through the coordinator runs on its command queue.
func NewCoordinator(deps Deps) *Coordinator {
	events := deps.Events
	if events == nil {
		events = sse.NoopEmitter{}
	}

	l := lock.NewRecursive()
	q := queue.New(deps.Logger)
	primary := queue.WrapClipStorage(q, deps.Primary)

	migrator := migration.NewMigrator(migration.Deps{
		Primary:       primary,
		Reference:     deps.Reference,
		Staging:       deps.Staging,
		Images:        deps.Images,
		StagingImages: deps.StagingImages,
		Validator:     deps.Validator,
		Logger:        deps.Logger,
	})

	return &Coordinator{
		lock:      l,
		queue:     q,
		primary:   primary,
		reference: deps.Reference,
		staging:   deps.Staging,
		integrity: NewIntegrityService(
			l,
			integrity.NewReconciler(primary, deps.Reference, deps.Logger),
			integrity.NewDeduplicator(primary, deps.Logger),
			events,
			deps.Logger,
		),
		persist: NewPersistService(l, migrator, events, deps.Logger),
		logger:  deps.Logger,
	}
}

// Integrity returns the integrity service.
func (c *Coordinator) Integrity() *IntegrityService { return c.integrity }

// Persister returns the persist service.
func (c *Coordinator) Persister() *PersistService { return c.persist }

// Primary returns the queued primary store. Reads made on it outside the
// lock can observe a pass's uncommitted writes; use ReadAllTags,
// ReadAllClips or Exclusive for committed state.
func (c *Coordinator) Primary() store.ClipStorage { return c.primary }

// Exclusive runs fn while holding the coordinator lock. Every primary-store
// transaction is opened under this lock, so fn only sees committed data.
func (c *Coordinator) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, err := c.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer c.lock.Unlock()
	return fn(ctx)
}

// ReadAllTags returns the committed primary tags.
func (c *Coordinator) ReadAllTags(ctx context.Context) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	err := c.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		tags, err = c.primary.ReadAllTags(ctx)
		return err
	})
	return tags, err
}

// ReadAllClips returns the committed primary clips.
func (c *Coordinator) ReadAllClips(ctx context.Context) ([]*domain.Clip, error) {
	var clips []*domain.Clip
	err := c.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		clips, err = c.primary.ReadAllClips(ctx)
		return err
	})
	return clips, err
}

// Reconcile runs a reconciliation pass.
func (c *Coordinator) Reconcile(ctx context.Context) (integrity.Report, error) {
	return c.integrity.Reconcile(ctx)
}

// PersistIfNeeded runs a persist pass; see PersistService.PersistIfNeeded.
func (c *Coordinator) PersistIfNeeded(ctx context.Context) bool {
	return c.persist.PersistIfNeeded(ctx)
}

// HandleForeground persists staged clips, then reconciles, without letting
// any other pass run in between.
func (c *Coordinator) HandleForeground(ctx context.Context, trigger string) (PersistOutcome, integrity.Report, error) {
	ctx, err := c.lock.Lock(ctx)
	if err != nil {
		return PersistOutcome{}, integrity.Report{}, err
	}
	defer c.lock.Unlock()

	outcome := c.persist.Persist(ctx, trigger)
	report, err := c.integrity.Reconcile(ctx)
	return outcome, report, err
}

// HandleRemoteChanges deduplicates and reconciles after a sync delivery.
func (c *Coordinator) HandleRemoteChanges(ctx context.Context, changes domain.RemoteChanges) error {
	return c.integrity.DidReceiveRemoteChanges(ctx, changes)
}

// ApplyRemoteBatch writes a sync delivery into the primary store and handles
// the resulting changes. The write and the follow-up passes share one hold
// of the lock, so no migration can slip in between.
func (c *Coordinator) ApplyRemoteBatch(ctx context.Context, batch *domain.RemoteBatch) (domain.RemoteChanges, error) {
	ctx, err := c.lock.Lock(ctx)
	if err != nil {
		return domain.RemoteChanges{}, err
	}
	defer c.lock.Unlock()

	changes, err := c.primary.ApplyRemoteChanges(ctx, batch)
	if err != nil {
		c.logger.Error("failed to apply remote changes", "error", err)
		return domain.RemoteChanges{}, err
	}
	if err := c.HandleRemoteChanges(ctx, changes); err != nil {
		return changes, err
	}
	return changes, nil
}

// Status is a snapshot of the stores for diagnostics.
type Status struct {
	Tags          int  `json:"tags"`
	Clips         int  `json:"clips"`
	ReferenceTags int  `json:"reference_tags"`
	DirtyTags     int  `json:"dirty_tags"`
	StagedClips   int  `json:"staged_clips"`
	Persisting    bool `json:"persisting"`
}

// Status reads store counts under the lock, so it waits for a pass in
// flight and never counts uncommitted records.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	s := Status{Persisting: c.persist.IsRunning()}

	var (
		tags    []*domain.Tag
		clips   []*domain.Clip
		refTags []*domain.ReferenceTag
		staged  []*domain.ClipRecipe
	)
	err := c.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		if tags, err = c.primary.ReadAllTags(ctx); err != nil {
			return err
		}
		if clips, err = c.primary.ReadAllClips(ctx); err != nil {
			return err
		}
		if refTags, err = c.reference.ReadAllTags(ctx); err != nil {
			return err
		}
		staged, err = c.staging.ReadAllClips(ctx)
		return err
	})
	if err != nil {
		return s, err
	}

	s.Tags = len(tags)
	s.Clips = len(clips)
	s.ReferenceTags = len(refTags)
	for _, t := range refTags {
		if t.IsDirty {
			s.DirtyTags++
		}
	}
	s.StagedClips = len(staged)
	return s, nil
}

// RunOptions configures the maintenance loop.
type RunOptions struct {
	// ForegroundInterval is the period of foreground passes.
	ForegroundInterval time.Duration
	// Limiter throttles triggers per source. Nil means unthrottled.
	Limiter *ratelimit.Keyed
	// Watcher, when set, triggers a persist for every settled staging write.
	Watcher *watcher.Watcher
	// RetryDelay is how long a throttled watcher trigger waits before it is
	// replayed. Defaults to one second.
	RetryDelay time.Duration
}

// Run performs a foreground pass at start and on every tick, and persists
// on staging writes, until ctx is done.
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) error {
	if opts.ForegroundInterval <= 0 {
		return errors.New("foreground interval must be positive")
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(0, 1)
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	c.foreground(ctx)

	ticker := time.NewTicker(opts.ForegroundInterval)
	defer ticker.Stop()

	var events <-chan watcher.Event
	var watchErrs <-chan error
	if opts.Watcher != nil {
		events = opts.Watcher.Events()
		watchErrs = opts.Watcher.Errors()
	}

	// A throttled watcher trigger is replayed once instead of dropped.
	var retry <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if opts.Limiter.Allow(TriggerTimer) {
				c.foreground(ctx)
			}

		case e := <-events:
			if !e.IsWrite() {
				continue
			}
			if !opts.Limiter.Allow(TriggerWatcher) {
				if retry == nil {
					retry = time.After(opts.RetryDelay)
				}
				continue
			}
			c.logger.Debug("staging write detected", "path", e.Path)
			c.persist.Persist(ctx, TriggerWatcher)

		case <-retry:
			retry = nil
			c.persist.Persist(ctx, TriggerWatcher)

		case err := <-watchErrs:
			c.logger.Warn("staging watcher error", "error", err)
		}
	}
}

func (c *Coordinator) foreground(ctx context.Context) {
	outcome, report, err := c.HandleForeground(ctx, TriggerTimer)
	if err != nil || !outcome.OK() {
		// Details were logged by the passes.
		return
	}
	c.logger.Debug("foreground pass complete",
		"migrated", len(outcome.Result.Migrated),
		"reconciled", report.Changed(),
	)
}

// Close stops the command queue. Passes in flight finish first.
func (c *Coordinator) Close() {
	c.queue.Close()
}
