// Package migration moves clips captured into the staging area into the
// primary store and the primary blob store.
//
// A persist pass first pushes dirty reference tags into the primary store,
// then migrates every staged clip in its own cross-store transaction set.
// One failing clip never blocks the others, and image bytes are moved on a
// best-effort basis: clip metadata is authoritative, images may be lost.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/store"
)

// Observer receives progress for each clip attempted.
type Observer interface {
	// DidStart is called before clip index (1-based) of total is migrated.
	DidStart(index, total int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(index, total int)

// DidStart calls f.
func (f ObserverFunc) DidStart(index, total int) { f(index, total) }

// RecipeValidator checks a staged recipe before it is migrated.
type RecipeValidator interface {
	Validate(s any) error
}

// FailedClip is a staged clip left in staging by a pass.
type FailedClip struct {
	ClipID string `json:"clip_id"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Result summarizes a persist pass.
type Result struct {
	FlushedTags   []string     `json:"flushed_tags,omitempty"`
	DiscardedTags []string     `json:"discarded_tags,omitempty"`
	Migrated      []string     `json:"migrated,omitempty"`
	Failed        []FailedClip `json:"failed,omitempty"`
}

// OK reports whether every staged clip was migrated.
func (r Result) OK() bool { return len(r.Failed) == 0 }

// FailedIDs returns the ids of the failed clips.
func (r Result) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ClipID)
	}
	return ids
}

// Deps are the stores a Migrator works on.
type Deps struct {
	Primary       store.ClipStorage
	Reference     store.ReferenceClipStorage
	Staging       store.TemporaryClipStorage
	Images        store.ImageStorage
	StagingImages store.TemporaryImageStorage
	Validator     RecipeValidator
	Logger        *slog.Logger
}

// Migrator runs persist passes. It does not serialize passes itself;
// callers hold the coordinator lock.
type Migrator struct {
	primary       store.ClipStorage
	reference     store.ReferenceClipStorage
	staging       store.TemporaryClipStorage
	images        store.ImageStorage
	stagingImages store.TemporaryImageStorage
	validator     RecipeValidator
	logger        *slog.Logger
	observer      Observer
}

// NewMigrator creates a migrator.
func NewMigrator(deps Deps) *Migrator {
	return &Migrator{
		primary:       deps.Primary,
		reference:     deps.Reference,
		staging:       deps.Staging,
		images:        deps.Images,
		stagingImages: deps.StagingImages,
		validator:     deps.Validator,
		logger:        deps.Logger,
	}
}

// SetObserver sets the progress observer. A nil observer disables progress.
func (m *Migrator) SetObserver(o Observer) {
	m.observer = o
}

// Persist flushes dirty tags, migrates staged clips and, when every clip
// succeeded, sweeps the staging area. A tag flush failure aborts the pass
// before any clip is touched.
func (m *Migrator) Persist(ctx context.Context) (Result, error) {
	var result Result

	flushed, discarded, err := m.FlushDirtyTags(ctx)
	if err != nil {
		return result, err
	}
	result.FlushedTags = flushed
	result.DiscardedTags = discarded

	migrated, failed, err := m.MigrateClips(ctx)
	if err != nil {
		return result, err
	}
	result.Migrated = migrated
	result.Failed = failed

	if !result.OK() {
		m.logger.Warn("staged clips left for the next pass",
			"failed", len(failed),
			"clip_ids", result.FailedIDs(),
		)
		return result, nil
	}

	m.sweep(ctx)
	return result, nil
}

// FlushDirtyTags creates every dirty reference tag in the primary store.
//
// Tags whose name already exists upstream are deleted from the reference
// store; the others have their dirty flag cleared. Any other create failure
// rolls back the whole flush.
func (m *Migrator) FlushDirtyTags(ctx context.Context) (flushed, discarded []string, err error) {
	dirty, err := m.reference.ReadAllDirtyTags(ctx)
	if err != nil {
		m.logger.Error("failed to read dirty reference tags", "error", err)
		return nil, nil, fmt.Errorf("read dirty tags: %w", err)
	}
	if len(dirty) == 0 {
		return nil, nil, nil
	}

	// Primary commits first so a tag is never cleaned locally before it
	// exists upstream.
	ts, err := store.BeginAll(ctx, m.images, m.staging, m.reference, m.primary)
	if err != nil {
		m.logger.Error("failed to begin tag flush", "error", err)
		return nil, nil, fmt.Errorf("begin tag flush: %w", err)
	}
	defer ts.Cancel() //nolint:errcheck // No-op after commit

	now := time.Now()
	for _, ref := range dirty {
		tag := &domain.Tag{
			ID:        ref.ID,
			Name:      ref.Name,
			IsHidden:  ref.IsHidden,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := m.primary.CreateTag(ctx, tag)
		switch {
		case err == nil:
			flushed = append(flushed, ref.ID)
		case errors.Is(err, store.ErrDuplicateName):
			m.logger.Info("dirty tag name already exists, discarding local tag",
				"tag_id", ref.ID,
				"name", ref.Name,
			)
			discarded = append(discarded, ref.ID)
		case errors.Is(err, store.ErrAlreadyExists):
			// Pushed by an earlier pass whose reference commit was lost.
			flushed = append(flushed, ref.ID)
		default:
			m.logger.Error("failed to create tag", "tag_id", ref.ID, "error", err)
			return nil, nil, fmt.Errorf("create tag %s: %w", ref.ID, err)
		}
	}

	if len(flushed) > 0 {
		if err := m.reference.CleanTags(ctx, flushed); err != nil {
			m.logger.Error("failed to clean reference tags", "tag_ids", flushed, "error", err)
			return nil, nil, fmt.Errorf("clean tags: %w", err)
		}
	}
	if len(discarded) > 0 {
		if err := m.reference.DeleteTags(ctx, discarded); err != nil {
			m.logger.Error("failed to delete duplicate reference tags", "tag_ids", discarded, "error", err)
			return nil, nil, fmt.Errorf("delete duplicate tags: %w", err)
		}
	}

	if err := ts.Commit(); err != nil {
		m.logger.Error("failed to commit tag flush", "error", err)
		return nil, nil, fmt.Errorf("commit tag flush: %w", err)
	}

	m.logger.Info("dirty tags flushed", "flushed", len(flushed), "discarded", len(discarded))
	return flushed, discarded, nil
}

// MigrateClips migrates every staged clip independently. The returned error
// is set only when the staged clips could not be read.
func (m *Migrator) MigrateClips(ctx context.Context) (migrated []string, failed []FailedClip, err error) {
	recipes, err := m.staging.ReadAllClips(ctx)
	if err != nil {
		m.logger.Error("failed to read staged clips", "error", err)
		return nil, nil, fmt.Errorf("read staged clips: %w", err)
	}

	total := len(recipes)
	for i, recipe := range recipes {
		if m.observer != nil {
			m.observer.DidStart(i+1, total)
		}

		if reason, err := m.migrateClip(ctx, recipe); err != nil {
			m.logger.Error("failed to migrate clip",
				"clip_id", recipe.ID,
				"step", reason,
				"error", err,
			)
			failed = append(failed, FailedClip{ClipID: recipe.ID, Reason: reason, Err: err})
			continue
		}
		migrated = append(migrated, recipe.ID)
	}

	if total > 0 {
		m.logger.Info("staged clips migrated", "migrated", len(migrated), "failed", len(failed))
	}
	return migrated, failed, nil
}

// migrateClip returns the failed step alongside the error.
func (m *Migrator) migrateClip(ctx context.Context, recipe *domain.ClipRecipe) (string, error) {
	if m.validator != nil {
		if err := m.validator.Validate(recipe); err != nil {
			return "validate", err
		}
	}

	// Commits run last begun first: primary, then images, then staging. The
	// staged recipe is only deleted once the clip is durable upstream.
	ts, err := store.BeginAll(ctx, m.staging, m.images, m.primary)
	if err != nil {
		return "begin", err
	}
	defer ts.Cancel() //nolint:errcheck // No-op after commit

	if err := m.primary.CreateClip(ctx, recipe.Clip()); err != nil {
		if !errors.Is(err, store.ErrAlreadyExists) || !m.alreadyMigrated(ctx, recipe.ID) {
			return "create_clip", err
		}
		// An earlier pass committed the clip but lost the staging delete.
		m.logger.Info("staged clip already in primary store, finishing migration", "clip_id", recipe.ID)
	}
	if err := m.staging.DeleteClip(ctx, recipe.ID); err != nil {
		return "delete_staged_clip", err
	}

	moved := make([]string, 0, len(recipe.Items))
	for _, item := range recipe.Items {
		if m.moveImage(ctx, recipe.ID, &item) {
			moved = append(moved, item.ImageFileName)
		}
	}

	if err := ts.Commit(); err != nil {
		return "commit", err
	}

	// Staged files go only once the clip is durable, so a failed clip keeps
	// its images for the next pass.
	for _, name := range moved {
		if err := m.stagingImages.Delete(recipe.ID, name); err != nil {
			m.logger.Warn("failed to delete staged image", "clip_id", recipe.ID, "file", name, "error", err)
		}
	}
	if err := m.stagingImages.DeleteAll(recipe.ID); err != nil {
		m.logger.Warn("failed to delete staged image directory", "clip_id", recipe.ID, "error", err)
	}
	return "", nil
}

func (m *Migrator) alreadyMigrated(ctx context.Context, clipID string) bool {
	_, err := m.primary.ReadClip(ctx, clipID)
	return err == nil
}

// moveImage copies one staged image into the primary blob store and reports
// whether it was written. Failures never fail the clip.
func (m *Migrator) moveImage(ctx context.Context, clipID string, item *domain.ClipItemRecipe) bool {
	data, err := m.stagingImages.Read(clipID, item.ImageFileName)
	if errors.Is(err, store.ErrNotFound) {
		m.logger.Debug("staged image missing, migrating clip without it",
			"clip_id", clipID,
			"image_id", item.ImageID,
			"file", item.ImageFileName,
		)
		return false
	}
	if err != nil {
		m.logger.Warn("failed to read staged image",
			"clip_id", clipID,
			"image_id", item.ImageID,
			"error", err,
		)
		return false
	}

	if err := m.images.Create(ctx, &domain.ImageContainer{ID: item.ImageID, Data: data}); err != nil {
		m.logger.Warn("failed to write image",
			"clip_id", clipID,
			"image_id", item.ImageID,
			"error", err,
		)
		return false
	}
	return true
}

// sweep clears the staging area after a fully successful pass.
func (m *Migrator) sweep(ctx context.Context) {
	if err := m.staging.DeleteAll(ctx); err != nil {
		m.logger.Warn("failed to sweep staged clips", "error", err)
	}
	if err := m.stagingImages.DeleteAllInStaging(); err != nil {
		m.logger.Warn("failed to sweep staged images", "error", err)
	}
}
