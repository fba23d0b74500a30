// Package integrity keeps the reference store consistent with the primary
// store.
//
// A pass reads both sides in full, then repairs the reference store inside
// one reference-store transaction: missing mirrors are created, clean mirrors
// are updated field by field, and clean orphans are pruned. Dirty reference
// records hold local edits that have not been pushed yet; they are never
// overwritten or pruned.
package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/store"
)

// Report counts what one pass did.
type Report struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	// Skipped counts dirty records left untouched.
	Skipped int `json:"skipped"`
}

// Add accumulates another report.
func (r Report) Add(o Report) Report {
	return Report{
		Created: r.Created + o.Created,
		Updated: r.Updated + o.Updated,
		Deleted: r.Deleted + o.Deleted,
		Skipped: r.Skipped + o.Skipped,
	}
}

// Changed reports whether the pass wrote anything.
func (r Report) Changed() bool {
	return r.Created+r.Updated+r.Deleted > 0
}

// Reconciler diffs the reference store against the primary store.
type Reconciler struct {
	primary   store.ClipStorage
	reference store.ReferenceClipStorage
	logger    *slog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(primary store.ClipStorage, reference store.ReferenceClipStorage, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		primary:   primary,
		reference: reference,
		logger:    logger,
	}
}

// Reconcile runs the tag pass, then the clip pass. Clip reconciliation
// mirrors tag references, so it is skipped when the tag pass fails.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	tags, err := r.ReconcileTags(ctx)
	if err != nil {
		return tags, err
	}
	clips, err := r.ReconcileClips(ctx)
	return tags.Add(clips), err
}

// ReconcileTags repairs the reference tags.
func (r *Reconciler) ReconcileTags(ctx context.Context) (Report, error) {
	var report Report

	// 1. Read both sides. Nothing is written on a read failure.
	refTags, err := r.reference.ReadAllTags(ctx)
	if err != nil {
		r.logger.Error("failed to read reference tags", "error", err)
		return report, fmt.Errorf("read reference tags: %w", err)
	}
	primaryTags, err := r.primary.ReadAllTags(ctx)
	if err != nil {
		r.logger.Error("failed to read primary tags", "error", err)
		return report, fmt.Errorf("read primary tags: %w", err)
	}

	refByID := make(map[string]*domain.ReferenceTag, len(refTags))
	for _, t := range refTags {
		refByID[t.ID] = t
	}

	// 2. One reference transaction for the whole pass.
	ts, err := store.BeginAll(ctx, r.reference)
	if err != nil {
		r.logger.Error("failed to begin reference transaction", "error", err)
		return report, err
	}
	defer ts.Cancel() //nolint:errcheck // No-op after commit; rollback errors are joined into Commit's

	// 3. Mirror, skip or update every primary tag.
	var missing []*domain.ReferenceTag
	primaryIDs := make(map[string]struct{}, len(primaryTags))
	for _, p := range primaryTags {
		primaryIDs[p.ID] = struct{}{}

		ref, ok := refByID[p.ID]
		switch {
		case !ok:
			missing = append(missing, domain.NewReferenceTag(p))
		case ref.IsDirty:
			report.Skipped++
		default:
			updated, err := r.updateTag(ctx, ref, p)
			if err != nil {
				return Report{}, err
			}
			if updated {
				report.Updated++
			}
		}
	}
	if len(missing) > 0 {
		if err := r.reference.CreateTags(ctx, missing); err != nil {
			r.logger.Error("failed to create reference tags", "count", len(missing), "error", err)
			return Report{}, fmt.Errorf("create reference tags: %w", err)
		}
		report.Created = len(missing)
	}

	// 4. Prune clean orphans. Dirty orphans are unpushed local creations.
	extra := cleanOrphans(refTags, primaryIDs, func(t *domain.ReferenceTag) (string, bool) { return t.ID, t.IsDirty })
	if len(extra) > 0 {
		if err := r.reference.DeleteTags(ctx, extra); err != nil {
			r.logger.Error("failed to delete orphan reference tags", "tag_ids", extra, "error", err)
			return Report{}, fmt.Errorf("delete reference tags: %w", err)
		}
		report.Deleted = len(extra)
	}

	// 5. Commit.
	if err := ts.Commit(); err != nil {
		r.logger.Error("failed to commit tag reconciliation", "error", err)
		return Report{}, fmt.Errorf("commit tag reconciliation: %w", err)
	}

	r.logReport("tags reconciled", report)
	return report, nil
}

func (r *Reconciler) updateTag(ctx context.Context, ref *domain.ReferenceTag, p *domain.Tag) (bool, error) {
	updated := false
	if ref.Name != p.Name {
		if err := r.reference.UpdateTagName(ctx, p.ID, p.Name); err != nil {
			r.logger.Error("failed to update reference tag", "tag_id", p.ID, "field", "name", "error", err)
			return false, fmt.Errorf("update tag %s name: %w", p.ID, err)
		}
		updated = true
	}
	if ref.IsHidden != p.IsHidden {
		if err := r.reference.UpdateTagHidden(ctx, p.ID, p.IsHidden); err != nil {
			r.logger.Error("failed to update reference tag", "tag_id", p.ID, "field", "is_hidden", "error", err)
			return false, fmt.Errorf("update tag %s hidden: %w", p.ID, err)
		}
		updated = true
	}
	return updated, nil
}

// ReconcileClips repairs the reference clips.
func (r *Reconciler) ReconcileClips(ctx context.Context) (Report, error) {
	var report Report

	refClips, err := r.reference.ReadAllClips(ctx)
	if err != nil {
		r.logger.Error("failed to read reference clips", "error", err)
		return report, fmt.Errorf("read reference clips: %w", err)
	}
	primaryClips, err := r.primary.ReadAllClips(ctx)
	if err != nil {
		r.logger.Error("failed to read primary clips", "error", err)
		return report, fmt.Errorf("read primary clips: %w", err)
	}

	refByID := make(map[string]*domain.ReferenceClip, len(refClips))
	for _, c := range refClips {
		refByID[c.ID] = c
	}

	ts, err := store.BeginAll(ctx, r.reference)
	if err != nil {
		r.logger.Error("failed to begin reference transaction", "error", err)
		return report, err
	}
	defer ts.Cancel() //nolint:errcheck // No-op after commit

	var missing []*domain.ReferenceClip
	primaryIDs := make(map[string]struct{}, len(primaryClips))
	for _, p := range primaryClips {
		primaryIDs[p.ID] = struct{}{}

		ref, ok := refByID[p.ID]
		switch {
		case !ok:
			missing = append(missing, domain.NewReferenceClip(p))
		case ref.IsDirty:
			report.Skipped++
		default:
			updated, err := r.updateClip(ctx, ref, domain.NewReferenceClip(p))
			if err != nil {
				return Report{}, err
			}
			if updated {
				report.Updated++
			}
		}
	}
	if len(missing) > 0 {
		if err := r.reference.CreateClips(ctx, missing); err != nil {
			r.logger.Error("failed to create reference clips", "count", len(missing), "error", err)
			return Report{}, fmt.Errorf("create reference clips: %w", err)
		}
		report.Created = len(missing)
	}

	extra := cleanOrphans(refClips, primaryIDs, func(c *domain.ReferenceClip) (string, bool) { return c.ID, c.IsDirty })
	if len(extra) > 0 {
		if err := r.reference.DeleteClips(ctx, extra); err != nil {
			r.logger.Error("failed to delete orphan reference clips", "clip_ids", extra, "error", err)
			return Report{}, fmt.Errorf("delete reference clips: %w", err)
		}
		report.Deleted = len(extra)
	}

	if err := ts.Commit(); err != nil {
		r.logger.Error("failed to commit clip reconciliation", "error", err)
		return Report{}, fmt.Errorf("commit clip reconciliation: %w", err)
	}

	r.logReport("clips reconciled", report)
	return report, nil
}

// updateClip applies each differing field as its own write.
func (r *Reconciler) updateClip(ctx context.Context, ref, want *domain.ReferenceClip) (bool, error) {
	id := want.ID
	fail := func(field string, err error) (bool, error) {
		r.logger.Error("failed to update reference clip", "clip_id", id, "field", field, "error", err)
		return false, fmt.Errorf("update clip %s %s: %w", id, field, err)
	}

	updated := false
	if !equalStringPtr(ref.URL, want.URL) {
		if err := r.reference.UpdateClipURL(ctx, id, want.URL); err != nil {
			return fail("url", err)
		}
		updated = true
	}
	if !equalStringPtr(ref.Description, want.Description) {
		if err := r.reference.UpdateClipDescription(ctx, id, want.Description); err != nil {
			return fail("description", err)
		}
		updated = true
	}
	if ref.IsHidden != want.IsHidden {
		if err := r.reference.UpdateClipHidden(ctx, id, want.IsHidden); err != nil {
			return fail("is_hidden", err)
		}
		updated = true
	}
	if !sameIDSet(ref.TagIDs, want.TagIDs) {
		if err := r.reference.UpdateClipTagIDs(ctx, id, want.TagIDs); err != nil {
			return fail("tag_ids", err)
		}
		updated = true
	}
	if !ref.RegisteredAt.Truncate(time.Second).Equal(want.RegisteredAt.Truncate(time.Second)) {
		if err := r.reference.UpdateClipRegisteredAt(ctx, id, want.RegisteredAt); err != nil {
			return fail("registered_at", err)
		}
		updated = true
	}
	return updated, nil
}

func (r *Reconciler) logReport(msg string, report Report) {
	r.logger.Info(msg,
		"created", report.Created,
		"updated", report.Updated,
		"deleted", report.Deleted,
		"skipped", report.Skipped,
	)
}

// cleanOrphans returns the ids of non-dirty records missing from keep,
// sorted for a stable delete batch.
func cleanOrphans[T any](records []*T, keep map[string]struct{}, key func(*T) (id string, dirty bool)) []string {
	var extra []string
	for _, rec := range records {
		id, dirty := key(rec)
		if dirty {
			continue
		}
		if _, ok := keep[id]; !ok {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return extra
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameIDSet(a, b []string) bool {
	set := func(ids []string) map[string]struct{} {
		m := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			m[id] = struct{}{}
		}
		return m
	}
	sa, sb := set(a), set(b)
	if len(sa) != len(sb) {
		return false
	}
	for id := range sa {
		if _, ok := sb[id]; !ok {
			return false
		}
	}
	return true
}
