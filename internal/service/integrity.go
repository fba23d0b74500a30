package service

import (
	"context"
	"log/slog"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/integrity"
	"github.com/clipbox/clipbox/internal/lock"
	"github.com/clipbox/clipbox/internal/sse"
)

// IntegrityService keeps the reference store consistent with the primary
// store. Every pass runs under the coordinator lock.
type IntegrityService struct {
	lock       *lock.Recursive
	reconciler *integrity.Reconciler
	dedup      *integrity.Deduplicator
	events     sse.Emitter
	logger     *slog.Logger
}

// NewIntegrityService creates a new integrity service.
func NewIntegrityService(
	l *lock.Recursive,
	reconciler *integrity.Reconciler,
	dedup *integrity.Deduplicator,
	events sse.Emitter,
	logger *slog.Logger,
) *IntegrityService {
	return &IntegrityService{
		lock:       l,
		reconciler: reconciler,
		dedup:      dedup,
		events:     events,
		logger:     logger,
	}
}

// ValidateAndFixIntegrityIfNeeded runs a reconciliation pass. Failures are
// logged; the next trigger retries from scratch.
func (s *IntegrityService) ValidateAndFixIntegrityIfNeeded(ctx context.Context) {
	_, _ = s.Reconcile(ctx) //nolint:errcheck // Logged by the reconciler
}

// Reconcile runs a reconciliation pass and returns its report.
func (s *IntegrityService) Reconcile(ctx context.Context) (integrity.Report, error) {
	ctx, err := s.lock.Lock(ctx)
	if err != nil {
		return integrity.Report{}, err
	}
	defer s.lock.Unlock()

	return s.reconcileLocked(ctx)
}

func (s *IntegrityService) reconcileLocked(ctx context.Context) (integrity.Report, error) {
	report, err := s.reconciler.Reconcile(ctx)

	data := sse.ReconcileCompletedEventData{
		Created: report.Created,
		Updated: report.Updated,
		Deleted: report.Deleted,
		Skipped: report.Skipped,
	}
	if err != nil {
		data.Error = err.Error()
	}
	s.events.Emit(sse.NewReconcileCompletedEvent(data))
	return report, err
}

// DidUpdateTags handles a remote change delivery for tags.
func (s *IntegrityService) DidUpdateTags(ctx context.Context, changes domain.ChangeSet) error {
	return s.DidReceiveRemoteChanges(ctx, domain.RemoteChanges{Tags: changes})
}

// DidUpdateAlbumItems handles a remote change delivery for album items.
func (s *IntegrityService) DidUpdateAlbumItems(ctx context.Context, changes domain.ChangeSet) error {
	return s.DidReceiveRemoteChanges(ctx, domain.RemoteChanges{AlbumItems: changes})
}

// DidReceiveRemoteChanges deduplicates forked records, then reconciles,
// all under one hold of the lock. A deduplication failure skips the
// reconciliation; the next delivery or foreground tick retries.
func (s *IntegrityService) DidReceiveRemoteChanges(ctx context.Context, changes domain.RemoteChanges) error {
	if changes.IsEmpty() {
		return nil
	}

	ctx, err := s.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer s.lock.Unlock()

	if err := s.dedup.DeduplicateTags(ctx, changes.Tags); err != nil {
		return err
	}
	if err := s.dedup.DeduplicateAlbumItems(ctx, changes.AlbumItems); err != nil {
		return err
	}

	_, err = s.reconcileLocked(ctx)
	return err
}
