package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clipbox/clipbox/internal/lock"
	"github.com/clipbox/clipbox/internal/migration"
	"github.com/clipbox/clipbox/internal/sse"
)

// PersistObserver receives per-clip progress of a persist pass.
type PersistObserver = migration.Observer

type persistState int

const (
	persistIdle persistState = iota
	persistRunning
)

// PersistOutcome describes one persist request.
type PersistOutcome struct {
	// Skipped is set when another pass was already in flight.
	Skipped bool
	Result  migration.Result
	Err     error
}

// OK reports success. A skipped request counts as success: the pass in
// flight will handle whatever is staged.
func (o PersistOutcome) OK() bool {
	return o.Skipped || (o.Err == nil && o.Result.OK())
}

// PersistService moves staged clips into the primary store.
type PersistService struct {
	lock     *lock.Recursive
	migrator *migration.Migrator
	events   sse.Emitter
	logger   *slog.Logger

	mu       sync.Mutex
	state    persistState
	observer PersistObserver
}

// NewPersistService creates a new persist service.
func NewPersistService(l *lock.Recursive, migrator *migration.Migrator, events sse.Emitter, logger *slog.Logger) *PersistService {
	s := &PersistService{
		lock:     l,
		migrator: migrator,
		events:   events,
		logger:   logger,
	}
	migrator.SetObserver(migration.ObserverFunc(s.didStart))
	return s
}

// SetObserver sets the progress observer. Pass nil to remove it.
func (s *PersistService) SetObserver(o PersistObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

func (s *PersistService) didStart(index, total int) {
	s.events.Emit(sse.NewPersistProgressEvent(index, total))

	s.mu.Lock()
	o := s.observer
	s.mu.Unlock()
	if o != nil {
		o.DidStart(index, total)
	}
}

// IsRunning reports whether a pass is in flight.
func (s *PersistService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == persistRunning
}

// PersistIfNeeded runs a persist pass and reports whether every staged clip
// was migrated. A call made while a pass is in flight returns true at once
// without touching any store.
func (s *PersistService) PersistIfNeeded(ctx context.Context) bool {
	return s.Persist(ctx, "manual").OK()
}

// Persist runs a persist pass on behalf of trigger.
func (s *PersistService) Persist(ctx context.Context, trigger string) PersistOutcome {
	s.mu.Lock()
	if s.state == persistRunning {
		s.mu.Unlock()
		s.logger.Debug("persist already running, skipping", "trigger", trigger)
		return PersistOutcome{Skipped: true}
	}
	s.state = persistRunning
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = persistIdle
		s.mu.Unlock()
	}()

	ctx, err := s.lock.Lock(ctx)
	if err != nil {
		return PersistOutcome{Err: err}
	}
	defer s.lock.Unlock()

	s.events.Emit(sse.NewPersistStartedEvent(trigger))
	result, err := s.migrator.Persist(ctx)

	data := sse.PersistCompletedEventData{
		OK:            err == nil && result.OK(),
		Migrated:      len(result.Migrated),
		FailedClipIDs: result.FailedIDs(),
	}
	if err != nil {
		data.Error = err.Error()
		s.logger.Error("persist pass failed", "trigger", trigger, "error", err)
	}
	s.events.Emit(sse.NewPersistCompletedEvent(data))

	return PersistOutcome{Result: result, Err: err}
}
