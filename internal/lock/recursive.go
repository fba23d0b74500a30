// Package lock provides the process-wide re-entrant lock shared by the
// reconciliation and migration passes.
package lock

import (
	"context"
	"sync"
)

// holderKey identifies contexts that hold a particular lock.
type holderKey struct{ l *Recursive }

type holder struct {
	depth int
}

// Recursive is a context-scoped re-entrant mutex.
//
// Go has no goroutine identity, so ownership travels in the context returned
// by Lock. A caller that locks again with that context (or one derived from
// it) re-enters instead of deadlocking; any other context waits.
type Recursive struct {
	sem chan struct{}

	mu    sync.Mutex
	owner *holder
}

// NewRecursive creates an unlocked lock.
func NewRecursive() *Recursive {
	return &Recursive{sem: make(chan struct{}, 1)}
}

// Lock acquires the lock and returns a context carrying ownership.
// It returns ctx.Err() if ctx is done before the lock is free.
// Every successful Lock must be paired with one Unlock.
func (l *Recursive) Lock(ctx context.Context) (context.Context, error) {
	if l.reenter(ctx) {
		return ctx, nil
	}

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx, ctx.Err()
	}
	return l.acquired(ctx), nil
}

// TryLock acquires the lock only if it is free or already held through ctx.
func (l *Recursive) TryLock(ctx context.Context) (context.Context, bool) {
	if l.reenter(ctx) {
		return ctx, true
	}

	select {
	case l.sem <- struct{}{}:
		return l.acquired(ctx), true
	default:
		return ctx, false
	}
}

func (l *Recursive) reenter(ctx context.Context) bool {
	h, ok := ctx.Value(holderKey{l}).(*holder)
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != h {
		return false
	}
	h.depth++
	return true
}

func (l *Recursive) acquired(ctx context.Context) context.Context {
	h := &holder{depth: 1}
	l.mu.Lock()
	l.owner = h
	l.mu.Unlock()
	return context.WithValue(ctx, holderKey{l}, h)
}

// Unlock releases one level of ownership. Unlocking a lock that is not
// held panics, as with sync.Mutex.
func (l *Recursive) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == nil {
		panic("lock: unlock of unlocked Recursive")
	}
	l.owner.depth--
	if l.owner.depth > 0 {
		return
	}
	l.owner = nil
	<-l.sem
}

// Held reports whether ctx currently owns the lock.
func (l *Recursive) Held(ctx context.Context) bool {
	h, ok := ctx.Value(holderKey{l}).(*holder)
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner == h
}
