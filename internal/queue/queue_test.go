package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipbox/clipbox/internal/logger"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q := New(logger.Discard())
	t.Cleanup(q.Close)
	return q
}

func TestRun_ReturnsResult(t *testing.T) {
	q := newTestQueue(t)

	got, err := Run(context.Background(), q, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = Run(context.Background(), q, func(context.Context) (string, error) { return "", errors.New("boom") })
	assert.EqualError(t, err, "boom")
}

func TestDo_Serializes(t *testing.T) {
	q := newTestQueue(t)

	var (
		running atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load(), "work must never overlap")
}

func TestDo_NestedRunsInline(t *testing.T) {
	q := newTestQueue(t)

	done := make(chan error, 1)
	go func() {
		done <- q.Do(context.Background(), func(ctx context.Context) error {
			v, err := Run(ctx, q, func(context.Context) (int, error) { return 7, nil })
			if err != nil {
				return err
			}
			if v != 7 {
				return errors.New("wrong value")
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("nested call deadlocked")
	}
}

func TestDo_ContextCancelledBeforeStart(t *testing.T) {
	q := newTestQueue(t)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var ran atomic.Bool
	err := q.Do(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran.Load())
}

func TestDo_RecoversPanic(t *testing.T) {
	q := newTestQueue(t)

	err := q.Do(context.Background(), func(context.Context) error { panic("bad work") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad work")

	// The worker survives.
	assert.NoError(t, q.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestClose(t *testing.T) {
	q := New(logger.Discard())
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Do(context.Background(), func(context.Context) error { return nil }), ErrClosed)
}
