package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursive_Reentrant(t *testing.T) {
	l := NewRecursive()

	ctx, err := l.Lock(context.Background())
	require.NoError(t, err)

	inner, err := l.Lock(ctx)
	require.NoError(t, err)
	assert.True(t, l.Held(inner))

	l.Unlock()
	assert.True(t, l.Held(ctx), "outer hold survives inner unlock")

	l.Unlock()
	assert.False(t, l.Held(ctx))

	// Free again.
	_, ok := l.TryLock(context.Background())
	assert.True(t, ok)
	l.Unlock()
}

func TestRecursive_OtherContextWaits(t *testing.T) {
	l := NewRecursive()

	_, err := l.Lock(context.Background())
	require.NoError(t, err)

	_, ok := l.TryLock(context.Background())
	assert.False(t, ok)

	acquired := make(chan struct{})
	go func() {
		_, err := l.Lock(context.Background())
		if err == nil {
			close(acquired)
			l.Unlock()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(30 * time.Millisecond):
	}

	l.Unlock()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestRecursive_ContextDone(t *testing.T) {
	l := NewRecursive()

	_, err := l.Lock(context.Background())
	require.NoError(t, err)
	defer l.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecursive_StaleContextDoesNotReenter(t *testing.T) {
	l := NewRecursive()

	stale, err := l.Lock(context.Background())
	require.NoError(t, err)
	l.Unlock()

	_, err = l.Lock(context.Background())
	require.NoError(t, err)
	defer l.Unlock()

	_, ok := l.TryLock(stale)
	assert.False(t, ok, "a released holder must not re-enter a new owner's lock")
}

func TestRecursive_UnlockUnlockedPanics(t *testing.T) {
	l := NewRecursive()
	assert.Panics(t, l.Unlock)
}
