package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestKeyed_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial triggers", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst is throttled", rps: 1, burst: 2, calls: 5, wantPass: 2},
		{name: "zero rate disables throttling", rps: 0, burst: 1, calls: 10, wantPass: 10},
		{name: "burst below one is raised", rps: 1, burst: 0, calls: 2, wantPass: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := New(tt.rps, tt.burst)

			passed := 0
			for range tt.calls {
				if k.Allow("watcher") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyed_IndependentKeys(t *testing.T) {
	k := Every(time.Hour)

	if !k.Allow("watcher") {
		t.Fatal("first watcher trigger should pass")
	}
	if k.Allow("watcher") {
		t.Error("watcher should be throttled")
	}
	if !k.Allow("foreground") {
		t.Error("foreground should be independent of watcher")
	}
	if k.Len() != 2 {
		t.Errorf("Len() = %d, want 2", k.Len())
	}
}

func TestKeyed_WaitContextCancelled(t *testing.T) {
	k := New(0.1, 1)
	k.Allow("remote")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := k.Wait(ctx, "remote"); err == nil {
		t.Error("Wait() should fail when context is done first")
	}
}
