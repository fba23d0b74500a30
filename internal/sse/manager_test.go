package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipbox/clipbox/internal/logger"
)

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e := <-c.Events():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestManager_BroadcastsToClients(t *testing.T) {
	m := startManager(t)

	c1, _, err := m.Connect(Subscription{})
	require.NoError(t, err)
	c2, _, err := m.Connect(Subscription{})
	require.NoError(t, err)
	assert.Equal(t, 2, m.ClientCount())

	m.Emit(NewPersistProgressEvent(1, 3))

	for _, c := range []*Client{c1, c2} {
		e := receive(t, c)
		assert.Equal(t, EventPersistProgress, e.Type)
		assert.Equal(t, uint64(1), e.ID)
		assert.Equal(t, PersistProgressEventData{Index: 1, Total: 3}, e.Data)
	}

	m.Disconnect(c1.ID)
	m.Disconnect(c1.ID)
	assert.Equal(t, 1, m.ClientCount())
}

func TestManager_FiltersByType(t *testing.T) {
	m := startManager(t)
	c, _, err := m.Connect(Subscription{Types: []EventType{EventReconcileCompleted}})
	require.NoError(t, err)

	m.Emit(NewPersistProgressEvent(1, 1))
	m.Emit(NewReconcileCompletedEvent(ReconcileCompletedEventData{Deleted: 1}))

	e := receive(t, c)
	assert.Equal(t, EventReconcileCompleted, e.Type)
	assert.Equal(t, uint64(2), e.ID, "filtered events still consume ids")
}

func TestManager_ReplaysMissedEvents(t *testing.T) {
	m := startManager(t)
	watcher, _, err := m.Connect(Subscription{})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		m.Emit(NewPersistProgressEvent(i, 3))
		receive(t, watcher)
	}
	m.Emit(NewHeartbeatEvent())
	hb := receive(t, watcher)
	assert.Zero(t, hb.ID)
	assert.Equal(t, uint64(3), m.LastEventID())

	_, replay, err := m.Connect(Subscription{LastEventID: 1})
	require.NoError(t, err)
	require.Len(t, replay, 2)
	assert.Equal(t, uint64(2), replay[0].ID)
	assert.Equal(t, uint64(3), replay[1].ID)

	_, replay, err = m.Connect(Subscription{})
	require.NoError(t, err)
	assert.Empty(t, replay, "fresh clients get no history")
}

func TestManager_HistoryIsBounded(t *testing.T) {
	m := startManager(t)
	c, _, err := m.Connect(Subscription{})
	require.NoError(t, err)

	for i := range historySize + 10 {
		m.Emit(NewPersistProgressEvent(i+1, historySize+10))
		receive(t, c)
	}

	_, replay, err := m.Connect(Subscription{LastEventID: 1})
	require.NoError(t, err)
	assert.Len(t, replay, historySize)
	assert.Equal(t, uint64(11), replay[0].ID)
}

func TestManager_TracksPersistState(t *testing.T) {
	m := startManager(t)
	c, _, err := m.Connect(Subscription{})
	require.NoError(t, err)

	m.Emit(NewPersistStartedEvent("foreground"))
	receive(t, c)
	assert.True(t, m.IsPersisting())

	m.Emit(NewPersistCompletedEvent(PersistCompletedEventData{OK: true}))
	receive(t, c)
	assert.False(t, m.IsPersisting())
}

func TestManager_ShutdownDrainsAndDropsLateEvents(t *testing.T) {
	m := NewManager(logger.Discard())
	go m.Start(context.Background())

	c, _, err := m.Connect(Subscription{})
	require.NoError(t, err)

	m.Emit(NewReconcileCompletedEvent(ReconcileCompletedEventData{Created: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	e, ok := <-c.Events()
	require.True(t, ok, "queued event delivered before close")
	assert.Equal(t, EventReconcileCompleted, e.Type)

	_, ok = <-c.Events()
	assert.False(t, ok, "client closed after drain")

	assert.NotPanics(t, func() { m.Emit(NewHeartbeatEvent()) })
	assert.NoError(t, m.Shutdown(ctx))
}

func TestParseTypes(t *testing.T) {
	types, err := ParseTypes("")
	require.NoError(t, err)
	assert.Empty(t, types)

	types, err = ParseTypes("heartbeat, maintenance.persist_*")
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventHeartbeat, EventPersistStarted, EventPersistProgress, EventPersistCompleted}, types)

	_, err = ParseTypes("clips.created")
	assert.Error(t, err)
	_, err = ParseTypes("nothing.*")
	assert.Error(t, err)
}

func TestHandler_StreamsAndReplays(t *testing.T) {
	m := startManager(t)
	seed, _, err := m.Connect(Subscription{})
	require.NoError(t, err)
	m.Emit(NewPersistStartedEvent("api"))
	receive(t, seed)

	srv := httptest.NewServer(NewHandler(m, logger.Discard()))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"?types=maintenance.*", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "0")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return m.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	m.Emit(NewReconcileCompletedEvent(ReconcileCompletedEventData{Updated: 4}))

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if strings.HasPrefix(sc.Text(), "event: "+string(EventReconcileCompleted)) {
			break
		}
	}
	assert.Contains(t, lines, "retry: 5000")
	assert.Contains(t, lines, "id: 2")
	assert.NotContains(t, lines, "id: 1", "last id 0 means no replay")
}

func TestHandler_ReplaysAfterLastEventID(t *testing.T) {
	m := startManager(t)
	seed, _, err := m.Connect(Subscription{})
	require.NoError(t, err)
	m.Emit(NewPersistStartedEvent("api"))
	m.Emit(NewPersistCompletedEvent(PersistCompletedEventData{OK: true}))
	receive(t, seed)
	receive(t, seed)

	srv := httptest.NewServer(NewHandler(m, logger.Discard()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?last_event_id=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if sc.Text() == "id: 2" {
			require.True(t, sc.Scan())
			assert.Equal(t, "event: "+string(EventPersistCompleted), sc.Text())
			return
		}
	}
	t.Fatal("replayed event not received")
}

func TestHandler_RejectsBadQuery(t *testing.T) {
	m := startManager(t)
	h := NewHandler(m, logger.Discard())

	for _, target := range []string{"/?types=bogus", "/?last_event_id=abc"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}
