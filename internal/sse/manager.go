package sse

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/clipbox/clipbox/internal/id"
)

const (
	// historySize is how many numbered events are kept for replay.
	historySize  = 128
	clientBuffer = 64
)

// Client is one connected subscriber.
type Client struct {
	ID          string
	ConnectedAt time.Time

	events chan Event
	done   chan struct{}
	types  []EventType
}

// Events delivers the client's events. It is closed on disconnect.
func (c *Client) Events() <-chan Event { return c.events }

// Done is closed when the manager drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) wants(t EventType) bool {
	return len(c.types) == 0 || slices.Contains(c.types, t)
}

func (c *Client) close() {
	close(c.done)
	close(c.events)
}

// Subscription narrows what a client receives.
type Subscription struct {
	// Types limits delivery to these event types. Empty means all.
	Types []EventType
	// LastEventID replays retained events numbered after it.
	LastEventID uint64
}

// Manager numbers events, keeps a short replay history and fans events out
// to clients. Slow clients lose events rather than block the loop.
type Manager struct {
	logger *slog.Logger
	events chan Event
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients map[string]*Client
	seq     uint64
	history []Event

	closeMu sync.RWMutex
	closed  bool

	stateMu    sync.RWMutex
	persisting bool
}

var _ Emitter = (*Manager)(nil)

// NewManager creates a Manager. Call Start to begin delivery.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:  logger,
		events:  make(chan Event, 256),
		clients: make(map[string]*Client),
	}
}

// Start runs the delivery loop until ctx ends or Shutdown drains it.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	for {
		select {
		case event, ok := <-m.events:
			if !ok {
				m.dropAll()
				return
			}
			m.deliver(event)
		case <-ctx.Done():
			m.dropAll()
			return
		}
	}
}

// Shutdown refuses new events, waits for queued ones to be delivered and
// drops every client.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.events)
	m.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("SSE drain timed out, queued events lost")
	}
	return nil
}

// Emit queues an event. Events emitted after Shutdown are dropped.
func (m *Manager) Emit(event Event) {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.events <- event:
	default:
		m.logger.Error("SSE queue full, dropping event", slog.String("event_type", string(event.Type)))
	}
}

func (m *Manager) deliver(event Event) {
	switch event.Type { //nolint:exhaustive // only persist boundaries change state
	case EventPersistStarted:
		m.setPersisting(true)
	case EventPersistCompleted:
		m.setPersisting(false)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if event.Type != EventHeartbeat {
		m.seq++
		event.ID = m.seq
		m.history = append(m.history, event)
		if len(m.history) > historySize {
			m.history = slices.Delete(m.history, 0, len(m.history)-historySize)
		}
	}

	dropped := 0
	for _, c := range m.clients {
		if !c.wants(event.Type) {
			continue
		}
		select {
		case c.events <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		m.logger.Warn("dropped event for slow clients",
			slog.String("event_type", string(event.Type)),
			slog.Int("clients", dropped))
	}
}

// Connect registers a client and returns the retained events it missed.
// No event is both replayed and delivered.
func (m *Manager) Connect(sub Subscription) (*Client, []Event, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, nil, err
	}
	c := &Client{
		ID:          clientID,
		ConnectedAt: time.Now(),
		events:      make(chan Event, clientBuffer),
		done:        make(chan struct{}),
		types:       sub.Types,
	}

	m.mu.Lock()
	var replay []Event
	if sub.LastEventID > 0 {
		for _, e := range m.history {
			if e.ID > sub.LastEventID && c.wants(e.Type) {
				replay = append(replay, e)
			}
		}
	}
	m.clients[c.ID] = c
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", c.ID),
		slog.Int("replayed", len(replay)),
		slog.Int("total_clients", total))
	return c, replay, nil
}

// Disconnect removes a client. Unknown ids are ignored.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
		c.close()
	}
	m.mu.Unlock()

	if ok {
		m.logger.Info("SSE client disconnected",
			slog.String("client_id", clientID),
			slog.Duration("duration", time.Since(c.ConnectedAt)))
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// LastEventID returns the id of the newest numbered event.
func (m *Manager) LastEventID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// IsPersisting reports whether a persist pass is running, as last seen by
// the delivery loop.
func (m *Manager) IsPersisting() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.persisting
}

func (m *Manager) setPersisting(v bool) {
	m.stateMu.Lock()
	m.persisting = v
	m.stateMu.Unlock()
}

func (m *Manager) dropAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		c.close()
	}
	clear(m.clients)
}
