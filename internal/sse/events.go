// Package sse broadcasts maintenance progress to connected clients as
// Server-Sent Events.
package sse

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventPersistStarted is sent when a persist pass begins.
	EventPersistStarted EventType = "maintenance.persist_started"
	// EventPersistProgress is sent before each staged clip is migrated.
	EventPersistProgress EventType = "maintenance.persist_progress"
	// EventPersistCompleted is sent when a persist pass ends, successful or not.
	EventPersistCompleted EventType = "maintenance.persist_completed"
	// EventReconcileCompleted is sent when a reconciliation pass ends.
	EventReconcileCompleted EventType = "maintenance.reconcile_completed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// ID is assigned by the Manager on delivery; heartbeats stay unnumbered.
type Event struct {
	ID        uint64    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

var knownTypes = []EventType{
	EventPersistStarted,
	EventPersistProgress,
	EventPersistCompleted,
	EventReconcileCompleted,
	EventHeartbeat,
}

// ParseTypes parses a comma-separated list of event types.
// A "maintenance.*" style suffix wildcard expands to every matching type.
func ParseTypes(list string) ([]EventType, error) {
	var out []EventType
	for raw := range strings.SplitSeq(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(raw, "*"); ok {
			n := len(out)
			for _, t := range knownTypes {
				if strings.HasPrefix(string(t), prefix) {
					out = append(out, t)
				}
			}
			if len(out) == n {
				return nil, fmt.Errorf("no event types match %q", raw)
			}
			continue
		}
		t := EventType(raw)
		if !slices.Contains(knownTypes, t) {
			return nil, fmt.Errorf("unknown event type %q", raw)
		}
		out = append(out, t)
	}
	return out, nil
}

// Emitter receives events. The Manager implements it for production.
type Emitter interface {
	Emit(event Event)
}

// NoopEmitter discards events.
type NoopEmitter struct{}

// Emit discards the event.
func (NoopEmitter) Emit(Event) {}

// PersistStartedEventData is the data payload for persist start events.
type PersistStartedEventData struct {
	StartedAt time.Time `json:"started_at"`
	Trigger   string    `json:"trigger"`
}

// PersistProgressEventData is the data payload for persist progress events.
// Index is 1-based.
type PersistProgressEventData struct {
	Index int `json:"index"`
	Total int `json:"total"`
}

// PersistCompletedEventData is the data payload for persist completion events.
type PersistCompletedEventData struct {
	CompletedAt   time.Time `json:"completed_at"`
	OK            bool      `json:"ok"`
	Migrated      int       `json:"migrated"`
	FailedClipIDs []string  `json:"failed_clip_ids,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// ReconcileCompletedEventData is the data payload for reconcile completion events.
type ReconcileCompletedEventData struct {
	CompletedAt time.Time `json:"completed_at"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Deleted     int       `json:"deleted"`
	Skipped     int       `json:"skipped"`
	Error       string    `json:"error,omitempty"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// NewPersistStartedEvent creates a persist start event.
func NewPersistStartedEvent(trigger string) Event {
	return newEvent(EventPersistStarted, PersistStartedEventData{StartedAt: time.Now(), Trigger: trigger})
}

// NewPersistProgressEvent creates a persist progress event.
func NewPersistProgressEvent(index, total int) Event {
	return newEvent(EventPersistProgress, PersistProgressEventData{Index: index, Total: total})
}

// NewPersistCompletedEvent creates a persist completion event.
func NewPersistCompletedEvent(data PersistCompletedEventData) Event {
	data.CompletedAt = time.Now()
	return newEvent(EventPersistCompleted, data)
}

// NewReconcileCompletedEvent creates a reconcile completion event.
func NewReconcileCompletedEvent(data ReconcileCompletedEventData) Event {
	data.CompletedAt = time.Now()
	return newEvent(EventReconcileCompleted, data)
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}
