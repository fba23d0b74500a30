package watcher

import "time"

// EventType represents the type of staging-area change.
type EventType int

const (
	// EventAdded is emitted when a new file has settled.
	EventAdded EventType = iota
	// EventModified is emitted when an existing file changes and settles.
	EventModified
	// EventRemoved is emitted when a file is deleted.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a file system event.
type Event struct {
	Type    EventType
	Path    string
	Size    int64
	ModTime time.Time
}

// IsWrite reports whether the event signals new or changed content.
// Removals are produced by migration itself and never trigger a persist.
func (e Event) IsWrite() bool {
	return e.Type == EventAdded || e.Type == EventModified
}
