package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 60 * time.Second
)

// Handler streams events over one HTTP connection.
//
// Query parameter "types" narrows the stream (see ParseTypes). Reconnecting
// clients send the Last-Event-ID header, or the "last_event_id" query
// parameter, to receive retained events they missed.
type Handler struct {
	manager   *Manager
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler creates a Handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger, heartbeat: heartbeatInterval}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub, err := subscriptionFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	client, replay, err := h.manager.Connect(sub)
	if err != nil {
		h.logger.Error("register SSE client", slog.String("error", err.Error()))
		return
	}
	defer h.manager.Disconnect(client.ID)
	log := h.logger.With(slog.String("client_id", client.ID))

	send := func(e Event) bool {
		if err := writeEvent(w, e); err != nil {
			log.Debug("SSE write failed", slog.String("error", err.Error()))
			return false
		}
		if err := rc.Flush(); err != nil {
			return false
		}
		// Not every ResponseWriter supports deadlines.
		_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
		return true
	}

	// Reconnect delay for EventSource clients.
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", (5 * time.Second).Milliseconds()); err != nil {
		return
	}
	for _, e := range replay {
		if !send(e) {
			return
		}
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-client.Events():
			if !ok || !send(e) {
				return
			}
		case <-ticker.C:
			if !send(NewHeartbeatEvent()) {
				return
			}
		case <-client.Done():
			return
		case <-r.Context().Done():
			return
		}
	}
}

func subscriptionFrom(r *http.Request) (Subscription, error) {
	var sub Subscription
	types, err := ParseTypes(r.URL.Query().Get("types"))
	if err != nil {
		return sub, err
	}
	sub.Types = types

	last := r.Header.Get("Last-Event-ID")
	if last == "" {
		last = r.URL.Query().Get("last_event_id")
	}
	if last != "" {
		n, err := strconv.ParseUint(last, 10, 64)
		if err != nil {
			return sub, fmt.Errorf("invalid last event id %q", last)
		}
		sub.LastEventID = n
	}
	return sub, nil
}

// writeEvent writes one frame: optional id, event name and JSON data.
func writeEvent(w io.Writer, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if e.ID > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", e.ID); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
