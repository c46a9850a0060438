package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/portfolio-api/internal/application/feed"
	"github.com/portfolio-api/internal/transport/http/sse"
)

const defaultHeartbeat = 25 * time.Second

type feedService interface {
	Snapshot() feed.Snapshot
	Dismiss(itemID string) error
	ClearAll()
	Action(itemID string) (string, error)
}

type permissionStore interface {
	State() feed.PermissionState
	SetPermission(p feed.Permission)
}

type eventHub interface {
	Subscribe() (uint64, <-chan sse.Event, error)
	Unsubscribe(id uint64)
}

// FeedHandler exposes the owner's notification feed.
type FeedHandler struct {
	feed      feedService
	desktop   permissionStore
	hub       eventHub
	heartbeat time.Duration
}

func NewFeedHandler(f feedService, desktop permissionStore, hub eventHub) *FeedHandler {
	return &FeedHandler{feed: f, desktop: desktop, hub: hub, heartbeat: defaultHeartbeat}
}

func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.feed.Snapshot())
}

func (h *FeedHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	h.feed.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *FeedHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.Dismiss(chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FeedHandler) Action(w http.ResponseWriter, r *http.Request) {
	url, err := h.feed.Action(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActionEnvelope{URL: url})
}

func (h *FeedHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Permission string `json:"permission"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := feed.ParsePermission(body.Permission)
	if err != nil {
		httpError(w, err)
		return
	}
	h.desktop.SetPermission(p)
	writeJSON(w, http.StatusOK, h.desktop.State())
}

// Stream sends the current feed and permission state, then every later
// feed, desktop and permission event, until the client goes away.
func (h *FeedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, events, err := h.hub.Subscribe()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "event stream closed")
		return
	}
	defer h.hub.Unsubscribe(id)

	rc := http.NewResponseController(w)
	// The server's write timeout would cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, initial := range []struct {
		name string
		data any
	}{
		{feed.EventFeed, h.feed.Snapshot()},
		{feed.EventPermission, h.desktop.State()},
	} {
		ev, err := sse.NewEvent(initial.name, initial.data)
		if err != nil {
			slog.Error("feed stream", "err", err)
			return
		}
		if _, err := ev.WriteTo(w); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		slog.Warn("feed stream: flush unsupported", "err", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, err := ev.WriteTo(w); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
