package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/portfolio-api/internal/application/feed"
	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
	"github.com/portfolio-api/internal/gateway/memory"
	"github.com/portfolio-api/internal/transport/http/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedFixture struct {
	feed    *feed.Feed
	desktop *feed.BrowserDesktop
	hub     *sse.Hub
	handler *FeedHandler
	router  *chi.Mux
}

func newFeedFixture(t *testing.T) *feedFixture {
	t.Helper()
	hub := sse.NewHub(sse.DefaultBuffer)
	desktop := feed.NewBrowserDesktop(hub)
	f := feed.New(memory.New(), feed.Options{Desktop: desktop, OwnerName: "Sam", OwnerPhone: "+15550100"})
	h := NewFeedHandler(f, desktop, hub)
	h.heartbeat = 20 * time.Millisecond

	r := chi.NewRouter()
	r.Get("/feed", h.Get)
	r.Delete("/feed", h.ClearAll)
	r.Get("/feed/stream", h.Stream)
	r.Put("/feed/permission", h.SetPermission)
	r.Delete("/feed/{id}", h.Dismiss)
	r.Get("/feed/{id}/action", h.Action)

	t.Cleanup(func() {
		f.ClearAll()
		hub.Close()
	})
	return &feedFixture{feed: f, desktop: desktop, hub: hub, handler: h, router: r}
}

func (fx *feedFixture) addContact(t *testing.T) feed.Item {
	t.Helper()
	it, err := fx.feed.OnFeedEvent(domain.KindNewContact, gateway.Record{
		"id": "c1", "name": "Jane Doe", "email": "jane@x.com", "subject": "Hello", "message": "Hi there",
	})
	require.NoError(t, err)
	return it
}

func TestFeedGet_Snapshot(t *testing.T) {
	fx := newFeedFixture(t)
	fx.addContact(t)

	rr := doJSON(t, fx.router, http.MethodGet, "/feed", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Visible bool `json:"visible"`
		Items   []struct {
			Kind   string         `json:"kind"`
			Read   bool           `json:"read"`
			Record map[string]any `json:"record"`
		} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.True(t, body.Visible)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "new_contact", body.Items[0].Kind)
	assert.False(t, body.Items[0].Read)
	assert.Equal(t, "Jane Doe", body.Items[0].Record["name"])
}

func TestFeedDismiss(t *testing.T) {
	fx := newFeedFixture(t)
	it := fx.addContact(t)

	rr := doJSON(t, fx.router, http.MethodDelete, "/feed/"+it.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, fx.feed.Items())

	rr = doJSON(t, fx.router, http.MethodDelete, "/feed/"+it.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFeedClearAll(t *testing.T) {
	fx := newFeedFixture(t)
	fx.addContact(t)
	fx.addContact(t)

	rr := doJSON(t, fx.router, http.MethodDelete, "/feed", nil)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, fx.feed.Visible())
}

func TestFeedAction_ContactRepliesByMail(t *testing.T) {
	fx := newFeedFixture(t)
	it := fx.addContact(t)

	rr := doJSON(t, fx.router, http.MethodGet, "/feed/"+it.ID+"/action", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var env ActionEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.True(t, strings.HasPrefix(env.URL, "mailto:jane@x.com"), env.URL)
}

func TestFeedSetPermission(t *testing.T) {
	fx := newFeedFixture(t)

	rr := doJSON(t, fx.router, http.MethodPut, "/feed/permission", map[string]string{"permission": "granted"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, feed.PermissionGranted, fx.desktop.Permission())

	rr = doJSON(t, fx.router, http.MethodPut, "/feed/permission", map[string]string{"permission": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, feed.PermissionGranted, fx.desktop.Permission())
}

// nextEvent returns the next event name on the stream, skipping heartbeats.
func nextEvent(t *testing.T, sc *bufio.Scanner) string {
	t.Helper()
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			return name
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return ""
}

func TestFeedStream_InitialStateThenLiveEvents(t *testing.T) {
	fx := newFeedFixture(t)
	srv := httptest.NewServer(fx.router)
	defer srv.Close()
	defer fx.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/feed/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	sc := bufio.NewScanner(resp.Body)
	assert.Equal(t, feed.EventFeed, nextEvent(t, sc))
	assert.Equal(t, feed.EventPermission, nextEvent(t, sc))

	fx.hub.Publish(feed.EventDesktop, feed.Notification{Title: "New Contact"})
	assert.Equal(t, feed.EventDesktop, nextEvent(t, sc))
}

func TestFeedStream_ClosedHub(t *testing.T) {
	fx := newFeedFixture(t)
	fx.hub.Close()

	rr := doJSON(t, fx.router, http.MethodGet, "/feed/stream", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
