package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_FanOut(t *testing.T) {
	h := NewHub(4)
	_, a, err := h.Subscribe()
	require.NoError(t, err)
	_, b, err := h.Subscribe()
	require.NoError(t, err)

	h.Publish("feed", map[string]bool{"visible": true})

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, "feed", ev.Name)
		assert.JSONEq(t, `{"visible":true}`, string(ev.Data))
	}
	st := h.Stats()
	assert.Equal(t, uint64(1), st.Published)
	assert.Equal(t, uint64(2), st.Sent)
	assert.Equal(t, 2, st.Clients)
}

func TestHub_DropsForFullClient(t *testing.T) {
	h := NewHub(1)
	_, slow, err := h.Subscribe()
	require.NoError(t, err)

	h.Publish("feed", 1)
	h.Publish("feed", 2)

	assert.Equal(t, "1", string((<-slow).Data))
	assert.Equal(t, uint64(1), h.Stats().Dropped)
}

func TestHub_UnsubscribeAndClose(t *testing.T) {
	h := NewHub(1)
	id, ch, err := h.Subscribe()
	require.NoError(t, err)

	h.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	h.Unsubscribe(id)

	_, ch2, err := h.Subscribe()
	require.NoError(t, err)
	h.Close()
	_, open = <-ch2
	assert.False(t, open)

	_, _, err = h.Subscribe()
	assert.ErrorIs(t, err, ErrHubClosed)
	h.Close()
}

func TestEvent_WriteTo(t *testing.T) {
	var b strings.Builder
	_, err := Event{Name: "desktop", Data: []byte("{\"a\":1}")}.WriteTo(&b)
	require.NoError(t, err)
	assert.Equal(t, "event: desktop\ndata: {\"a\":1}\n\n", b.String())

	b.Reset()
	_, err = Event{Name: "x", Data: []byte("one\ntwo")}.WriteTo(&b)
	require.NoError(t, err)
	assert.Equal(t, "event: x\ndata: one\ndata: two\n\n", b.String())
}
