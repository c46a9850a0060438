package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/portfolio-api/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert_AssignsID(t *testing.T) {
	g := New("things")
	rec, err := g.Insert(context.Background(), "things", map[string]any{"name": "a"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID())
	assert.Equal(t, "a", rec["name"])
	assert.Len(t, g.Rows("things"), 1)
}

func TestInsert_UnknownCollection(t *testing.T) {
	g := New("things")
	_, err := g.Insert(context.Background(), "missing", map[string]any{})
	assert.ErrorIs(t, err, gateway.ErrCollectionNotFound)
}

func TestInsert_HookFailure(t *testing.T) {
	g := New("things")
	boom := errors.New("boom")
	g.InsertHook = func(string, gateway.Record) error { return boom }
	_, err := g.Insert(context.Background(), "things", map[string]any{})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, g.Rows("things"))
}

func TestSubscribe_DeliversMatchingInserts(t *testing.T) {
	g := New("a", "b")
	got := make(chan gateway.ChangeEvent, 4)
	sub, err := g.Subscribe(context.Background(),
		[]gateway.ChangeFilter{{Collection: "a", Event: gateway.EventInsert}},
		func(ev gateway.ChangeEvent) { got <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = g.Insert(context.Background(), "b", map[string]any{"x": 1})
	require.NoError(t, err)
	_, err = g.Insert(context.Background(), "a", map[string]any{"x": 2})
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.Equal(t, "a", ev.Collection)
		assert.Equal(t, gateway.EventInsert, ev.Event)
		assert.EqualValues(t, 2, ev.New["x"])
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-got:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestUnsubscribe_StopsDeliveryAndClosesDone(t *testing.T) {
	g := New("a")
	sub, err := g.Subscribe(context.Background(),
		[]gateway.ChangeFilter{{Collection: "a", Event: gateway.EventInsert}},
		func(gateway.ChangeEvent) {})
	require.NoError(t, err)
	assert.Equal(t, 1, g.Subscribers())

	sub.Unsubscribe()
	<-sub.Done()
	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, g.Subscribers())
}

func TestDrop_ReportsError(t *testing.T) {
	g := New("a")
	sub, err := g.Subscribe(context.Background(), nil, func(gateway.ChangeEvent) {})
	require.NoError(t, err)
	lost := errors.New("connection lost")
	g.Drop(lost)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	assert.ErrorIs(t, sub.Err(), lost)
	sub.Unsubscribe()
}
