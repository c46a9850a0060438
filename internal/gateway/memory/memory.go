// Package memory is an in-process gateway used for development and tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/portfolio-api/internal/gateway"
	"github.com/portfolio-api/internal/pkg/id"
)

const subscriberBuffer = 64

// Gateway keeps collections in memory and fans inserts out to subscribers.
// Slow subscribers lose events instead of blocking inserts.
type Gateway struct {
	mu          sync.Mutex
	collections map[string][]gateway.Record
	subs        map[*subscriber]struct{}

	// InsertHook, when set, runs before each insert; a non-nil error aborts it.
	InsertHook func(collection string, rec gateway.Record) error
	// SubscribeHook, when set, runs before each subscribe; a non-nil error aborts it.
	SubscribeHook func(filters []gateway.ChangeFilter) error
}

type subscriber struct {
	filters []gateway.ChangeFilter
	ch      chan gateway.ChangeEvent
	stream  *gateway.Stream
}

var _ gateway.Gateway = (*Gateway)(nil)

// New returns a gateway that accepts inserts into the named collections only.
func New(collections ...string) *Gateway {
	g := &Gateway{
		collections: make(map[string][]gateway.Record, len(collections)),
		subs:        make(map[*subscriber]struct{}),
	}
	for _, c := range collections {
		g.collections[c] = nil
	}
	return g
}

func (g *Gateway) Insert(ctx context.Context, collection string, row any) (gateway.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := gateway.ToRecord(row)
	if err != nil {
		return nil, err
	}
	if rec.ID() == "" {
		rec["id"] = id.New()
	}
	if g.InsertHook != nil {
		if err := g.InsertHook(collection, rec); err != nil {
			return nil, err
		}
	}

	g.mu.Lock()
	rows, ok := g.collections[collection]
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("insert into %q: %w", collection, gateway.ErrCollectionNotFound)
	}
	g.collections[collection] = append(rows, rec)
	ev := gateway.ChangeEvent{Collection: collection, Event: gateway.EventInsert, New: rec}
	for s := range g.subs {
		if !ev.Matches(s.filters) {
			continue
		}
		select {
		case s.ch <- copyEvent(ev):
		default:
			slog.Warn("memory gateway: subscriber full, dropping event", "collection", collection, "id", rec.ID())
		}
	}
	g.mu.Unlock()

	out, _ := gateway.ToRecord(rec)
	return out, nil
}

func (g *Gateway) Subscribe(ctx context.Context, filters []gateway.ChangeFilter, handler func(gateway.ChangeEvent)) (gateway.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.SubscribeHook != nil {
		if err := g.SubscribeHook(filters); err != nil {
			return nil, err
		}
	}
	s := &subscriber{
		filters: append([]gateway.ChangeFilter(nil), filters...),
		ch:      make(chan gateway.ChangeEvent, subscriberBuffer),
	}
	s.stream = gateway.NewStream(func() { g.remove(s) })

	g.mu.Lock()
	g.subs[s] = struct{}{}
	g.mu.Unlock()

	go func() {
		for {
			select {
			case ev := <-s.ch:
				handler(ev)
			case <-s.stream.Stopping():
				s.stream.Close(nil)
				return
			case <-s.stream.Done():
				return
			}
		}
	}()
	return s.stream, nil
}

// Drop terminates every live subscription with err, as a lost connection would.
func (g *Gateway) Drop(err error) {
	g.mu.Lock()
	subs := make([]*subscriber, 0, len(g.subs))
	for s := range g.subs {
		subs = append(subs, s)
		delete(g.subs, s)
	}
	g.mu.Unlock()
	for _, s := range subs {
		s.stream.Close(err)
	}
}

// Subscribers returns the number of live subscriptions.
func (g *Gateway) Subscribers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// Rows returns a copy of the rows stored in collection.
func (g *Gateway) Rows(collection string) []gateway.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows := g.collections[collection]
	out := make([]gateway.Record, len(rows))
	for i, r := range rows {
		out[i], _ = gateway.ToRecord(r)
	}
	return out
}

func (g *Gateway) remove(s *subscriber) {
	g.mu.Lock()
	delete(g.subs, s)
	g.mu.Unlock()
}

func copyEvent(ev gateway.ChangeEvent) gateway.ChangeEvent {
	rec, _ := gateway.ToRecord(ev.New)
	ev.New = rec
	return ev
}
