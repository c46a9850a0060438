// Package feed keeps the site owner's live alert list: a bounded,
// newest-first list of items fed by the store's change-feed, each read ten
// seconds after it arrives.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
	"github.com/portfolio-api/internal/pkg/id"
)

// ErrAlreadyRunning is returned by Start on a running feed.
var ErrAlreadyRunning = errors.New("feed: already running")

const (
	DefaultCapacity  = 10
	DefaultReadAfter = 10 * time.Second
)

type subscriber interface {
	Subscribe(ctx context.Context, filters []gateway.ChangeFilter, handler func(gateway.ChangeEvent)) (gateway.Subscription, error)
}

type Options struct {
	// Capacity is the maximum number of items kept. Default 10.
	Capacity int
	// ReadAfter is the delay between an item's arrival and its read mark. Default 10s.
	ReadAfter time.Duration
	// Desktop, when set, shows a notification per item once permission is granted.
	Desktop Desktop
	// OwnerName signs reply emails; OwnerPhone is dialled for hire-me clicks.
	OwnerName  string
	OwnerPhone string
	Backoff    Backoff
}

// Feed is safe for concurrent use. It owns its change-feed subscription.
type Feed struct {
	gw         subscriber
	capacity   int
	readAfter  time.Duration
	desktop    Desktop
	ownerName  string
	ownerPhone string
	backoff    Backoff

	// Replaced in tests.
	afterFunc func(d time.Duration, f func()) Timer
	after     func(d time.Duration) <-chan time.Time
	now       func() time.Time

	mu        sync.Mutex
	entries   []*entry // newest first
	seq       uint64
	observers map[int]func(Snapshot)
	nextObs   int

	life    sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(gw subscriber, opts Options) *Feed {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.ReadAfter <= 0 {
		opts.ReadAfter = DefaultReadAfter
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff
	}
	return &Feed{
		gw:         gw,
		capacity:   opts.Capacity,
		readAfter:  opts.ReadAfter,
		desktop:    opts.Desktop,
		ownerName:  opts.OwnerName,
		ownerPhone: opts.OwnerPhone,
		backoff:    opts.Backoff,
		afterFunc:  func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		after:      time.After,
		now:        time.Now,
		observers:  make(map[int]func(Snapshot)),
	}
}

// Filters selects the inserts that produce alerts.
func Filters() []gateway.ChangeFilter {
	out := make([]gateway.ChangeFilter, 0, len(domain.Kinds))
	for _, k := range domain.Kinds {
		out = append(out, gateway.ChangeFilter{Collection: k.Collection(), Event: gateway.EventInsert})
	}
	return out
}

// OnFeedEvent turns an inserted record into a new item at the head of the
// list, evicting the oldest beyond capacity.
func (f *Feed) OnFeedEvent(kind domain.Kind, rec gateway.Record) (Item, error) {
	payload, err := decodePayload(kind, rec)
	if err != nil {
		return Item{}, fmt.Errorf("decode %s record: %w", kind, err)
	}
	now := f.now()

	f.mu.Lock()
	f.seq++
	e := &entry{
		item: Item{
			ID:         id.NewAt(now),
			Kind:       kind,
			Payload:    payload,
			Record:     rec,
			ReceivedAt: now,
		},
		token: f.seq,
	}
	f.entries = append([]*entry{e}, f.entries...)
	if len(f.entries) > f.capacity {
		for _, old := range f.entries[f.capacity:] {
			old.stop()
		}
		f.entries = f.entries[:f.capacity:f.capacity]
	}
	itemID, token := e.item.ID, e.token
	e.timer = f.afterFunc(f.readAfter, func() { f.markRead(itemID, token) })
	item := e.item
	f.publishLocked()
	f.mu.Unlock()

	slog.Info("feed item added", "kind", kind.String(), "record", payload.RecordID(), "item", item.ID)
	if f.desktop != nil && f.desktop.Permission() == PermissionGranted {
		f.desktop.Show(DesktopNotification(item))
	}
	return item, nil
}

// markRead is the timer callback. It only touches the entry it was scheduled for.
func (f *Feed) markRead(itemID string, token uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.item.ID != itemID || e.token != token {
			continue
		}
		if e.item.Read {
			return
		}
		e.item.Read = true
		f.publishLocked()
		return
	}
}

// Dismiss removes one item and cancels its timer.
func (f *Feed) Dismiss(itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.item.ID != itemID {
			continue
		}
		e.stop()
		f.entries = append(f.entries[:i:i], f.entries[i+1:]...)
		f.publishLocked()
		return nil
	}
	return fmt.Errorf("feed item %s: %w", itemID, domain.ErrNotFound)
}

// ClearAll removes every item and cancels every timer.
func (f *Feed) ClearAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		e.stop()
	}
	f.entries = nil
	f.publishLocked()
}

// Items returns every item, newest first, read or not.
func (f *Feed) Items() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.itemsLocked()
}

// Visible reports whether at least one item is unread.
func (f *Feed) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visibleLocked()
}

func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Observe registers fn to receive a snapshot after every change. fn runs with
// the feed locked: it must not block or call back into the feed. The returned
// func unregisters it.
func (f *Feed) Observe(fn func(Snapshot)) func() {
	f.mu.Lock()
	key := f.nextObs
	f.nextObs++
	f.observers[key] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.observers, key)
		f.mu.Unlock()
	}
}

func (f *Feed) itemsLocked() []Item {
	out := make([]Item, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.item
	}
	return out
}

func (f *Feed) visibleLocked() bool {
	for _, e := range f.entries {
		if !e.item.Read {
			return true
		}
	}
	return false
}

func (f *Feed) snapshotLocked() Snapshot {
	return Snapshot{Visible: f.visibleLocked(), Items: f.itemsLocked()}
}

func (f *Feed) publishLocked() {
	if len(f.observers) == 0 {
		return
	}
	s := f.snapshotLocked()
	for _, fn := range f.observers {
		fn(s)
	}
}

func (e *entry) stop() {
	if e.timer != nil {
		e.timer.Stop()
	}
}
