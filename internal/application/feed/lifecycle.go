package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
)

// Backoff is the resubscribe delay policy: Base * Factor^attempt, capped at Max.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

var DefaultBackoff = Backoff{Base: time.Second, Factor: 2, Max: 30 * time.Second}

// Delay returns the wait before the given zero-based retry attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Base)
	for i := 0; i < attempt; i++ {
		d *= b.Factor
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	return time.Duration(d)
}

// Start opens the change-feed subscription and keeps it open until Stop,
// resubscribing with backoff whenever it drops. If the first subscribe
// fails the feed keeps retrying in the background. It asks the desktop for
// permission when none was given yet.
func (f *Feed) Start(ctx context.Context) error {
	f.life.Lock()
	defer f.life.Unlock()
	if f.running {
		return ErrAlreadyRunning
	}

	if f.desktop != nil && f.desktop.Permission() == PermissionDefault {
		f.desktop.RequestPermission(ctx)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := f.subscribe(runCtx)
	if err != nil {
		slog.Warn("feed subscribe failed, retrying", "err", err)
	} else {
		slog.Info("feed subscribed")
	}

	f.running = true
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(runCtx, sub, f.done)
	return nil
}

// Stop tears the subscription down and waits for the feed loop to exit.
// Items stay in place. Stop on a stopped feed is a no-op.
func (f *Feed) Stop() {
	f.life.Lock()
	defer f.life.Unlock()
	if !f.running {
		return
	}
	f.cancel()
	<-f.done
	f.running = false
	f.cancel = nil
	f.done = nil
	slog.Info("feed stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (f *Feed) Running() bool {
	f.life.Lock()
	defer f.life.Unlock()
	return f.running
}

func (f *Feed) subscribe(ctx context.Context) (gateway.Subscription, error) {
	return f.gw.Subscribe(ctx, Filters(), f.handle)
}

// run holds at most one subscription at a time. sub is nil when the last
// subscribe attempt failed.
func (f *Feed) run(ctx context.Context, sub gateway.Subscription, done chan struct{}) {
	defer close(done)
	attempt := 0
	for {
		if sub != nil {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			case <-sub.Done():
				slog.Warn("feed subscription dropped", "err", sub.Err())
				sub = nil
			}
		}

		delay := f.backoff.Delay(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-f.after(delay):
		}

		s, err := f.subscribe(ctx)
		if err != nil {
			slog.Warn("feed resubscribe failed", "attempt", attempt, "err", err)
			continue
		}
		slog.Info("feed resubscribed", "attempt", attempt)
		sub = s
		attempt = 0
	}
}

func (f *Feed) handle(ev gateway.ChangeEvent) {
	kind, ok := domain.KindForCollection(ev.Collection)
	if !ok || ev.Event != gateway.EventInsert {
		slog.Debug("feed: ignoring change", "collection", ev.Collection, "event", ev.Event)
		return
	}
	if _, err := f.OnFeedEvent(kind, ev.New); err != nil {
		slog.Warn("feed: dropping change", "collection", ev.Collection, "id", ev.New.ID(), "err", err)
	}
}
