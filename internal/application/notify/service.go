// Package notify fans a stored submission or click out to the owner's side
// channels: one relay email and one SMS per call, never retried.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/infrastructure/relay"
	"github.com/portfolio-api/internal/infrastructure/sns"
	"github.com/portfolio-api/internal/pkg/besteffort"
)

// DefaultTimeout bounds one delivery, email and SMS together.
const DefaultTimeout = 20 * time.Second

// Service is the side-channel notifier.
type Service struct {
	relay      relay.Relay
	sms        sns.SMSSender
	ownerPhone string
	timeout    time.Duration
	tasks      besteffort.Group
}

func NewService(r relay.Relay, sms sns.SMSSender, ownerPhone string) *Service {
	return &Service{relay: r, sms: sms, ownerPhone: ownerPhone, timeout: DefaultTimeout}
}

// Notify dispatches the deliveries for p in the background and returns at
// once. The result channel may be ignored.
func (s *Service) Notify(ctx context.Context, p domain.Payload) <-chan besteffort.Result {
	task := fmt.Sprintf("notify %s %s", p.Kind(), p.RecordID())
	msg, text := Email(p), SMS(p)
	return s.tasks.Go(ctx, task, s.timeout, func(ctx context.Context) error {
		var errs []error
		if err := s.relay.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
		if err := s.sendSMS(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		}
		if len(errs) == 0 {
			slog.Debug("owner notified", "kind", p.Kind().String(), "id", p.RecordID())
		}
		return errors.Join(errs...)
	})
}

func (s *Service) sendSMS(ctx context.Context, text string) error {
	if s.sms == nil {
		return nil
	}
	return s.sms.SendSMS(ctx, s.ownerPhone, text)
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	return s.tasks.Wait(ctx)
}
