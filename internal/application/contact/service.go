// Package contact coordinates visitor submissions: contact forms, "Hire Me"
// clicks and analytics inserts into the remote store.
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
	"github.com/portfolio-api/internal/pkg/besteffort"
	"github.com/portfolio-api/internal/pkg/validate"
)

type Service interface {
	// Submit validates and stores a contact form, then notifies the owner.
	// It returns *ValidationError without touching the store when a field is
	// empty, and *SubmitError when the store rejects the row.
	Submit(ctx context.Context, form domain.ContactForm, meta domain.VisitorMeta) (*domain.ContactSubmission, error)
	// RecordInterestClick never fails; store errors are logged.
	RecordInterestClick(ctx context.Context, meta domain.VisitorMeta) besteffort.Result
	TrackPageView(ctx context.Context, page string, meta domain.VisitorMeta) besteffort.Result
	TrackContactFormView(ctx context.Context, meta domain.VisitorMeta) besteffort.Result
}

type inserter interface {
	Insert(ctx context.Context, collection string, row any) (gateway.Record, error)
}

type notifier interface {
	Notify(ctx context.Context, p domain.Payload) <-chan besteffort.Result
}

type service struct {
	store    inserter
	notifier notifier
	now      func() time.Time
}

type ServiceDeps struct {
	Gateway  inserter
	Notifier notifier
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{store: deps.Gateway, notifier: deps.Notifier, now: now}
}

// Validate trims every field and reports the empty ones.
func Validate(form domain.ContactForm) (domain.ContactForm, error) {
	form = domain.ContactForm{
		Name:    strings.TrimSpace(form.Name),
		Email:   strings.TrimSpace(form.Email),
		Subject: strings.TrimSpace(form.Subject),
		Message: strings.TrimSpace(form.Message),
	}
	fields, err := validate.Fields(form)
	if err != nil {
		return form, err
	}
	if len(fields) > 0 {
		return form, &ValidationError{Fields: fields}
	}
	return form, nil
}

func (s *service) Submit(ctx context.Context, form domain.ContactForm, meta domain.VisitorMeta) (*domain.ContactSubmission, error) {
	form, err := Validate(form)
	if err != nil {
		return nil, err
	}

	row := &domain.ContactSubmission{
		Name:        form.Name,
		Email:       form.Email,
		Subject:     form.Subject,
		Message:     form.Message,
		SubmittedAt: s.now().UTC(),
		Status:      domain.ContactStatusNew,
		UserAgent:   meta.UserAgent,
	}
	rec, err := s.store.Insert(ctx, domain.CollectionContactSubmissions, row)
	if err != nil {
		slog.Error("contact submission failed", "err", err)
		return nil, &SubmitError{Err: err}
	}

	stored := *row
	if err := rec.Decode(&stored); err != nil {
		slog.Warn("contact submission: unreadable stored row", "err", err)
		stored = *row
		stored.ID = rec.ID()
	}
	slog.Info("contact submission stored", "id", stored.ID)
	s.notify(ctx, &stored)
	return &stored, nil
}

func (s *service) RecordInterestClick(ctx context.Context, meta domain.VisitorMeta) besteffort.Result {
	referrer := meta.Referrer
	if referrer == "" {
		referrer = domain.ReferrerDirect
	}
	row := &domain.InterestClickEvent{
		ClickedAt: s.now().UTC(),
		Referrer:  referrer,
		PageURL:   meta.PageURL,
		UserAgent: meta.UserAgent,
	}
	return besteffort.Run(ctx, "record hire-me click", func(ctx context.Context) error {
		rec, err := s.store.Insert(ctx, domain.CollectionHireMeClicks, row)
		if err != nil {
			return err
		}
		stored := *row
		stored.ID = rec.ID()
		s.notify(ctx, &stored)
		return nil
	}, gateway.IsCollectionNotFound)
}

func (s *service) TrackPageView(ctx context.Context, page string, meta domain.VisitorMeta) besteffort.Result {
	return s.track(ctx, "track page view", page, meta)
}

func (s *service) TrackContactFormView(ctx context.Context, meta domain.VisitorMeta) besteffort.Result {
	return s.track(ctx, "track contact form view", domain.PageContactFormView, meta)
}

func (s *service) track(ctx context.Context, task, page string, meta domain.VisitorMeta) besteffort.Result {
	referrer := meta.Referrer
	if referrer == "" {
		referrer = domain.ReferrerDirect
	}
	row := &domain.AnalyticsEvent{
		Page:      strings.TrimSpace(page),
		Timestamp: s.now().UTC(),
		UserAgent: meta.UserAgent,
		Referrer:  referrer,
	}
	return besteffort.Run(ctx, task, func(ctx context.Context) error {
		if err := validate.Struct(row); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
		}
		_, err := s.store.Insert(ctx, domain.CollectionAnalytics, row)
		return err
	}, gateway.IsCollectionNotFound)
}

func (s *service) notify(ctx context.Context, p domain.Payload) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, p)
}
