// Package resume serves the owner's CV from object storage and records downloads.
package resume

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
	"github.com/portfolio-api/internal/pkg/besteffort"
)

const contentType = "application/pdf"

type Service interface {
	Upload(ctx context.Context, r io.Reader) error
	// DownloadURL records a best-effort download row and returns a presigned URL.
	DownloadURL(ctx context.Context, meta domain.VisitorMeta) (string, error)
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type inserter interface {
	Insert(ctx context.Context, collection string, row any) (gateway.Record, error)
}

type service struct {
	store  objectStore
	db     inserter
	key    string
	urlTTL time.Duration
	now    func() time.Time
}

type ServiceDeps struct {
	Store   objectStore
	Gateway inserter
	Key     string
	URLTTL  time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{store: deps.Store, db: deps.Gateway, key: deps.Key, urlTTL: deps.URLTTL, now: time.Now}
}

func (s *service) Upload(ctx context.Context, r io.Reader) error {
	if _, err := s.store.Upload(ctx, s.key, r, contentType); err != nil {
		return fmt.Errorf("upload resume: %w", err)
	}
	return nil
}

func (s *service) DownloadURL(ctx context.Context, meta domain.VisitorMeta) (string, error) {
	url, err := s.store.PresignedURL(ctx, s.key, s.urlTTL)
	if err != nil {
		return "", fmt.Errorf("resume url: %w", err)
	}
	referrer := meta.Referrer
	if referrer == "" {
		referrer = domain.ReferrerDirect
	}
	row := &domain.ResumeDownload{DownloadedAt: s.now().UTC(), UserAgent: meta.UserAgent, Referrer: referrer}
	besteffort.Run(ctx, "record resume download", func(ctx context.Context) error {
		_, err := s.db.Insert(ctx, domain.CollectionResumeDownloads, row)
		return err
	}, gateway.IsCollectionNotFound)
	return url, nil
}
