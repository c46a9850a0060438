package http

import (
	"github.com/portfolio-api/internal/application/admin"
	"github.com/portfolio-api/internal/application/contact"
	"github.com/portfolio-api/internal/application/feed"
	"github.com/portfolio-api/internal/application/resume"
	"github.com/portfolio-api/internal/transport/http/middleware"
	"github.com/portfolio-api/internal/transport/http/sse"
)

// Deps holds the services the router exposes. Lifecycles (feed start/stop,
// form sweeping, hub close) belong to the caller.
type Deps struct {
	Contact contact.Service
	Forms   *contact.FormStore
	Feed    *feed.Feed
	Desktop *feed.BrowserDesktop
	Hub     *sse.Hub
	Resume  resume.Service
	Admin   admin.Service
	// Verifier may be nil, in which case admin routes answer 503.
	Verifier middleware.TokenVerifier
}
