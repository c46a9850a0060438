package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/portfolio-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Subject is the token subject of the single site owner.
const Subject = "owner"

type LoginRequest struct {
	Password string `json:"password" validate:"required,max=72"`
}

type LoginResult struct {
	Bearer    string    `json:"bearer"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
}

type tokenSigner interface {
	Sign(subject, role string) (string, error)
	Expiry() time.Duration
}

type service struct {
	passwordHash []byte
	signer       tokenSigner
	now          func() time.Time
}

// NewService checks logins against a bcrypt hash. An empty hash disables
// admin login.
func NewService(passwordHash string, signer tokenSigner) Service {
	return &service{passwordHash: []byte(passwordHash), signer: signer, now: time.Now}
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if len(s.passwordHash) == 0 {
		return nil, fmt.Errorf("admin login disabled: %w", domain.ErrUnavailable)
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil {
		slog.Warn("admin login rejected")
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	bearer, err := s.signer.Sign(Subject, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	slog.Info("admin logged in")
	return &LoginResult{Bearer: bearer, ExpiresAt: s.now().Add(s.signer.Expiry()).UTC()}, nil
}
