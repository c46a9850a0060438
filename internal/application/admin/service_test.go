package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(subject, role string) (string, error) {
	args := m.Called(subject, role)
	return args.String(0), args.Error(1)
}

func (m *mockSigner) Expiry() time.Duration { return time.Hour }

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestLogin_Success(t *testing.T) {
	signer := &mockSigner{}
	signer.On("Sign", Subject, domain.RoleAdmin).Return("tok", nil)
	svc := NewService(hash(t, "s3cret"), signer).(*service)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	res, err := svc.Login(context.Background(), LoginRequest{Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Bearer)
	assert.Equal(t, time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC), res.ExpiresAt)
	signer.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	signer := &mockSigner{}
	svc := NewService(hash(t, "s3cret"), signer)

	_, err := svc.Login(context.Background(), LoginRequest{Password: "guess"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	signer.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
}

func TestLogin_Disabled(t *testing.T) {
	_, err := NewService("", &mockSigner{}).Login(context.Background(), LoginRequest{Password: "x"})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestLogin_SignError(t *testing.T) {
	signer := &mockSigner{}
	signer.On("Sign", mock.Anything, mock.Anything).Return("", errors.New("no key"))
	_, err := NewService(hash(t, "s3cret"), signer).Login(context.Background(), LoginRequest{Password: "s3cret"})
	assert.EqualError(t, err, "sign token: no key")
}
