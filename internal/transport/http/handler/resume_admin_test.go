package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/portfolio-api/internal/application/admin"
	"github.com/portfolio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockResumeSvc struct {
	mock.Mock
	uploaded []byte
}

func (m *mockResumeSvc) Upload(ctx context.Context, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.uploaded = b
	return m.Called(ctx).Error(0)
}

func (m *mockResumeSvc) DownloadURL(ctx context.Context, meta domain.VisitorMeta) (string, error) {
	args := m.Called(ctx, meta)
	return args.String(0), args.Error(1)
}

type mockAdminSvc struct{ mock.Mock }

func (m *mockAdminSvc) Login(ctx context.Context, req admin.LoginRequest) (*admin.LoginResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*admin.LoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestResumeDownload_Redirects(t *testing.T) {
	svc := &mockResumeSvc{}
	svc.On("DownloadURL", mock.Anything, mock.Anything).Return("https://bucket.example/resume.pdf?sig=1", nil)
	h := NewResumeHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/resume", nil)
	rr := httptest.NewRecorder()
	h.Download(rr, req)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://bucket.example/resume.pdf?sig=1", rr.Header().Get("Location"))
}

func TestResumeDownload_StoreDown(t *testing.T) {
	svc := &mockResumeSvc{}
	svc.On("DownloadURL", mock.Anything, mock.Anything).Return("", fmt.Errorf("presign: %w", domain.ErrUnavailable))
	h := NewResumeHandler(svc)

	rr := httptest.NewRecorder()
	h.Download(rr, httptest.NewRequest(http.MethodGet, "/resume", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestResumeUpload_PDF(t *testing.T) {
	svc := &mockResumeSvc{}
	svc.On("Upload", mock.Anything).Return(nil)
	h := NewResumeHandler(svc)
	pdf := []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")

	rr := httptest.NewRecorder()
	h.Upload(rr, httptest.NewRequest(http.MethodPut, "/admin/resume", bytes.NewReader(pdf)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, pdf, svc.uploaded)
}

func TestResumeUpload_RejectsNonPDF(t *testing.T) {
	svc := &mockResumeSvc{}
	h := NewResumeHandler(svc)

	rr := httptest.NewRecorder()
	h.Upload(rr, httptest.NewRequest(http.MethodPut, "/admin/resume", bytes.NewBufferString("hello")))

	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	svc.AssertNotCalled(t, "Upload", mock.Anything)
}

func TestAdminLogin(t *testing.T) {
	expires := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockAdminSvc{}
	svc.On("Login", mock.Anything, admin.LoginRequest{Password: "right"}).
		Return(&admin.LoginResult{Bearer: "tok", ExpiresAt: expires}, nil)
	svc.On("Login", mock.Anything, admin.LoginRequest{Password: "wrong"}).
		Return(nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized))
	h := NewAdminHandler(svc)
	login := http.HandlerFunc(h.Login)

	rr := doJSON(t, login, http.MethodPost, "/admin/sessions", map[string]string{"password": "right"})
	require.Equal(t, http.StatusOK, rr.Code)
	var res admin.LoginResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "tok", res.Bearer)
	assert.True(t, expires.Equal(res.ExpiresAt))

	rr = doJSON(t, login, http.MethodPost, "/admin/sessions", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, login, http.MethodPost, "/admin/sessions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNumberOfCalls(t, "Login", 2)
}
