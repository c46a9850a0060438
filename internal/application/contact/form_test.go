package contact

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillJane(f *Form) {
	f.UpdateField("name", "Jane Doe")
	f.UpdateField("email", "jane@x.com")
	f.UpdateField("subject", "Hello")
	f.UpdateField("message", "Hi there")
}

func newTestForm(t *testing.T, svc Service) *Form {
	t.Helper()
	f, err := NewFormStore(svc, time.Minute, 0).New()
	require.NoError(t, err)
	return f
}

func TestForm_UpdateField(t *testing.T) {
	svc, _, _ := newTestService(t)
	f := newTestForm(t, svc)

	assert.True(t, f.UpdateField("name", "  Jane"))
	assert.False(t, f.UpdateField("phone", "555"))

	s := f.State()
	assert.Equal(t, "  Jane", s.Fields.Name)
	assert.Equal(t, StatusNone, s.SubmitStatus)
	assert.False(t, s.IsSubmitting)
}

func TestForm_SubmitSuccessResetsFields(t *testing.T) {
	svc, gw, _ := newTestService(t)
	f := newTestForm(t, svc)
	fillJane(f)

	s, err := f.Submit(context.Background(), domain.VisitorMeta{})
	require.NoError(t, err)

	assert.Equal(t, domain.ContactForm{}, s.Fields)
	assert.Equal(t, StatusSuccess, s.SubmitStatus)
	assert.Equal(t, MessageSuccess, s.SubmitMessage)
	assert.False(t, s.IsSubmitting)
	assert.Len(t, gw.Rows(domain.CollectionContactSubmissions), 1)
}

func TestForm_SubmitFailurePreservesFields(t *testing.T) {
	svc, gw, _ := newTestService(t)
	gw.InsertHook = func(string, gateway.Record) error { return errors.New("insert failed") }
	f := newTestForm(t, svc)
	fillJane(f)

	s, err := f.Submit(context.Background(), domain.VisitorMeta{})
	require.Error(t, err)

	assert.Equal(t, domain.ContactForm{Name: "Jane Doe", Email: "jane@x.com", Subject: "Hello", Message: "Hi there"}, s.Fields)
	assert.Equal(t, StatusError, s.SubmitStatus)
	assert.Equal(t, MessageFailure, s.SubmitMessage)
	assert.False(t, s.IsSubmitting)
}

func TestForm_ValidationRecordsFieldErrors(t *testing.T) {
	svc, gw, _ := newTestService(t)
	f := newTestForm(t, svc)
	f.UpdateField("name", "Jane")

	s, err := f.Submit(context.Background(), domain.VisitorMeta{})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Email is required", s.FieldErrors["email"])
	assert.NotContains(t, s.FieldErrors, "name")
	assert.False(t, s.IsSubmitting)
	assert.Equal(t, StatusNone, s.SubmitStatus)
	assert.Empty(t, gw.Rows(domain.CollectionContactSubmissions))

	fillJane(f)
	s, err = f.Submit(context.Background(), domain.VisitorMeta{})
	require.NoError(t, err)
	assert.Nil(t, s.FieldErrors)
}

// gatedService blocks each Submit until the test releases it.
type gatedService struct {
	Service
	mu    sync.Mutex
	gates []chan error
	began chan struct{}
}

func (g *gatedService) Submit(ctx context.Context, form domain.ContactForm, meta domain.VisitorMeta) (*domain.ContactSubmission, error) {
	gate := make(chan error)
	g.mu.Lock()
	g.gates = append(g.gates, gate)
	g.mu.Unlock()
	g.began <- struct{}{}
	if err := <-gate; err != nil {
		return nil, &SubmitError{Err: err}
	}
	return &domain.ContactSubmission{ID: "c1"}, nil
}

func (g *gatedService) release(i int, err error) {
	g.mu.Lock()
	gate := g.gates[i]
	g.mu.Unlock()
	gate <- err
}

func TestForm_StaleCompletionIgnored(t *testing.T) {
	svc := &gatedService{began: make(chan struct{}, 2)}
	f := newTestForm(t, svc)
	fillJane(f)

	results := make(chan FormState, 2)
	go func() { s, _ := f.Submit(context.Background(), domain.VisitorMeta{}); results <- s }()
	<-svc.began
	go func() { s, _ := f.Submit(context.Background(), domain.VisitorMeta{}); results <- s }()
	<-svc.began

	// The second attempt finishes first and fails.
	svc.release(1, errors.New("timeout"))
	<-results
	s := f.State()
	assert.Equal(t, StatusError, s.SubmitStatus)
	assert.False(t, s.IsSubmitting)

	// The first attempt's late success must not overwrite it.
	svc.release(0, nil)
	<-results
	s = f.State()
	assert.Equal(t, StatusError, s.SubmitStatus)
	assert.Equal(t, "Jane Doe", s.Fields.Name)
}

func TestForm_IsSubmittingWhileInFlight(t *testing.T) {
	svc := &gatedService{began: make(chan struct{}, 1)}
	f := newTestForm(t, svc)
	fillJane(f)

	done := make(chan struct{})
	go func() { _, _ = f.Submit(context.Background(), domain.VisitorMeta{}); close(done) }()
	<-svc.began
	assert.True(t, f.State().IsSubmitting)

	svc.release(0, nil)
	<-done
	assert.False(t, f.State().IsSubmitting)
}

func TestFormState_JSON(t *testing.T) {
	b, err := json.Marshal(FormState{ID: "f1"})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Nil(t, m["submit_status"])
	assert.Contains(t, m, "submit_status")

	b, err = json.Marshal(FormState{ID: "f1", SubmitStatus: StatusSuccess})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"submit_status":"success"`)
}

func TestFormStore_GetAndSweep(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewFormStore(&gatedService{}, 10*time.Minute, 0)
	store.now = func() time.Time { return now }

	a, err := store.New()
	require.NoError(t, err)
	b, err := store.New()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	now = now.Add(6 * time.Minute)
	_, err = store.Get(a.ID())
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	_, err = store.Get(b.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(a.ID())
	assert.NoError(t, err)
}

func TestFormStore_SweepKeepsSubmittingForms(t *testing.T) {
	svc := &gatedService{began: make(chan struct{}, 1)}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewFormStore(svc, time.Minute, 0)
	store.now = func() time.Time { return now }
	f, err := store.New()
	require.NoError(t, err)
	fillJane(f)

	done := make(chan struct{})
	go func() { _, _ = f.Submit(context.Background(), domain.VisitorMeta{}); close(done) }()
	<-svc.began

	now = now.Add(time.Hour)
	assert.Zero(t, store.Sweep())

	svc.release(0, nil)
	<-done
	assert.Equal(t, 1, store.Sweep())
}

func TestFormStore_FullEvictsIdlest(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewFormStore(&gatedService{}, time.Hour, 2)
	store.now = func() time.Time { return now }

	a, err := store.New()
	require.NoError(t, err)
	now = now.Add(time.Minute)
	b, err := store.New()
	require.NoError(t, err)
	now = now.Add(time.Minute)
	_, err = store.Get(a.ID())
	require.NoError(t, err)

	c, err := store.New()
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	_, err = store.Get(b.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(c.ID())
	assert.NoError(t, err)
}

func TestFormStore_FullOfSubmittingFormsRefuses(t *testing.T) {
	svc := &gatedService{began: make(chan struct{}, 1)}
	store := NewFormStore(svc, time.Hour, 1)
	f, err := store.New()
	require.NoError(t, err)
	fillJane(f)

	done := make(chan struct{})
	go func() { _, _ = f.Submit(context.Background(), domain.VisitorMeta{}); close(done) }()
	<-svc.began

	_, err = store.New()
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	svc.release(0, nil)
	<-done
	_, err = store.New()
	assert.NoError(t, err)
}
