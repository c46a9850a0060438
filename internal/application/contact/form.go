package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/pkg/id"
)

// SubmitStatus is the outcome of the latest submit attempt.
type SubmitStatus string

const (
	StatusNone    SubmitStatus = ""
	StatusSuccess SubmitStatus = "success"
	StatusError   SubmitStatus = "error"
)

// MarshalJSON encodes StatusNone as null.
func (s SubmitStatus) MarshalJSON() ([]byte, error) {
	if s == StatusNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// FormState is the visitor-visible state of one contact form.
type FormState struct {
	ID            string             `json:"id"`
	Fields        domain.ContactForm `json:"fields"`
	IsSubmitting  bool               `json:"is_submitting"`
	SubmitStatus  SubmitStatus       `json:"submit_status"`
	SubmitMessage string             `json:"submit_message,omitempty"`
	FieldErrors   map[string]string  `json:"field_errors,omitempty"`
}

// Form is a FormState driven through field edits and submit attempts.
// Every attempt carries a token; a completion that is not the latest attempt
// leaves the state alone.
type Form struct {
	svc Service

	mu      sync.Mutex
	state   FormState
	attempt uint64
	touched time.Time
}

func newForm(svc Service, now time.Time) *Form {
	return &Form{svc: svc, state: FormState{ID: id.NewAt(now)}, touched: now}
}

func (f *Form) ID() string { return f.state.ID }

// State returns a copy of the current state.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

func (f *Form) snapshot() FormState {
	s := f.state
	if f.state.FieldErrors != nil {
		s.FieldErrors = make(map[string]string, len(f.state.FieldErrors))
		for k, v := range f.state.FieldErrors {
			s.FieldErrors[k] = v
		}
	}
	return s
}

// UpdateField stores value under the json field name. Unknown names are
// ignored and reported with false. No validation happens here.
func (f *Form) UpdateField(name, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case "name":
		f.state.Fields.Name = value
	case "email":
		f.state.Fields.Email = value
	case "subject":
		f.state.Fields.Subject = value
	case "message":
		f.state.Fields.Message = value
	default:
		return false
	}
	return true
}

// Submit sends the current fields. Validation failures are recorded in
// FieldErrors and returned as *ValidationError before any store call.
func (f *Form) Submit(ctx context.Context, meta domain.VisitorMeta) (FormState, error) {
	f.mu.Lock()
	fields := f.state.Fields
	if _, err := Validate(fields); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			f.state.FieldErrors = ve.Fields
		}
		s := f.snapshot()
		f.mu.Unlock()
		return s, err
	}
	f.attempt++
	token := f.attempt
	f.state.FieldErrors = nil
	f.state.IsSubmitting = true
	f.state.SubmitStatus = StatusNone
	f.state.SubmitMessage = ""
	f.mu.Unlock()

	_, err := f.svc.Submit(ctx, fields, meta)

	f.mu.Lock()
	defer f.mu.Unlock()
	if token != f.attempt {
		return f.snapshot(), err
	}
	f.state.IsSubmitting = false
	if err != nil {
		f.state.SubmitStatus = StatusError
		f.state.SubmitMessage = MessageFailure
		return f.snapshot(), err
	}
	f.state.Fields = domain.ContactForm{}
	f.state.SubmitStatus = StatusSuccess
	f.state.SubmitMessage = MessageSuccess
	return f.snapshot(), nil
}

func (f *Form) touch(now time.Time) {
	f.mu.Lock()
	f.touched = now
	f.mu.Unlock()
}

func (f *Form) idleSince(now time.Time) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return now.Sub(f.touched), f.state.IsSubmitting
}

// DefaultFormCapacity bounds the live forms of a FormStore.
const DefaultFormCapacity = 1000

// FormStore keeps forms by id and evicts the ones idle for longer than ttl.
// At capacity, New evicts the longest-idle form.
type FormStore struct {
	svc      Service
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu    sync.Mutex
	forms map[string]*Form
}

// NewFormStore returns a store holding at most capacity forms. A
// non-positive capacity means DefaultFormCapacity.
func NewFormStore(svc Service, ttl time.Duration, capacity int) *FormStore {
	if capacity <= 0 {
		capacity = DefaultFormCapacity
	}
	return &FormStore{svc: svc, ttl: ttl, capacity: capacity, now: time.Now, forms: make(map[string]*Form)}
}

// New creates an empty form. It fails with domain.ErrUnavailable when the
// store is full of forms that are all mid-submit.
func (s *FormStore) New() (*Form, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.forms) >= s.capacity && !s.evictIdlestLocked(now) {
		return nil, fmt.Errorf("form store full: %w", domain.ErrUnavailable)
	}
	f := newForm(s.svc, now)
	s.forms[f.ID()] = f
	return f, nil
}

func (s *FormStore) evictIdlestLocked(now time.Time) bool {
	var (
		victim  string
		longest time.Duration = -1
	)
	for fid, f := range s.forms {
		idle, submitting := f.idleSince(now)
		if submitting || idle <= longest {
			continue
		}
		victim, longest = fid, idle
	}
	if longest < 0 {
		return false
	}
	delete(s.forms, victim)
	return true
}

// Get returns the form and refreshes its idle timer.
func (s *FormStore) Get(formID string) (*Form, error) {
	s.mu.Lock()
	f, ok := s.forms[formID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	f.touch(s.now())
	return f, nil
}

// Len is the number of live forms.
func (s *FormStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.forms)
}

// Sweep evicts idle forms and returns how many were removed. Forms with a
// submit in flight are kept.
func (s *FormStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for fid, f := range s.forms {
		idle, submitting := f.idleSince(now)
		if submitting || idle < s.ttl {
			continue
		}
		delete(s.forms, fid)
		n++
	}
	return n
}

// Run sweeps every ttl/2 until ctx is done.
func (s *FormStore) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
