package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/portfolio-api/internal/application/contact"
	"github.com/portfolio-api/internal/domain"
)

// ContactHandler handles the contact form, both the one-shot submit and the
// server-held form flow.
type ContactHandler struct {
	svc   contact.Service
	forms *contact.FormStore
}

func NewContactHandler(svc contact.Service, forms *contact.FormStore) *ContactHandler {
	return &ContactHandler{svc: svc, forms: forms}
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form domain.ContactForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub, err := h.svc.Submit(r.Context(), form, visitorMeta(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ContactEnvelope{Message: contact.MessageSuccess, Submission: sub})
}

func (h *ContactHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	f, err := h.forms.New()
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f.State())
}

func (h *ContactHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	f, err := h.forms.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f.State())
}

func (h *ContactHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	f, err := h.forms.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	var body struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Unknown fields are ignored, matching the form's own contract.
	f.UpdateField(body.Field, body.Value)
	writeJSON(w, http.StatusOK, f.State())
}

// SubmitForm answers with the resulting form state. The status code still
// reflects the outcome so clients can branch without reading the body.
func (h *ContactHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	f, err := h.forms.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	state, err := f.Submit(r.Context(), visitorMeta(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, state)
	case isValidation(err):
		writeJSON(w, http.StatusBadRequest, state)
	default:
		writeJSON(w, http.StatusBadGateway, state)
	}
}

func isValidation(err error) bool {
	var ve *contact.ValidationError
	return errors.As(err, &ve)
}
