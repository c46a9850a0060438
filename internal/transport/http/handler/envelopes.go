package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/portfolio-api/internal/application/contact"
	"github.com/portfolio-api/internal/domain"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ContactEnvelope wraps a stored contact submission.
type ContactEnvelope struct {
	Message    string                    `json:"message"`
	Submission *domain.ContactSubmission `json:"submission"`
}

// ActionEnvelope carries the URL a client should open.
type ActionEnvelope struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// httpError maps domain and service errors onto status codes.
func httpError(w http.ResponseWriter, err error) {
	var (
		ve *contact.ValidationError
		se *contact.SubmitError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "validation failed", Fields: ve.Fields})
	case errors.As(err, &se):
		writeError(w, http.StatusBadGateway, se.Message())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("unhandled request error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// visitorMeta reads the browser details every public write records.
func visitorMeta(r *http.Request) domain.VisitorMeta {
	return domain.VisitorMeta{
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
		PageURL:   r.Referer(),
	}
}
