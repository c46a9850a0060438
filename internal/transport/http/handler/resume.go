package handler

import (
	"bufio"
	"errors"
	"net/http"

	"github.com/portfolio-api/internal/application/resume"
)

const maxResumeBytes = 10 << 20

// ResumeHandler serves and replaces the owner's CV.
type ResumeHandler struct {
	svc resume.Service
}

func NewResumeHandler(svc resume.Service) *ResumeHandler { return &ResumeHandler{svc: svc} }

func (h *ResumeHandler) Download(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.DownloadURL(r.Context(), visitorMeta(r))
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, url, http.StatusFound)
}

// Upload takes the raw PDF as the request body.
func (h *ResumeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	body := bufio.NewReaderSize(http.MaxBytesReader(w, r.Body, maxResumeBytes), 512)
	head, _ := body.Peek(512)
	if http.DetectContentType(head) != "application/pdf" {
		writeError(w, http.StatusUnsupportedMediaType, "body must be a PDF document")
		return
	}
	if err := h.svc.Upload(r.Context(), body); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "resume too large")
			return
		}
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "resume updated"})
}
