package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/portfolio-api/internal/application/contact"
)

// VisitorHandler records best-effort visitor signals. Every endpoint answers
// 202 whatever happens to the write.
type VisitorHandler struct {
	svc contact.Service
}

func NewVisitorHandler(svc contact.Service) *VisitorHandler { return &VisitorHandler{svc: svc} }

type visitorBody struct {
	Page     string `json:"page"`
	PageURL  string `json:"page_url"`
	Referrer string `json:"referrer"`
}

// readVisitorBody accepts an empty or malformed body; the signal is still
// recorded from the request headers.
func readVisitorBody(w http.ResponseWriter, r *http.Request) visitorBody {
	var body visitorBody
	if err := decodeJSON(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
		slog.Debug("visitor body ignored", "path", r.URL.Path, "err", err)
		return visitorBody{}
	}
	return body
}

func (h *VisitorHandler) HireMeClick(w http.ResponseWriter, r *http.Request) {
	body := readVisitorBody(w, r)
	meta := visitorMeta(r)
	// The browser's document.referrer, when sent, beats the Referer header,
	// which names the portfolio page itself.
	meta.Referrer = body.Referrer
	if body.PageURL != "" {
		meta.PageURL = body.PageURL
	}
	h.svc.RecordInterestClick(r.Context(), meta)
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "recorded"})
}

func (h *VisitorHandler) PageView(w http.ResponseWriter, r *http.Request) {
	body := readVisitorBody(w, r)
	meta := visitorMeta(r)
	meta.Referrer = body.Referrer
	h.svc.TrackPageView(r.Context(), body.Page, meta)
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "recorded"})
}

func (h *VisitorHandler) ContactFormView(w http.ResponseWriter, r *http.Request) {
	body := readVisitorBody(w, r)
	meta := visitorMeta(r)
	meta.Referrer = body.Referrer
	h.svc.TrackContactFormView(r.Context(), meta)
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "recorded"})
}
