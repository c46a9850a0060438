package domain

import "time"

// ReferrerDirect is recorded when a visitor arrived without a referrer.
const ReferrerDirect = "direct"

// VisitorMeta describes the browser behind a public request.
type VisitorMeta struct {
	UserAgent string
	Referrer  string
	PageURL   string
}

// InterestClickEvent records a click on the "Hire Me Now" call to action.
type InterestClickEvent struct {
	ID        string    `json:"id,omitempty"`
	ClickedAt time.Time `json:"clicked_at"`
	Referrer  string    `json:"referrer"`
	PageURL   string    `json:"page_url"`
	UserAgent string    `json:"user_agent,omitempty"`
}

func (*InterestClickEvent) Kind() Kind         { return KindHireMeClick }
func (e *InterestClickEvent) RecordID() string { return e.ID }
func (*InterestClickEvent) sealed()            {}
