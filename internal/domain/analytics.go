package domain

import "time"

// PageContactFormView is the analytics page recorded when the contact form is shown.
const PageContactFormView = "contact_form_view"

type AnalyticsEvent struct {
	ID        string    `json:"id,omitempty"`
	Page      string    `json:"page" validate:"required,max=200"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
}

type ResumeDownload struct {
	ID           string    `json:"id,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Referrer     string    `json:"referrer"`
}
