package domain

import "time"

// Contact submission statuses.
const (
	ContactStatusNew  = "new"
	ContactStatusRead = "read"
)

// ContactForm is the visitor-entered part of a contact submission.
type ContactForm struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// ContactSubmission is a persisted contact form. It is never mutated after creation.
type ContactSubmission struct {
	ID               string    `json:"id,omitempty"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Subject          string    `json:"subject"`
	Message          string    `json:"message"`
	SubmittedAt      time.Time `json:"submitted_at"`
	Status           string    `json:"status"`
	NotificationSent bool      `json:"notification_sent"`
	UserAgent        string    `json:"user_agent,omitempty"`
}

func (*ContactSubmission) Kind() Kind         { return KindNewContact }
func (c *ContactSubmission) RecordID() string { return c.ID }
func (*ContactSubmission) sealed()            {}
