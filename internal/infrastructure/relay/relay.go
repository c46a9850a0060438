// Package relay delivers owner notification emails, either through a hosted
// forms endpoint or directly over SMTP.
package relay

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when the relay has no destination.
var ErrNotConfigured = errors.New("relay: not configured")

// Message is one outbound email. The underscore-prefixed fields are the
// forms relay's control fields.
type Message struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	MailSubject string `json:"_subject"`
	ReplyTo     string `json:"_replyto,omitempty"`
	Template    string `json:"_template,omitempty"`
}

// Relay sends a Message. A nil error means the relay accepted it.
type Relay interface {
	Send(ctx context.Context, msg Message) error
}
