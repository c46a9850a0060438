package notify

import (
	"fmt"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/infrastructure/relay"
)

const hireMeSubject = `Someone Clicked "Hire Me Now" on Your Portfolio!`

const hireMeBody = `Exciting news! Someone clicked the "Hire Me Now" button on your portfolio.

Details:
- Clicked at: %s
- Page URL: %s
- Referrer: %s

This indicates strong interest in your services. You may want to be prepared for potential contact.

Best regards,
Your Portfolio Notification System`

// Email renders the relay message for p.
func Email(p domain.Payload) relay.Message {
	switch v := p.(type) {
	case *domain.ContactSubmission:
		return relay.Message{
			Name:        v.Name,
			Email:       v.Email,
			Subject:     v.Subject,
			Message:     v.Message,
			MailSubject: "New Contact Form Submission - " + v.Subject,
			ReplyTo:     v.Email,
			Template:    "table",
		}
	case *domain.InterestClickEvent:
		referrer := v.Referrer
		if referrer == "" || referrer == domain.ReferrerDirect {
			referrer = "Direct visit"
		}
		pageURL := v.PageURL
		if pageURL == "" {
			pageURL = "unknown"
		}
		return relay.Message{
			Subject:     hireMeSubject,
			Message:     fmt.Sprintf(hireMeBody, v.ClickedAt.UTC().Format(time.RFC1123), pageURL, referrer),
			MailSubject: hireMeSubject,
		}
	}
	panic(fmt.Sprintf("notify: unhandled payload %T", p))
}

// SMS renders the text message for p.
func SMS(p domain.Payload) string {
	switch v := p.(type) {
	case *domain.ContactSubmission:
		return fmt.Sprintf("New contact from %s (%s): %s", v.Name, v.Email, v.Subject)
	case *domain.InterestClickEvent:
		return `Great news! Someone clicked "Hire Me Now" on your portfolio!`
	}
	panic(fmt.Sprintf("notify: unhandled payload %T", p))
}
