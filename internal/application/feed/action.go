package feed

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/portfolio-api/internal/domain"
)

// Action returns the URL the owner's client opens when an item is clicked.
// It does not change the item.
func (f *Feed) Action(itemID string) (string, error) {
	f.mu.Lock()
	var payload domain.Payload
	for _, e := range f.entries {
		if e.item.ID == itemID {
			payload = e.item.Payload
			break
		}
	}
	f.mu.Unlock()
	if payload == nil {
		return "", fmt.Errorf("feed item %s: %w", itemID, domain.ErrNotFound)
	}

	switch p := payload.(type) {
	case *domain.ContactSubmission:
		return replyURL(p, f.ownerName), nil
	case *domain.InterestClickEvent:
		if f.ownerPhone == "" {
			return "", fmt.Errorf("owner phone: %w", domain.ErrUnavailable)
		}
		return "tel:" + f.ownerPhone, nil
	}
	panic(fmt.Sprintf("feed: unhandled payload %T", payload))
}

func replyURL(c *domain.ContactSubmission, ownerName string) string {
	body := fmt.Sprintf("Hi %s,\r\n\r\nThank you for contacting me through my portfolio.\r\n\r\nBest regards,", c.Name)
	if ownerName != "" {
		body += "\r\n" + ownerName
	}
	return "mailto:" + c.Email +
		"?subject=" + mailtoEscape("Re: "+c.Subject) +
		"&body=" + mailtoEscape(body)
}

// mailtoEscape percent-encodes s for a mailto header field. Spaces become
// %20 since mail clients do not decode '+'.
func mailtoEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
