package contact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/portfolio-api/internal/domain"
)

// Visitor-facing outcome messages.
const (
	MessageSuccess = "Message sent successfully! I'll get back to you soon."
	MessageFailure = "Failed to send message. Please try again."
)

// ValidationError lists the required fields that were empty, keyed by json
// field name. It wraps domain.ErrBadRequest.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, e.Fields[name])
	}
	return "invalid contact form: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return domain.ErrBadRequest }

// SubmitError is returned when the store rejected a valid submission.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return fmt.Sprintf("submit contact: %v", e.Err) }

func (e *SubmitError) Unwrap() error { return e.Err }

// Message is what the visitor sees. The store's error stays in the log since
// it can carry SQL state, table names or request ids.
func (e *SubmitError) Message() string { return MessageFailure }
