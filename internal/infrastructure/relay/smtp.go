package relay

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/portfolio-api/internal/config"
)

// SMTPRelay sends messages to the site owner's mailbox.
type SMTPRelay struct {
	host     string
	port     string
	from     string
	to       string
	username string
	password string

	// sendMail is smtp.SendMail outside tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Relay = (*SMTPRelay)(nil)

func NewSMTPRelay(cfg *config.Config) *SMTPRelay {
	return &SMTPRelay{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		to:       cfg.OwnerEmail,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		sendMail: smtp.SendMail,
	}
}

func (m *SMTPRelay) Send(ctx context.Context, msg Message) error {
	if m.to == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := m.sendMail(addr, auth, m.from, []string{m.to}, m.compose(msg)); err != nil {
		return fmt.Errorf("smtp relay: %w", err)
	}
	return nil
}

func (m *SMTPRelay) compose(msg Message) []byte {
	subject := msg.MailSubject
	if subject == "" {
		subject = msg.Subject
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", m.to)
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(subject))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", headerValue(msg.ReplyTo))
	}
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	if msg.Name != "" {
		fmt.Fprintf(&b, "Name: %s\r\n", msg.Name)
	}
	if msg.Email != "" {
		fmt.Fprintf(&b, "Email: %s\r\n", msg.Email)
	}
	if msg.Name != "" || msg.Email != "" {
		fmt.Fprintf(&b, "Subject: %s\r\n\r\n", msg.Subject)
	}
	b.WriteString(strings.ReplaceAll(msg.Message, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// headerValue strips line breaks so visitor input cannot inject headers.
func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
