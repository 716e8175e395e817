// Package notify adapts application-level notification requests into
// messages delivered through a mail transport.
package notify

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/app-infra/internal/config"
	"github.com/shineum/app-infra/internal/email"
	"github.com/shineum/app-infra/internal/mail"
)

// Notifier forwards notification requests to a mail transport, always
// substituting the configured system sender address. It performs no
// validation of its own; malformed addresses and oversized attachments are
// the transport's to reject. Transport failures propagate to the caller.
type Notifier struct {
	transport mail.Transport
	from      string
}

// New creates a Notifier bound to the given transport. The system email
// address is read from the configuration once; it is fixed for the
// Notifier's lifetime.
func New(transport mail.Transport, cfg *config.Config) *Notifier {
	return &Notifier{
		transport: transport,
		from:      cfg.SystemEmailAddress(),
	}
}

// Send delivers a plain-text message to a single recipient.
func (n *Notifier) Send(ctx context.Context, to, subject, body string) error {
	return n.SendToMany(ctx, []string{to}, subject, body)
}

// SendToMany delivers a plain-text message to multiple recipients.
func (n *Notifier) SendToMany(ctx context.Context, to []string, subject, body string) error {
	return n.transport.Send(ctx, n.compose(to, subject, body, nil))
}

// SendWithAttachments delivers a plain-text message with attachments to
// multiple recipients.
func (n *Notifier) SendWithAttachments(ctx context.Context, to []string, subject, body string, attachments []email.Attachment) error {
	return n.transport.Send(ctx, n.compose(to, subject, body, attachments))
}

// compose builds the outbound message with the fixed sender. The body is
// always plain text; HTMLBody stays empty.
func (n *Notifier) compose(to []string, subject, body string, attachments []email.Attachment) *email.Message {
	return &email.Message{
		From:        n.from,
		To:          to,
		Subject:     subject,
		TextBody:    body,
		Attachments: attachments,
		MessageID:   newMessageID(n.from),
	}
}

// newMessageID generates an RFC 5322 style Message-ID using the domain of
// the sender address when one is present.
func newMessageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = from[i+1:]
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
