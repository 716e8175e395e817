// Package stdout implements a Transport that echoes messages to standard
// output instead of delivering them. It is the fallback backend for local
// development runs where no mail provider is configured.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/app-infra/internal/email"
)

// Transport echoes messages to a writer, one header line per field followed
// by the body. Echoing never fails.
type Transport struct {
	w io.Writer
}

// New creates a Transport that writes to os.Stdout.
func New() *Transport {
	return &Transport{w: os.Stdout}
}

// NewWithWriter creates a Transport writing to w, for tests.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{w: w}
}

func (t *Transport) Send(_ context.Context, msg *email.Message) error {
	fmt.Fprintln(t.w, "--- notification ---")
	fmt.Fprintf(t.w, "From: %s\n", msg.From)
	fmt.Fprintf(t.w, "To: %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(t.w, "Subject: %s\n", msg.Subject)
	if msg.MessageID != "" {
		fmt.Fprintf(t.w, "Message-ID: %s\n", msg.MessageID)
	}

	fmt.Fprintln(t.w)
	if msg.TextBody != "" {
		fmt.Fprintln(t.w, msg.TextBody)
	} else {
		fmt.Fprintln(t.w, msg.HTMLBody)
	}

	for _, att := range msg.Attachments {
		fmt.Fprintf(t.w, "attachment: %s (%s, %d bytes)\n", att.Filename, att.ContentType, len(att.Content))
	}
	fmt.Fprintln(t.w, "---------------------")

	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}
