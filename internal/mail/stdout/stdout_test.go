package stdout

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shineum/app-infra/internal/email"
	"github.com/shineum/app-infra/internal/mail"
)

func TestSend_BasicMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)

	msg := &email.Message{
		From:     "system@example.com",
		To:       []string{"alice@example.com", "bob@example.com"},
		Subject:  "Monthly Report",
		TextBody: "Please find the report attached.",
	}

	err := tr.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	if !strings.HasPrefix(output, "--- notification ---\n") {
		t.Error("output should start with the opening separator")
	}
	if !strings.Contains(output, "From: system@example.com") {
		t.Error("output missing From header")
	}
	if !strings.Contains(output, "To: alice@example.com, bob@example.com") {
		t.Error("output missing To header")
	}
	if !strings.Contains(output, "Subject: Monthly Report") {
		t.Error("output missing Subject header")
	}
	if strings.Contains(output, "Message-ID:") {
		t.Error("output should not contain a Message-ID line when the message has none")
	}
	if !strings.Contains(output, "Please find the report attached.") {
		t.Error("output missing body text")
	}
	if strings.Contains(output, "attachment:") {
		t.Error("output should not contain attachment lines when there are none")
	}
}

func TestSend_WithMessageID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)

	msg := &email.Message{
		From:      "system@example.com",
		To:        []string{"alice@example.com"},
		Subject:   "With ID",
		TextBody:  "Hello",
		MessageID: "<id-1@example.com>",
	}

	err := tr.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), "Message-ID: <id-1@example.com>") {
		t.Error("output missing Message-ID line")
	}
}

func TestSend_WithAttachments(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)

	msg := &email.Message{
		From:     "system@example.com",
		To:       []string{"alice@example.com"},
		Subject:  "Report",
		TextBody: "Attached",
		Attachments: []email.Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: make([]byte, 2048)},
		},
	}

	err := tr.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "attachment: report.pdf (application/pdf, 2048 bytes)") {
		t.Errorf("output missing attachment line: %s", output)
	}
}

func TestSend_HTMLBodyFallback(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)

	msg := &email.Message{
		From:     "system@example.com",
		To:       []string{"alice@example.com"},
		Subject:  "HTML only",
		HTMLBody: "<h1>Hi</h1>",
	}

	err := tr.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), "<h1>Hi</h1>") {
		t.Error("output missing HTML body fallback")
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	if got := New().Name(); got != "stdout" {
		t.Errorf("Name(): got %q, want %q", got, "stdout")
	}
}

// Verify Transport implements mail.Transport
func TestTransportInterface(t *testing.T) {
	t.Parallel()

	var _ mail.Transport = (*Transport)(nil)
}
