// Package email defines the message model shared by the notifier and the
// mail transports.
package email

// Message represents an outbound email message.
type Message struct {
	From        string
	To          []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
	MessageID   string
}

// Attachment represents a file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}
