// Package mail defines the transport abstraction for outbound messages.
package mail

import (
	"context"

	"github.com/shineum/app-infra/internal/email"
)

// Transport is the interface that mail delivery backends must implement.
// Each transport handles the actual delivery of composed messages to the
// target service (AWS SES, Microsoft Graph, stdout, etc.). Address and
// attachment validation is the transport's responsibility.
type Transport interface {
	// Send delivers a message through this transport.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg *email.Message) error

	// Name returns the human-readable name of this transport.
	Name() string
}
