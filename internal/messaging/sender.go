// Package messaging delivers one-way text messages to phone numbers. Senders
// are fire-and-forget from the caller's point of view: a non-nil error means
// the provider did not accept the message.
package messaging

import "context"

// Sender is an outbound text channel addressed by E.164 phone number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, body string) error

func (f SenderFunc) Send(ctx context.Context, to, body string) error {
	return f(ctx, to, body)
}
