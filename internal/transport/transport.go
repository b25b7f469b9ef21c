// Package transport is the outbound boundary to the mail provider.
package transport

import "context"

// Message is one outbound email. HTML takes precedence; Text is sent as
// text/plain when HTML is empty.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender transmits a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}
