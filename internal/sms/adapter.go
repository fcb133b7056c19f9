// Package sms carries guard text messages between the conversation engine
// and an SMS provider.
package sms

import (
	"context"
	"errors"
	"time"
)

// Sender delivers outbound messages. The conversation engine and the
// supervisor SMS notifier only need this half of an Adapter.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// Adapter is the interface provider implementations satisfy.
type Adapter interface {
	Sender

	// Connect authenticates with the provider.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages. The channel is closed
	// when the adapter is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Close shuts the adapter down.
	Close() error
}

// InboundMessage is a text received from a guard.
type InboundMessage struct {
	ID         string    // provider message id, may be empty
	From       string    // sender phone number
	Text       string    // message body
	Media      []string  // attachment URIs
	ReceivedAt time.Time // when the provider received it
}

// OutboundMessage is a text to send.
type OutboundMessage struct {
	To       string // recipient phone number
	Text     string
	ImageURL string // optional illustration
}

// Body returns the text to transmit, with the image link appended when the
// transport cannot attach media.
func (m OutboundMessage) Body() string {
	if m.ImageURL == "" {
		return m.Text
	}
	return m.Text + "\n\n" + m.ImageURL
}

// Handler processes one inbound message.
type Handler interface {
	Handle(ctx context.Context, msg InboundMessage) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg InboundMessage) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg InboundMessage) error {
	return f(ctx, msg)
}

// WebhookReceiver accepts provider notifications delivered over HTTP.
type WebhookReceiver interface {
	// Verify checks the shared secret sent with each notification.
	Verify(token string) bool

	// Receive parses a notification body and queues any inbound texts. It
	// returns how many were queued.
	Receive(ctx context.Context, body []byte) (int, error)
}

// ErrQueueFull is returned when inbound messages arrive faster than the
// daemon drains them. Webhook callers should answer with a retryable status.
var ErrQueueFull = errors.New("sms: inbound queue full")
