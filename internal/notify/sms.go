package notify

import (
	"context"
	"fmt"

	"github.com/zulandar/watchtower/internal/sms"
)

// SMSNotifier texts the supervisor.
type SMSNotifier struct {
	sender sms.Sender
	to     string
}

// NewSMSNotifier creates an SMSNotifier for the supervisor phone to.
func NewSMSNotifier(sender sms.Sender, to string) (*SMSNotifier, error) {
	if sender == nil {
		return nil, fmt.Errorf("notify: sms: sender is required")
	}
	if to == "" {
		return nil, fmt.Errorf("notify: sms: supervisor phone is required")
	}
	return &SMSNotifier{sender: sender, to: to}, nil
}

// Name implements Notifier.
func (n *SMSNotifier) Name() string { return "sms" }

// Notify implements Notifier.
func (n *SMSNotifier) Notify(ctx context.Context, a Alert) error {
	return n.sender.Send(ctx, sms.OutboundMessage{To: n.to, Text: a.SMSText()})
}
