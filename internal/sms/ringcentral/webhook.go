package ringcentral

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/watchtower/internal/sms"
)

// instantEvent is the event filter suffix for instant message notifications.
const instantEvent = "/message-store/instant"

type notification struct {
	UUID  string       `json:"uuid"`
	Event string       `json:"event"`
	Body  *messageBody `json:"body"`
}

type messageBody struct {
	ID           string       `json:"id"`
	Direction    string       `json:"direction"`
	Type         string       `json:"type"`
	From         phoneNumber  `json:"from"`
	Subject      string       `json:"subject"`
	CreationTime time.Time    `json:"creationTime"`
	Attachments  []attachment `json:"attachments"`
}

type attachment struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// Verify reports whether token matches the configured verification token.
// With no token configured every notification is accepted.
func (a *Adapter) Verify(token string) bool {
	if a.verificationToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.verificationToken)) == 1
}

// Receive parses a webhook notification. Only inbound instant messages are
// queued; outbound echoes and other events are ignored.
func (a *Adapter) Receive(_ context.Context, body []byte) (int, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return 0, fmt.Errorf("ringcentral: decode notification: %w", err)
	}
	msg, ok := a.inboundFrom(n)
	if !ok {
		return 0, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, fmt.Errorf("ringcentral: adapter closed")
	}
	select {
	case a.inbound <- msg:
	default:
		return 0, sms.ErrQueueFull
	}
	a.log.Debug().Str("from", msg.From).Str("id", msg.ID).Msg("inbound sms queued")
	return 1, nil
}

func (a *Adapter) inboundFrom(n notification) (sms.InboundMessage, bool) {
	if n.Body == nil || !strings.Contains(n.Event, instantEvent) {
		return sms.InboundMessage{}, false
	}
	b := n.Body
	if !strings.EqualFold(b.Direction, "Inbound") {
		return sms.InboundMessage{}, false
	}
	if b.From.PhoneNumber == "" {
		a.log.Warn().Str("uuid", n.UUID).Msg("inbound sms without sender, ignoring")
		return sms.InboundMessage{}, false
	}
	msg := sms.InboundMessage{
		ID:         b.ID,
		From:       b.From.PhoneNumber,
		Text:       b.Subject,
		ReceivedAt: b.CreationTime,
	}
	for _, att := range b.Attachments {
		if att.URI != "" && att.Type != "Text" {
			msg.Media = append(msg.Media, att.URI)
		}
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	return msg, true
}
