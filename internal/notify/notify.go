// Package notify delivers supervisor alerts to every configured channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Kind distinguishes alert types.
type Kind string

const (
	// KindEscalation: a guard needs a supervisor now.
	KindEscalation Kind = "escalation"
	// KindIdle: a guard stopped replying mid-procedure.
	KindIdle Kind = "idle"
	// KindAbandoned: an idle conversation was closed.
	KindAbandoned Kind = "abandoned"
)

// Color constants for alert severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Alert is one supervisor notification.
type Alert struct {
	Kind       Kind
	Phone      string
	Issue      string
	Step       int // 0 when no procedure was running
	TotalSteps int
	Reason     string
	Completed  []string
	Idle       time.Duration
	At         time.Time
}

// Color returns the sidebar color for the alert's kind.
func (a Alert) Color() string {
	switch a.Kind {
	case KindEscalation:
		return ColorError
	case KindIdle:
		return ColorWarning
	default:
		return ColorInfo
	}
}

// Title returns a one-line headline.
func (a Alert) Title() string {
	switch a.Kind {
	case KindIdle:
		return fmt.Sprintf("Guard %s went quiet: %s", a.Phone, a.Issue)
	case KindAbandoned:
		return fmt.Sprintf("Conversation abandoned: %s (%s)", a.Issue, a.Phone)
	default:
		return fmt.Sprintf("Guard %s needs help: %s", a.Phone, a.Issue)
	}
}

// Field is a labelled value shown alongside the alert body.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Fields returns the structured details channels render as table rows.
func (a Alert) Fields() []Field {
	fields := []Field{{Name: "Guard", Value: a.Phone, Short: true}}
	if a.Step > 0 {
		fields = append(fields, Field{Name: "Step", Value: fmt.Sprintf("%d of %d", a.Step, a.TotalSteps), Short: true})
	}
	if a.Idle > 0 {
		fields = append(fields, Field{Name: "Idle", Value: a.Idle.Round(time.Minute).String(), Short: true})
	}
	if a.Reason != "" {
		fields = append(fields, Field{Name: "Guard said", Value: a.Reason})
	}
	if len(a.Completed) > 0 {
		fields = append(fields, Field{Name: "Completed steps", Value: numbered(a.Completed)})
	}
	return fields
}

// SMSText renders the alert as a supervisor text message.
func (a Alert) SMSText() string {
	switch a.Kind {
	case KindIdle:
		return fmt.Sprintf("⏰ Guard at %s stopped responding during: %s\n\nLast seen at Step %d, %s ago.\n\nPlease check in with them.",
			a.Phone, a.Issue, a.Step, a.Idle.Round(time.Minute))
	case KindAbandoned:
		return fmt.Sprintf("Guard at %s never finished: %s (Step %d of %d). The conversation has been closed.",
			a.Phone, a.Issue, a.Step, a.TotalSteps)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 Guard at %s needs help with: %s", a.Phone, a.Issue)
	if a.Step > 0 {
		fmt.Fprintf(&b, "\n\nThey're stuck at Step %d.", a.Step)
	}
	if a.Reason != "" {
		fmt.Fprintf(&b, "\n\nContext: %s", a.Reason)
	}
	b.WriteString("\n\nPlease contact them ASAP.")
	return b.String()
}

func numbered(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, l)
	}
	return b.String()
}

// Notifier delivers alerts to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// Multi fans an alert out to every notifier. A failing channel does not
// stop the others.
type Multi struct {
	notifiers []Notifier
	log       zerolog.Logger
}

// NewMulti creates a Multi. Nil notifiers are skipped.
func NewMulti(log zerolog.Logger, notifiers ...Notifier) *Multi {
	m := &Multi{log: log}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of channels.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify sends a to every channel and joins their errors.
func (m *Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			m.log.Error().Err(err).Str("channel", n.Name()).Str("phone", a.Phone).Msg("supervisor alert failed")
			errs = append(errs, fmt.Errorf("notify: %s: %w", n.Name(), err))
			continue
		}
		m.log.Info().Str("channel", n.Name()).Str("kind", string(a.Kind)).Str("phone", a.Phone).Msg("supervisor alerted")
	}
	return errors.Join(errs...)
}
