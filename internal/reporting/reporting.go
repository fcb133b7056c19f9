// Package reporting records how guard conversations ended, plus the shift
// sign-offs and free-form reports guards text in.
package reporting

import (
	"context"
	"time"
)

// Outcome is how a conversation ended.
type Outcome string

const (
	OutcomeResolved  Outcome = "resolved"
	OutcomeEscalated Outcome = "escalated"
	OutcomeAbandoned Outcome = "abandoned"
)

// Incident describes one finished conversation.
type Incident struct {
	StateID     string
	Phone       string
	ProcedureID string
	Issue       string // procedure title, or the guard's words for ad-hoc requests
	Outcome     Outcome
	Reason      string
	Step        int
	TotalSteps  int
	Completed   []string // instructions of completed steps, in order
	Transcript  []string
	StartedAt   time.Time
	EndedAt     time.Time
}

// Handoff is a guard signing off their shift.
type Handoff struct {
	Phone string
	Notes string
	At    time.Time
}

// Report is a free-form report from a guard.
type Report struct {
	Phone string
	Body  string
	At    time.Time
}

// Recorder accepts records for later review. Callers treat delivery as
// fire-and-forget and only log errors.
type Recorder interface {
	RecordIncident(ctx context.Context, inc Incident) error
	RecordHandoff(ctx context.Context, h Handoff) error
	RecordReport(ctx context.Context, r Report) error
}

// Nop discards every record.
type Nop struct{}

func (Nop) RecordIncident(context.Context, Incident) error { return nil }
func (Nop) RecordHandoff(context.Context, Handoff) error   { return nil }
func (Nop) RecordReport(context.Context, Report) error     { return nil }
