// Package escalation hands a guard to a human supervisor: it alerts every
// supervisor channel and records an escalated incident, at most once per
// conversation.
package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zulandar/watchtower/internal/notify"
	"github.com/zulandar/watchtower/internal/reporting"
)

// Escalation describes why a guard needs a supervisor.
type Escalation struct {
	StateID     string // conversation instance; empty for requests made outside a procedure
	Phone       string
	ProcedureID string
	Issue       string
	Step        int
	TotalSteps  int
	Reason      string // the guard's message or the rule that fired
	Completed   []string
	Transcript  []string
	StartedAt   time.Time
}

// Escalator notifies supervisors and records incidents.
type Escalator struct {
	notifier notify.Notifier
	recorder reporting.Recorder
	log      zerolog.Logger
	now      func() time.Time
	retain   time.Duration

	mu   sync.Mutex
	seen map[string]time.Time // state ID -> escalated at
}

// Opts configures an Escalator.
type Opts struct {
	Notifier notify.Notifier
	Recorder reporting.Recorder // defaults to reporting.Nop
	Logger   zerolog.Logger
	Now      func() time.Time
	// Retain is how long escalated state IDs are remembered. Default 24h.
	Retain time.Duration
}

// New creates an Escalator.
func New(opts Opts) (*Escalator, error) {
	if opts.Notifier == nil {
		return nil, fmt.Errorf("escalation: notifier is required")
	}
	rec := opts.Recorder
	if rec == nil {
		rec = reporting.Nop{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	retain := opts.Retain
	if retain <= 0 {
		retain = 24 * time.Hour
	}
	return &Escalator{
		notifier: opts.Notifier,
		recorder: rec,
		log:      opts.Logger,
		now:      now,
		retain:   retain,
		seen:     make(map[string]time.Time),
	}, nil
}

// Escalate alerts supervisors about e. It returns false without side effects
// when e.StateID was already escalated. Channel and recording failures are
// logged, never returned.
func (x *Escalator) Escalate(ctx context.Context, e Escalation) bool {
	now := x.now()
	if !x.claim(e.StateID, now) {
		x.log.Debug().Str("state", e.StateID).Str("phone", e.Phone).Msg("already escalated, skipping")
		return false
	}
	stateID := e.StateID
	if stateID == "" {
		stateID = uuid.NewString()
	}

	alert := notify.Alert{
		Kind:       notify.KindEscalation,
		Phone:      e.Phone,
		Issue:      e.Issue,
		Step:       e.Step,
		TotalSteps: e.TotalSteps,
		Reason:     e.Reason,
		Completed:  e.Completed,
		At:         now,
	}
	if err := x.notifier.Notify(ctx, alert); err != nil {
		x.log.Error().Err(err).Str("phone", e.Phone).Msg("escalation delivered with errors")
	}

	inc := reporting.Incident{
		StateID:     stateID,
		Phone:       e.Phone,
		ProcedureID: e.ProcedureID,
		Issue:       e.Issue,
		Outcome:     reporting.OutcomeEscalated,
		Reason:      e.Reason,
		Step:        e.Step,
		TotalSteps:  e.TotalSteps,
		Completed:   e.Completed,
		Transcript:  e.Transcript,
		StartedAt:   e.StartedAt,
		EndedAt:     now,
	}
	if err := x.recorder.RecordIncident(ctx, inc); err != nil {
		x.log.Error().Err(err).Str("phone", e.Phone).Msg("record escalated incident failed")
	}

	x.log.Info().Str("phone", e.Phone).Str("issue", e.Issue).Int("step", e.Step).Msg("escalated to supervisor")
	return true
}

// claim marks stateID as escalated. Empty IDs always succeed.
func (x *Escalator) claim(stateID string, now time.Time) bool {
	if stateID == "" {
		return true
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, at := range x.seen {
		if now.Sub(at) > x.retain {
			delete(x.seen, id)
		}
	}
	if _, ok := x.seen[stateID]; ok {
		return false
	}
	x.seen[stateID] = now
	return true
}
