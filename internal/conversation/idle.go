package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/zulandar/watchtower/internal/notify"
	"github.com/zulandar/watchtower/internal/reporting"
)

// IdleWatcher scans for conversations the guard stopped answering. A state
// idle past Timeout raises one supervisor alert per state instance; past
// AbandonAfter it is closed and recorded as abandoned.
type IdleWatcher struct {
	engine       *Engine
	notifier     notify.Notifier
	recorder     reporting.Recorder
	log          zerolog.Logger
	schedule     cron.Schedule
	timeout      time.Duration
	abandonAfter time.Duration

	mu      sync.Mutex
	alerted map[string]string // phone -> state ID already alerted
}

// IdleWatcherOpts configures an IdleWatcher.
type IdleWatcherOpts struct {
	Engine       *Engine
	Notifier     notify.Notifier
	Recorder     reporting.Recorder // defaults to reporting.Nop
	Logger       zerolog.Logger
	Schedule     string        // cron spec or descriptor, default "@every 1m"
	Timeout      time.Duration // default 15m
	AbandonAfter time.Duration // default 2h
}

// NewIdleWatcher creates an IdleWatcher.
func NewIdleWatcher(opts IdleWatcherOpts) (*IdleWatcher, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("conversation: idle watcher: engine is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("conversation: idle watcher: notifier is required")
	}
	spec := opts.Schedule
	if spec == "" {
		spec = "@every 1m"
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("conversation: idle watcher: schedule %q: %w", spec, err)
	}
	w := &IdleWatcher{
		engine:       opts.Engine,
		notifier:     opts.Notifier,
		recorder:     opts.Recorder,
		log:          opts.Logger,
		schedule:     sched,
		timeout:      opts.Timeout,
		abandonAfter: opts.AbandonAfter,
		alerted:      make(map[string]string),
	}
	if w.recorder == nil {
		w.recorder = reporting.Nop{}
	}
	if w.timeout <= 0 {
		w.timeout = 15 * time.Minute
	}
	if w.abandonAfter <= 0 {
		w.abandonAfter = 2 * time.Hour
	}
	return w, nil
}

// Run scans on the configured schedule until ctx is cancelled.
func (w *IdleWatcher) Run(ctx context.Context) {
	timer := time.NewTimer(w.untilNext())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := w.ScanOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("idle scan failed")
			}
			timer.Reset(w.untilNext())
		}
	}
}

func (w *IdleWatcher) untilNext() time.Duration {
	now := w.engine.now()
	d := w.schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ScanOnce checks every conversation once.
func (w *IdleWatcher) ScanOnce(ctx context.Context) error {
	states, err := w.engine.store.List(ctx)
	if err != nil {
		return fmt.Errorf("conversation: idle scan: %w", err)
	}
	live := make(map[string]string, len(states))
	for _, st := range states {
		live[st.Phone] = st.ID
	}
	w.forgetStale(live)

	now := w.engine.now()
	for _, st := range states {
		idle := now.Sub(st.LastActivityAt)
		switch {
		case idle >= w.abandonAfter:
			w.abandon(ctx, st.Phone, st.ID)
		case idle >= w.timeout && w.markAlerted(st.Phone, st.ID):
			w.log.Info().Str("phone", st.Phone).Dur("idle", idle).Msg("conversation idle")
			if err := w.notifier.Notify(ctx, w.alert(notify.KindIdle, st, idle)); err != nil {
				w.log.Error().Err(err).Str("phone", st.Phone).Msg("idle alert failed")
			}
		}
	}
	return nil
}

// abandon closes the conversation if it is still the same instance and still
// idle once the phone lock is held.
func (w *IdleWatcher) abandon(ctx context.Context, phone, stateID string) {
	unlock := w.engine.locks.lock(phone)
	defer unlock()

	st, ok, err := w.engine.store.Get(ctx, phone)
	if err != nil {
		w.log.Error().Err(err).Str("phone", phone).Msg("idle scan: reload state failed")
		return
	}
	if !ok || st.ID != stateID {
		return
	}
	now := w.engine.now()
	idle := now.Sub(st.LastActivityAt)
	if idle < w.abandonAfter {
		return
	}
	if err := w.engine.store.Delete(ctx, phone); err != nil {
		w.log.Error().Err(err).Str("phone", phone).Msg("idle scan: delete state failed")
		return
	}
	w.mu.Lock()
	delete(w.alerted, phone)
	w.mu.Unlock()

	w.log.Warn().Str("phone", phone).Str("procedure", st.Procedure.ID).Dur("idle", idle).Msg("conversation abandoned")
	if err := w.recorder.RecordIncident(ctx, reporting.Incident{
		StateID:     st.ID,
		Phone:       phone,
		ProcedureID: st.Procedure.ID,
		Issue:       st.Procedure.Title,
		Outcome:     reporting.OutcomeAbandoned,
		Reason:      fmt.Sprintf("no reply for %s", idle.Round(time.Minute)),
		Step:        st.Step,
		TotalSteps:  len(st.Procedure.Steps),
		Completed:   st.CompletedInstructions(),
		Transcript:  st.Transcript(),
		StartedAt:   st.StartedAt,
		EndedAt:     now,
	}); err != nil {
		w.log.Error().Err(err).Str("phone", phone).Msg("record abandoned incident failed")
	}
	if err := w.notifier.Notify(ctx, w.alert(notify.KindAbandoned, st, idle)); err != nil {
		w.log.Error().Err(err).Str("phone", phone).Msg("abandoned alert failed")
	}
}

func (w *IdleWatcher) alert(kind notify.Kind, st *State, idle time.Duration) notify.Alert {
	return notify.Alert{
		Kind:       kind,
		Phone:      st.Phone,
		Issue:      st.Procedure.Title,
		Step:       st.Step,
		TotalSteps: len(st.Procedure.Steps),
		Completed:  st.CompletedInstructions(),
		Idle:       idle,
		At:         w.engine.now(),
	}
}

// markAlerted records that stateID was alerted. It returns false when it
// already was.
func (w *IdleWatcher) markAlerted(phone, stateID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.alerted[phone] == stateID {
		return false
	}
	w.alerted[phone] = stateID
	return true
}

// forgetStale drops alert marks for states that were deleted or recreated.
func (w *IdleWatcher) forgetStale(live map[string]string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for phone, id := range w.alerted {
		if live[phone] != id {
			delete(w.alerted, phone)
		}
	}
}

// Alerted reports whether an idle alert is outstanding for phone.
func (w *IdleWatcher) Alerted(phone string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.alerted[phone]
	return ok
}
