package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/watchtower/internal/notify"
	"github.com/zulandar/watchtower/internal/reporting"
)

func newTestWatcher(t *testing.T, h *harness) *IdleWatcher {
	t.Helper()
	w, err := NewIdleWatcher(IdleWatcherOpts{
		Engine:       h.engine,
		Notifier:     h.alerts,
		Recorder:     h.records,
		Logger:       zerolog.Nop(),
		Timeout:      15 * time.Minute,
		AbandonAfter: 2 * time.Hour,
	})
	require.NoError(t, err)
	return w
}

func scan(t *testing.T, w *IdleWatcher) {
	t.Helper()
	require.NoError(t, w.ScanOnce(context.Background()))
}

func TestNewIdleWatcher_Validation(t *testing.T) {
	_, err := NewIdleWatcher(IdleWatcherOpts{})
	assert.ErrorContains(t, err, "engine is required")

	h := newHarness(t)
	_, err = NewIdleWatcher(IdleWatcherOpts{Engine: h.engine, Notifier: h.alerts, Schedule: "every minute"})
	assert.ErrorContains(t, err, "schedule")
}

func TestIdleWatcher_AlertsOncePerStateInstance(t *testing.T) {
	h := newHarness(t)
	w := newTestWatcher(t, h)
	h.say(t, "gate stuck")

	h.advance(10 * time.Minute)
	scan(t, w)
	assert.Empty(t, h.alerts.ofKind(notify.KindIdle), "not idle long enough")

	h.advance(6 * time.Minute)
	scan(t, w)
	scan(t, w)
	h.advance(30 * time.Minute)
	scan(t, w)

	idle := h.alerts.ofKind(notify.KindIdle)
	require.Len(t, idle, 1)
	assert.Equal(t, guard, idle[0].Phone)
	assert.Equal(t, "Gate Issues", idle[0].Issue)
	assert.Equal(t, 16*time.Minute, idle[0].Idle)
	assert.True(t, w.Alerted(guard))
	h.mustState(t)
}

func TestIdleWatcher_RecreatedStateAlertsAgain(t *testing.T) {
	h := newHarness(t)
	w := newTestWatcher(t, h)

	h.say(t, "electric fence")
	h.advance(20 * time.Minute)
	scan(t, w)
	require.Len(t, h.alerts.ofKind(notify.KindIdle), 1)

	// Guard comes back and finishes; the alert mark is cleared.
	h.say(t, "done")
	h.say(t, "done")
	h.assertNoState(t)
	scan(t, w)
	assert.False(t, w.Alerted(guard))

	// A new conversation is a new instance.
	h.say(t, "electric fence")
	h.advance(20 * time.Minute)
	scan(t, w)
	assert.Len(t, h.alerts.ofKind(notify.KindIdle), 2)
}

func TestIdleWatcher_ActivityDefersAlert(t *testing.T) {
	h := newHarness(t)
	w := newTestWatcher(t, h)
	h.say(t, "cameras down")

	for i := 0; i < 4; i++ {
		h.advance(10 * time.Minute)
		h.say(t, "done")
		scan(t, w)
	}
	assert.Empty(t, h.alerts.ofKind(notify.KindIdle))
}

func TestIdleWatcher_AbandonsAfterLimit(t *testing.T) {
	h := newHarness(t)
	w := newTestWatcher(t, h)
	h.say(t, "cameras down")
	h.say(t, "done")

	h.advance(20 * time.Minute)
	scan(t, w)
	h.advance(2 * time.Hour)
	scan(t, w)

	h.assertNoState(t)
	assert.False(t, w.Alerted(guard))
	abandoned := h.records.withOutcome(reporting.OutcomeAbandoned)
	require.Len(t, abandoned, 1)
	assert.Equal(t, 2, abandoned[0].Step)
	assert.Len(t, abandoned[0].Completed, 1)
	assert.Len(t, h.alerts.ofKind(notify.KindAbandoned), 1)

	// Nothing left to do on the next pass.
	scan(t, w)
	assert.Len(t, h.records.withOutcome(reporting.OutcomeAbandoned), 1)
}

func TestIdleWatcher_AbandonSkipsReplacedInstance(t *testing.T) {
	h := newHarness(t)
	w := newTestWatcher(t, h)
	h.say(t, "fire panel")
	old := h.mustState(t)

	h.advance(3 * time.Hour)
	fresh := old.Clone()
	fresh.ID = "replacement"
	fresh.LastActivityAt = h.now()
	require.NoError(t, h.store.Put(context.Background(), fresh))

	w.abandon(context.Background(), guard, old.ID)
	assert.Equal(t, "replacement", h.mustState(t).ID)
	assert.Empty(t, h.records.withOutcome(reporting.OutcomeAbandoned))
}

func TestIdleWatcher_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	w, err := NewIdleWatcher(IdleWatcherOpts{Engine: h.engine, Notifier: h.alerts, Schedule: "@every 1h"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
