package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/watchtower/internal/sms"
)

type fakeNotifier struct {
	name   string
	err    error
	alerts []Alert
}

func (f *fakeNotifier) Name() string { return f.name }
func (f *fakeNotifier) Notify(_ context.Context, a Alert) error {
	f.alerts = append(f.alerts, a)
	return f.err
}

// --- Alert rendering ---

func TestAlert_SMSText_Escalation(t *testing.T) {
	a := Alert{Kind: KindEscalation, Phone: "+15550100", Issue: "Camera/NVR Troubleshooting", Step: 4, Reason: "supervisor"}
	want := "🚨 Guard at +15550100 needs help with: Camera/NVR Troubleshooting\n\nThey're stuck at Step 4.\n\nContext: supervisor\n\nPlease contact them ASAP."
	assert.Equal(t, want, a.SMSText())
}

func TestAlert_SMSText_NoProcedure(t *testing.T) {
	a := Alert{Kind: KindEscalation, Phone: "+15550100", Issue: "Supervisor requested"}
	got := a.SMSText()
	assert.NotContains(t, got, "Step")
	assert.True(t, strings.HasSuffix(got, "Please contact them ASAP."))
}

func TestAlert_SMSText_Idle(t *testing.T) {
	a := Alert{Kind: KindIdle, Phone: "+1", Issue: "Gate Issues", Step: 2, Idle: 16*time.Minute + 10*time.Second}
	got := a.SMSText()
	assert.Contains(t, got, "stopped responding during: Gate Issues")
	assert.Contains(t, got, "Step 2, 16m0s ago")
}

func TestAlert_Color(t *testing.T) {
	assert.Equal(t, ColorError, Alert{Kind: KindEscalation}.Color())
	assert.Equal(t, ColorWarning, Alert{Kind: KindIdle}.Color())
	assert.Equal(t, ColorInfo, Alert{Kind: KindAbandoned}.Color())
}

func TestAlert_Fields(t *testing.T) {
	a := Alert{Phone: "+1", Step: 1, TotalSteps: 3, Completed: []string{"a", "b"}}
	fields := a.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "1 of 3", fields[1].Value)
	assert.Equal(t, "1. a\n2. b", fields[2].Value)
}

// --- Multi ---

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ok := &fakeNotifier{name: "ok"}
	bad := &fakeNotifier{name: "bad", err: errors.New("boom")}
	m := NewMulti(zerolog.Nop(), bad, nil, ok)
	assert.Equal(t, 2, m.Len())

	err := m.Notify(context.Background(), Alert{Kind: KindEscalation, Phone: "+1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify: bad: boom")
	assert.Len(t, ok.alerts, 1, "healthy channel still notified")
	assert.Len(t, bad.alerts, 1)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, NewMulti(zerolog.Nop()).Notify(context.Background(), Alert{}))
}

// --- SMS ---

func TestSMSNotifier(t *testing.T) {
	mock := sms.NewMockAdapter()
	n, err := NewSMSNotifier(mock, "+15559999")
	require.NoError(t, err)
	assert.Equal(t, "sms", n.Name())

	require.NoError(t, n.Notify(context.Background(), Alert{Kind: KindEscalation, Phone: "+1", Issue: "Gate Issues"}))
	last, ok := mock.LastSent()
	require.True(t, ok)
	assert.Equal(t, "+15559999", last.To)
	assert.Contains(t, last.Text, "Gate Issues")
}

func TestNewSMSNotifier_Validation(t *testing.T) {
	_, err := NewSMSNotifier(nil, "+1")
	assert.ErrorContains(t, err, "sender is required")
	_, err = NewSMSNotifier(sms.NewMockAdapter(), "")
	assert.ErrorContains(t, err, "supervisor phone")
}
