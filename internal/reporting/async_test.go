package reporting

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type memRecorder struct {
	mu        sync.Mutex
	incidents []Incident
	handoffs  []Handoff
	reports   []Report
	block     chan struct{}
	err       error
}

func (m *memRecorder) wait() {
	if m.block != nil {
		<-m.block
	}
}

func (m *memRecorder) RecordIncident(_ context.Context, inc Incident) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = append(m.incidents, inc)
	return m.err
}

func (m *memRecorder) RecordHandoff(_ context.Context, h Handoff) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handoffs = append(m.handoffs, h)
	return m.err
}

func (m *memRecorder) RecordReport(_ context.Context, r Report) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return m.err
}

func TestAsync_CloseDrainsQueue(t *testing.T) {
	rec := &memRecorder{}
	a := NewAsync(AsyncOpts{Next: rec, Logger: zerolog.Nop()})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		assert.NoError(t, a.RecordIncident(ctx, Incident{Phone: "+1"}))
	}
	assert.NoError(t, a.RecordHandoff(ctx, Handoff{Phone: "+1"}))
	assert.NoError(t, a.RecordReport(ctx, Report{Phone: "+1"}))
	a.Close()

	assert.Len(t, rec.incidents, 10)
	assert.Len(t, rec.handoffs, 1)
	assert.Len(t, rec.reports, 1)
}

func TestAsync_DropsWhenFull(t *testing.T) {
	rec := &memRecorder{block: make(chan struct{})}
	a := NewAsync(AsyncOpts{Next: rec, QueueSize: 1})
	ctx := context.Background()

	// The writer holds at most one record while blocked, the queue one more.
	for i := 0; i < 5; i++ {
		assert.NoError(t, a.RecordReport(ctx, Report{Phone: "+1"}))
	}
	close(rec.block)
	a.Close()

	assert.LessOrEqual(t, len(rec.reports), 2)
	assert.NotEmpty(t, rec.reports)
}

func TestAsync_AfterCloseIsDropped(t *testing.T) {
	rec := &memRecorder{}
	a := NewAsync(AsyncOpts{Next: rec})
	a.Close()
	a.Close()
	assert.NoError(t, a.RecordIncident(context.Background(), Incident{}))
	assert.Empty(t, rec.incidents)
}

func TestAsync_WriteErrorsAreSwallowed(t *testing.T) {
	rec := &memRecorder{err: errors.New("db down")}
	a := NewAsync(AsyncOpts{Next: rec})
	assert.NoError(t, a.RecordHandoff(context.Background(), Handoff{}))
	a.Close()
	assert.Len(t, rec.handoffs, 1)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	ctx := context.Background()
	assert.NoError(t, r.RecordIncident(ctx, Incident{}))
	assert.NoError(t, r.RecordHandoff(ctx, Handoff{}))
	assert.NoError(t, r.RecordReport(ctx, Report{}))
}
