package reporting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Async wraps a Recorder so callers never wait on the database. Records are
// queued and written by a single goroutine; when the queue is full the
// record is dropped and logged.
type Async struct {
	next    Recorder
	log     zerolog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan func(context.Context) error
	done   chan struct{}
}

// AsyncOpts configures an Async recorder.
type AsyncOpts struct {
	Next      Recorder
	Logger    zerolog.Logger
	QueueSize int           // default 256
	Timeout   time.Duration // per write, default 10s
}

// NewAsync starts the writer goroutine. Call Close to drain and stop it.
func NewAsync(opts AsyncOpts) *Async {
	size := opts.QueueSize
	if size <= 0 {
		size = 256
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	next := opts.Next
	if next == nil {
		next = Nop{}
	}
	a := &Async{
		next:    next,
		log:     opts.Logger,
		timeout: timeout,
		queue:   make(chan func(context.Context) error, size),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for write := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := write(ctx); err != nil {
			a.log.Error().Err(err).Msg("reporting write failed")
		}
		cancel()
	}
}

func (a *Async) enqueue(kind string, write func(context.Context) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.log.Warn().Str("kind", kind).Msg("reporting closed, dropping record")
		return nil
	}
	select {
	case a.queue <- write:
	default:
		a.log.Warn().Str("kind", kind).Msg("reporting queue full, dropping record")
	}
	return nil
}

// RecordIncident queues inc.
func (a *Async) RecordIncident(_ context.Context, inc Incident) error {
	return a.enqueue("incident", func(ctx context.Context) error { return a.next.RecordIncident(ctx, inc) })
}

// RecordHandoff queues h.
func (a *Async) RecordHandoff(_ context.Context, h Handoff) error {
	return a.enqueue("handoff", func(ctx context.Context) error { return a.next.RecordHandoff(ctx, h) })
}

// RecordReport queues r.
func (a *Async) RecordReport(_ context.Context, r Report) error {
	return a.enqueue("report", func(ctx context.Context) error { return a.next.RecordReport(ctx, r) })
}

// Close stops accepting records and waits for queued writes to finish.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
