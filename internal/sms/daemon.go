package sms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// handleTimeout bounds the time spent on one inbound message, including
// reasoning-service calls.
const handleTimeout = 2 * time.Minute

// Daemon pumps inbound messages from an Adapter to a Handler. Each sender
// gets its own worker that handles that sender's messages in arrival order,
// so a slow classification never holds up other guards.
type Daemon struct {
	adapter Adapter
	handler Handler
	log     zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[string][]InboundMessage // present while a worker runs for the sender
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Adapter Adapter
	Handler Handler
	Logger  zerolog.Logger
	Timeout time.Duration // per message; defaults to handleTimeout
}

// NewDaemon creates a Daemon.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("sms: daemon: adapter is required")
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("sms: daemon: handler is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = handleTimeout
	}
	return &Daemon{
		adapter: opts.Adapter,
		handler: opts.Handler,
		log:     opts.Logger,
		timeout: timeout,
		pending: make(map[string][]InboundMessage),
	}, nil
}

// Run connects the adapter and blocks until ctx is cancelled or the
// adapter closes its inbound channel. In-flight messages are allowed to
// finish before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("sms: connect: %w", err)
	}
	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("sms: listen: %w", err)
	}
	d.log.Info().Msg("sms daemon online")

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("sms daemon shutting down")
			d.wg.Wait()
			if err := d.adapter.Close(); err != nil {
				d.log.Warn().Err(err).Msg("close adapter")
			}
			return nil

		case msg, ok := <-inbound:
			if !ok {
				d.log.Info().Msg("sms inbound channel closed")
				d.wg.Wait()
				return nil
			}
			d.dispatch(ctx, msg)
		}
	}
}

// dispatch queues msg behind earlier messages from the same sender and
// starts a worker for the sender if none is running.
func (d *Daemon) dispatch(ctx context.Context, msg InboundMessage) {
	d.mu.Lock()
	q, running := d.pending[msg.From]
	d.pending[msg.From] = append(q, msg)
	if !running {
		d.wg.Add(1)
	}
	d.mu.Unlock()
	if !running {
		go d.drain(ctx, msg.From)
	}
}

// drain handles from's queued messages one at a time until the queue is empty.
func (d *Daemon) drain(ctx context.Context, from string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.pending[from]
		if len(q) == 0 {
			delete(d.pending, from)
			d.mu.Unlock()
			return
		}
		msg := q[0]
		d.pending[from] = q[1:]
		d.mu.Unlock()
		d.handle(ctx, msg)
	}
}

func (d *Daemon) handle(ctx context.Context, msg InboundMessage) {
	// Detached from ctx so shutdown lets the current reply finish.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.handler.Handle(hctx, msg); err != nil {
		d.log.Error().Err(err).Str("from", msg.From).Msg("handle inbound message")
	}
}
