package sms

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ConsoleAdapter is an Adapter backed by a terminal. Each input line is an
// inbound text from a single simulated phone; replies are printed.
type ConsoleAdapter struct {
	in    io.Reader
	out   io.Writer
	phone string

	mu        sync.Mutex
	connected bool
	listening bool
	closed    bool
	inbound   chan InboundMessage
	done      chan struct{}
}

// NewConsoleAdapter creates a ConsoleAdapter reading from in and writing to out.
func NewConsoleAdapter(in io.Reader, out io.Writer, phone string) (*ConsoleAdapter, error) {
	if in == nil || out == nil {
		return nil, fmt.Errorf("sms: console: input and output are required")
	}
	if phone == "" {
		return nil, fmt.Errorf("sms: console: phone is required")
	}
	return &ConsoleAdapter{
		in:      in,
		out:     out,
		phone:   phone,
		inbound: make(chan InboundMessage),
		done:    make(chan struct{}),
	}, nil
}

// Connect marks the adapter connected.
func (c *ConsoleAdapter) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("sms: console: already closed")
	}
	c.connected = true
	return nil
}

// Listen starts reading lines. Blank lines are skipped. The channel closes
// at end of input, when ctx is cancelled, or after Close.
func (c *ConsoleAdapter) Listen(ctx context.Context) (<-chan InboundMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, fmt.Errorf("sms: console: not connected")
	}
	if c.listening {
		return c.inbound, nil
	}
	c.listening = true
	go c.read(ctx)
	return c.inbound, nil
}

func (c *ConsoleAdapter) read(ctx context.Context) {
	defer close(c.inbound)
	sc := bufio.NewScanner(c.in)
	n := 0
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		n++
		msg := InboundMessage{
			ID:         fmt.Sprintf("console-%d", n),
			From:       c.phone,
			Text:       text,
			ReceivedAt: time.Now(),
		}
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case c.inbound <- msg:
		}
	}
}

// Send prints msg.
func (c *ConsoleAdapter) Send(_ context.Context, msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("sms: console: closed")
	}
	label := "WatchTower"
	if msg.To != c.phone {
		label = "WatchTower → " + msg.To
	}
	_, err := fmt.Fprintf(c.out, "\n[%s]\n%s\n\n", label, msg.Body())
	return err
}

// Close stops the reader. A blocked read of the underlying input is not
// interrupted; the reader exits once it next delivers or hits end of input.
func (c *ConsoleAdapter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

// Phone returns the simulated guard number.
func (c *ConsoleAdapter) Phone() string { return c.phone }
