// Package ringcentral implements the sms Adapter for the RingCentral
// platform. Outbound texts go through the REST API; inbound texts arrive as
// webhook notifications which the HTTP server hands to Receive.
package ringcentral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/zulandar/watchtower/internal/sms"
)

const (
	// jwtBearerGrant is the OAuth grant RingCentral uses for JWT credentials.
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	tokenPath = "/restapi/oauth/token"
	smsPath   = "/restapi/v1.0/account/~/extension/~/sms"

	// maxRetries is the max number of retries for rate-limited sends.
	maxRetries  = 3
	baseBackoff = 2 * time.Second
	maxBackoff  = 30 * time.Second
)

// Adapter implements sms.Adapter for RingCentral.
type Adapter struct {
	server            string
	from              string
	verificationToken string
	log               zerolog.Logger
	creds             *clientcredentials.Config
	client            *http.Client

	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan sms.InboundMessage

	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// Opts holds parameters for creating an Adapter.
type Opts struct {
	Server            string // platform base URL, e.g. https://platform.ringcentral.com
	ClientID          string
	ClientSecret      string
	JWT               string // user JWT credential
	FromNumber        string // number texts are sent from
	VerificationToken string // optional, checked against the Verification-Token header
	Logger            zerolog.Logger
	// For testing: an HTTP client that already carries credentials.
	HTTPClient *http.Client
}

// New creates an Adapter. No network calls are made until Connect.
func New(opts Opts) (*Adapter, error) {
	if opts.Server == "" {
		return nil, fmt.Errorf("ringcentral: server is required")
	}
	if opts.FromNumber == "" {
		return nil, fmt.Errorf("ringcentral: from number is required")
	}
	if opts.HTTPClient == nil {
		if opts.ClientID == "" || opts.ClientSecret == "" {
			return nil, fmt.Errorf("ringcentral: client id and secret are required")
		}
		if opts.JWT == "" {
			return nil, fmt.Errorf("ringcentral: jwt is required")
		}
	}
	server := strings.TrimRight(opts.Server, "/")
	a := &Adapter{
		server:            server,
		from:              opts.FromNumber,
		verificationToken: opts.VerificationToken,
		log:               opts.Logger,
		client:            opts.HTTPClient,
		inbound:           make(chan sms.InboundMessage, 100),
		baseBackoff:       baseBackoff,
		maxBackoff:        maxBackoff,
	}
	if a.client == nil {
		a.creds = &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     server + tokenPath,
			AuthStyle:    oauth2.AuthStyleInHeader,
			EndpointParams: url.Values{
				"grant_type": {jwtBearerGrant},
				"assertion":  {opts.JWT},
			},
		}
	}
	return a, nil
}

// Connect exchanges the JWT for an access token. The token source caches
// and refreshes the token for later sends.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("ringcentral: adapter already closed")
	}
	if a.connected {
		return nil
	}
	if a.client == nil {
		// The token source outlives ctx, so it gets its own background context.
		ts := a.creds.TokenSource(context.Background())
		if _, err := ts.Token(); err != nil {
			return fmt.Errorf("ringcentral: login: %w", err)
		}
		a.client = oauth2.NewClient(context.Background(), ts)
	}
	a.connected = true
	a.log.Info().Str("from", a.from).Msg("ringcentral connected")
	return nil
}

// Listen returns the inbound message channel fed by Receive.
func (a *Adapter) Listen(ctx context.Context) (<-chan sms.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("ringcentral: not connected")
	}
	return a.inbound, nil
}

// Close stops accepting notifications and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	close(a.inbound)
	return nil
}

type phoneNumber struct {
	PhoneNumber string `json:"phoneNumber"`
}

type sendRequest struct {
	From phoneNumber   `json:"from"`
	To   []phoneNumber `json:"to"`
	Text string        `json:"text"`
}

// Send posts one SMS. Image URLs are appended to the text since the SMS
// endpoint carries no media.
func (a *Adapter) Send(ctx context.Context, msg sms.OutboundMessage) error {
	a.mu.Lock()
	client, connected := a.client, a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("ringcentral: not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("ringcentral: send: recipient is required")
	}
	payload, err := json.Marshal(sendRequest{
		From: phoneNumber{a.from},
		To:   []phoneNumber{{msg.To}},
		Text: msg.Body(),
	})
	if err != nil {
		return fmt.Errorf("ringcentral: marshal sms: %w", err)
	}
	return a.retryOnRateLimit(ctx, func() (time.Duration, error) {
		return a.post(ctx, client, payload)
	})
}

// post sends one request. It returns a positive wait when rate limited.
func (a *Adapter) post(ctx context.Context, client *http.Client, payload []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.server+smsPath, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("ringcentral: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ringcentral: send sms: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := a.baseBackoff
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
			wait = time.Duration(s) * time.Second
		}
		return wait, fmt.Errorf("ringcentral: rate limited")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("ringcentral: send sms: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return 0, nil
}

// retryOnRateLimit retries fn while it reports a rate limit, honouring the
// server's Retry-After capped at maxBackoff.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() (time.Duration, error)) error {
	for attempt := 0; ; attempt++ {
		wait, err := fn()
		if err == nil || wait <= 0 || attempt >= maxRetries {
			return err
		}
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}
		a.log.Warn().Dur("wait", wait).Int("attempt", attempt+1).Msg("ringcentral rate limited, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
