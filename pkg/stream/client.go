// Package stream implements the Stream Client: a persistent push
// connection to the upstream event publisher with restart-safe catch-up
// and exponential-backoff reconnection (spec §4.6).
package stream

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/mwzkhalil/comv2/pkg/commentary"
	"github.com/mwzkhalil/comv2/pkg/logging"
	"github.com/mwzkhalil/comv2/pkg/queue"
)

// Config holds everything the client needs to reach the upstream publisher.
type Config struct {
	APIBaseURL       string // e.g. https://api.example.com
	WSBaseURL        string // e.g. wss://api.example.com; derived from APIBaseURL if empty
	AuthToken        string
	MatchID          string
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// Client owns the network socket exclusively; it is the only component
// that dials, reads frames, and decides when to reconnect.
type Client struct {
	cfg    Config
	queue  *queue.Queue
	logger logging.Logger

	http    *resty.Client
	limiter *rate.Limiter
	status  statusBox
}

// New builds a Client that admits decoded events into q.
func New(cfg Config, q *queue.Queue, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = toWebsocketScheme(cfg.APIBaseURL)
	}

	httpClient := resty.New().
		SetBaseURL(cfg.APIBaseURL).
		SetHeader("Authorization", "Bearer "+cfg.AuthToken)

	return &Client{
		cfg:    cfg,
		queue:  q,
		logger: logger,
		http:   httpClient,
		// Defensive throttle on top of the backoff sequence itself, so a
		// misbehaving publisher that accepts connections but immediately
		// drops them cannot turn the catch-up endpoint into a hot loop.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// Status reports the coarse connection state.
func (c *Client) Status() Status { return c.status.get() }

// Run drives the catch-up/open/reconnect lifecycle until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	bo := newBackoff(c.cfg.ReconnectInitial, c.cfg.ReconnectMax)

	for {
		if ctx.Err() != nil {
			c.status.set(StatusClosed)
			return ctx.Err()
		}

		if err := c.limiter.Wait(ctx); err != nil {
			c.status.set(StatusClosed)
			return ctx.Err()
		}

		c.status.set(StatusConnecting)
		if err := c.catchUp(ctx); err != nil {
			c.logger.Warn("stream: catch-up failed", "error", err)
		}

		err := c.openAndRead(ctx, bo)
		if ctx.Err() != nil {
			c.status.set(StatusClosed)
			return ctx.Err()
		}

		delay := bo.next()
		c.logger.Warn("stream: connection lost, backing off", "error", err, "delay", delay)
		c.status.set(StatusReconnecting)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			c.status.set(StatusClosed)
			return ctx.Err()
		}
	}
}

// catchUp fetches and admits events missed since the last checkpoint, via
// the documented GET {api_base}/commentary/missed-events?match_id=<id>&
// after_id=<id> endpoint (spec §6). A 404 or empty array both mean "no
// missed events", not a failure.
func (c *Client) catchUp(ctx context.Context) error {
	afterID := ""
	if cp := c.queue.Checkpoint(); cp != nil {
		afterID = *cp
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("match_id", c.cfg.MatchID).
		SetQueryParam("after_id", afterID).
		Get("/commentary/missed-events")
	if err != nil {
		return fmt.Errorf("stream: missed-events request: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("stream: missed-events status %d", resp.StatusCode())
	}

	events, err := commentary.DecodeWireArray(resp.Body())
	if err != nil {
		return fmt.Errorf("stream: decode missed-events: %w", err)
	}

	for _, e := range events {
		e.CatchUp = true
		result := c.queue.Admit(e)
		c.logger.Info("stream: catch-up admit", "event_id", e.EventID, "result", result.String())
	}
	return nil
}

// openAndRead dials the push connection and reads frames until it breaks.
// It returns a non-nil error (the wrapped dial or read error) once the
// connection drops or ctx is cancelled. Path matches the documented
// {api_base}/ws/live-commentary/{match_id} endpoint (spec §6).
func (c *Client) openAndRead(ctx context.Context, bo *backoff) error {
	u := url.URL{Path: "/ws/live-commentary/" + url.PathEscape(c.cfg.MatchID)}
	target := c.cfg.WSBaseURL + u.String()

	header := make(map[string][]string)
	if c.cfg.AuthToken != "" {
		header["Authorization"] = []string{"Bearer " + c.cfg.AuthToken}
	}

	conn, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("stream: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c.status.set(StatusConnected)
	bo.reset()

	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("stream: read: %w", err)
		}

		event, err := commentary.DecodeWire(payload)
		if err != nil {
			c.logger.Warn("stream: dropping malformed event", "error", err)
			continue
		}

		result := c.queue.Admit(event)
		c.logger.Info("stream: admit", "event_id", event.EventID, "result", result.String())
	}
}

func toWebsocketScheme(apiBaseURL string) string {
	u, err := url.Parse(apiBaseURL)
	if err != nil {
		return apiBaseURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}
