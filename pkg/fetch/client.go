package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hbgk/gkpulse/pkg/retry"
	"go.uber.org/zap"
)

var (
	// ErrBreakerOpen is returned while a host is cooling down after repeated failures.
	ErrBreakerOpen = errors.New("circuit breaker open")
	// ErrTooLarge is returned when a body exceeds MaxBytes.
	ErrTooLarge = errors.New("response body too large")
)

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http %d", e.URL, e.Code)
}

// Client is a polite GET client: a token bucket bounds the request rate, a per-host circuit
// breaker stops hammering a failing server, and transient failures are retried with backoff.
type Client struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	retry     retry.Config
	logger    *zap.Logger

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new Client.
type Opts struct {
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	MaxBytes        int64
	UserAgent       string
	Retry           *retry.Config
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// New creates a new Client with the given options.
func New(o Opts) *Client {
	if o.RPS <= 0 {
		o.RPS = 1
	}
	if o.Burst <= 0 {
		o.Burst = 2
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = time.Minute
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 32 << 20
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (compatible; gkpulse/1.0)"
	}
	cfg := retry.FetchConfig()
	if o.Retry != nil {
		cfg = *o.Retry
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &Client{
		client:           client,
		userAgent:        o.UserAgent,
		maxBytes:         o.MaxBytes,
		retry:            cfg,
		logger:           logger,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

// Get downloads rawURL and returns its body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	host := u.Host

	var body []byte
	err = retry.WithBackoff(ctx, c.retry, c.logger, "fetch "+rawURL, func() error {
		if c.isOpen(host) {
			return ErrBreakerOpen
		}
		if err := c.acquire(ctx); err != nil {
			return retry.Permanent(err)
		}
		b, err := c.do(ctx, rawURL)
		if err != nil {
			var se *StatusError
			switch {
			case errors.As(err, &se) && se.Code < 500:
				return retry.Permanent(err)
			case errors.Is(err, ErrTooLarge):
				return retry.Permanent(err)
			}
			c.noteFailure(host)
			return err
		}
		c.noteSuccess(host)
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > c.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrTooLarge, c.maxBytes, rawURL)
	}
	return b, nil
}

// closeBody discards what is left of an error or oversized body, up to a bound, so the
// connection can be reused.
func closeBody(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 64<<10))
	_ = rc.Close()
}

// refill refills the token-bucket with new tokens if necessary.
func (c *Client) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= c.refillEvery {
		if atomic.LoadInt64(&c.tokens) < c.maxTokens {
			atomic.AddInt64(&c.tokens, 1)
		}
		c.lastRefill.Store(now)
	}
}

// acquire takes a token from the bucket, waiting until one is available or ctx ends.
func (c *Client) acquire(ctx context.Context) error {
	for {
		c.refill()
		if atomic.AddInt64(&c.tokens, -1) >= 0 {
			return nil
		}
		atomic.AddInt64(&c.tokens, 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.refillEvery / 2):
		}
	}
}

// isOpen reports whether the breaker for host is OPEN.
func (c *Client) isOpen(host string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[host]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, host)
		c.failures[host] = 0
		return false
	}
	return true
}

// noteFailure counts a failure and opens the breaker once the threshold is reached.
func (c *Client) noteFailure(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[host]++
	if c.failures[host] >= c.breakerThreshold {
		c.opened[host] = time.Now().Add(c.breakerCooldown)
		c.logger.Warn("Circuit breaker opened",
			zap.String("host", host),
			zap.Int("failures", c.failures[host]),
			zap.Duration("cooldown", c.breakerCooldown))
	}
}

func (c *Client) noteSuccess(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[host] = 0
}
