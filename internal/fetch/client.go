// Package fetch provides the HTTP client shared by the upstream clients, with
// DNS caching, retry with exponential backoff and per-host circuit breaking.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
	"github.com/rs/dnscache"

	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/observability"
)

// DefaultUserAgent identifies pkgwatch to upstream services.
const DefaultUserAgent = "pkgwatch/1.0"

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 1024

var (
	sharedResolver     *dnscache.Resolver
	sharedResolverOnce sync.Once
)

// resolver returns the process-wide DNS cache, refreshed every 5 minutes.
func resolver() *dnscache.Resolver {
	sharedResolverOnce.Do(func() {
		sharedResolver = &dnscache.Resolver{}
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				sharedResolver.Refresh(true)
			}
		}()
	})
	return sharedResolver
}

// Client performs JSON GET requests against one upstream.
type Client struct {
	client          *http.Client
	upstream        string
	userAgent       string
	timeout         time.Duration
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	tripThreshold   int64
	logger          *slog.Logger

	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithMaxRetries sets the maximum retry attempts for transient failures.
func WithMaxRetries(n int) Option {
	return func(cl *Client) {
		cl.maxRetries = n
	}
}

// WithRetryInterval sets the initial and maximum backoff between retries.
func WithRetryInterval(initial, max time.Duration) Option {
	return func(cl *Client) {
		cl.initialInterval = initial
		cl.maxInterval = max
	}
}

// WithTripThreshold sets how many consecutive transient failures open a host's breaker.
func WithTripThreshold(n int64) Option {
	return func(cl *Client) {
		cl.tripThreshold = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a client for the named upstream. The name labels metrics.
func NewClient(upstream string, opts ...Option) *Client {
	c := &Client{
		upstream:        upstream,
		userAgent:       DefaultUserAgent,
		timeout:         30 * time.Second,
		maxRetries:      2,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     10 * time.Second,
		tripThreshold:   5,
		logger:          slog.Default(),
		breakers:        make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		c.client = newHTTPClient(c.timeout)
	}

	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dnsResolver := resolver()
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := dnsResolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Upstream returns the upstream name this client reports metrics under.
func (c *Client) Upstream() string {
	return c.upstream
}

// GetJSON fetches rawURL and decodes the JSON body into out.
// Transient failures are retried with exponential backoff; a non-2xx status
// is classified with errors.FromStatus.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out interface{}) error {
	return c.withRetry(ctx, rawURL, func() error {
		return c.getJSON(ctx, rawURL, out)
	})
}

// Probe issues a single GET and returns the status code without retrying.
// Transport failures are returned as errors.
func (c *Client) Probe(ctx context.Context, rawURL string) (int, error) {
	var status int
	err := c.guard(rawURL, func() error {
		req, err := c.newRequest(ctx, rawURL)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return errors.NewTransientf("request to %s failed: %w", rawURL, err)
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		status = resp.StatusCode
		if status >= 500 {
			return errors.FromStatus(status, rawURL)
		}
		return nil
	})
	if err != nil && status >= 500 {
		// Server errors are reported through the status code
		return status, nil
	}
	return status, err
}

func (c *Client) withRetry(ctx context.Context, rawURL string, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.Multiplier = 2.0
	b.MaxElapsedTime = 0
	b.Reset()

	for attempt := 0; ; attempt++ {
		err := c.guard(rawURL, operation)
		if err == nil {
			return nil
		}
		if !errors.IsTransient(err) || errors.Is(err, errors.ErrCircuitOpen) || attempt >= c.maxRetries {
			return err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}

		c.logger.Debug("retrying upstream request",
			"upstream", c.upstream,
			"url", rawURL,
			"attempt", attempt+1,
			"wait", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// guard runs operation through the breaker for rawURL's host.
// Only transient failures count against the breaker.
func (c *Client) guard(rawURL string, operation func() error) error {
	metrics := observability.GetMetrics()
	host := hostOf(rawURL)
	breaker := c.getBreaker(host)

	if !breaker.Ready() {
		metrics.UpstreamRequests.WithLabelValues(c.upstream, "circuit_open").Inc()
		return errors.NewTransient(fmt.Errorf("circuit breaker open for %s: %w", host, errors.ErrCircuitOpen))
	}

	start := time.Now()
	var opErr error
	err := breaker.Call(func() error {
		opErr = operation()
		if opErr != nil && errors.IsTransient(opErr) {
			return opErr
		}
		return nil
	}, 0)
	metrics.UpstreamRequestDuration.WithLabelValues(c.upstream).Observe(time.Since(start).Seconds())

	if err == circuit.ErrBreakerOpen {
		metrics.UpstreamRequests.WithLabelValues(c.upstream, "circuit_open").Inc()
		return errors.NewTransient(fmt.Errorf("circuit breaker open for %s: %w", host, errors.ErrCircuitOpen))
	}

	switch {
	case opErr == nil:
		metrics.UpstreamRequests.WithLabelValues(c.upstream, "success").Inc()
	case errors.IsNotFound(opErr):
		metrics.UpstreamRequests.WithLabelValues(c.upstream, "not_found").Inc()
	default:
		metrics.UpstreamRequests.WithLabelValues(c.upstream, "error").Inc()
	}

	return opErr
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewTransientf("request to %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if statusErr := errors.FromStatus(resp.StatusCode, rawURL); statusErr != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("upstream returned error status",
			"upstream", c.upstream,
			"url", rawURL,
			"status", resp.StatusCode,
			"body", string(body))
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewPermanentf("failed to decode response from %s: %w", rawURL, err)
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewPermanentf("creating request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// getBreaker returns or creates the circuit breaker for host.
func (c *Client) getBreaker(host string) *circuit.Breaker {
	c.mu.RLock()
	breaker, exists := c.breakers[host]
	c.mu.RUnlock()

	if exists {
		return breaker
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if breaker, exists := c.breakers[host]; exists {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(c.tripThreshold),
	})

	c.breakers[host] = breaker
	return breaker
}

// BreakerStates returns "open" or "closed" per upstream host.
func (c *Client) BreakerStates() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	states := make(map[string]string, len(c.breakers))
	for host, breaker := range c.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
