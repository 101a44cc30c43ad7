// Package httpds fetches remote input files over HTTP.
//
// Statistical file readers seek, so a Remote spools the response body into
// a temporary file before handing it out. Requests go through a Client that
// retries transport errors, 429 and 5xx responses with exponential backoff.
package httpds

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// Config configures a Client. Zero values select the defaults noted on each
// field.
type Config struct {
	// Timeout bounds one whole request including the body (default 10m).
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first one (default 0).
	MaxRetries int

	// InitialBackoff is the wait before the first retry (default 200ms);
	// each further retry doubles it up to MaxBackoff (default 5s).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// Headers are sent with every request.
	Headers http.Header

	// Transport replaces the default transport, mostly for tests.
	Transport http.RoundTripper
}

// Client is an http.Client with retry and backoff.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	headers        http.Header

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in
		}
	}

	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		headers:        cfg.Headers.Clone(),
		sleep:          sleepContext,
	}
}

// Get issues a GET for url with extra headers layered over the configured
// ones. On success the caller must close the response body. A final
// response outside 2xx is returned as an error.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	if url == "" {
		return nil, fmt.Errorf("httpds: empty url")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoff(c.initialBackoff, attempt-1, c.maxBackoff)); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}
		for k, vs := range c.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		for k, vs := range headers {
			req.Header[k] = vs
		}

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("httpds: GET %s: %w", url, err)
		case retryable(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("httpds: GET %s: status %d", url, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			_ = resp.Body.Close()
			return nil, fmt.Errorf("httpds: GET %s: status %d", url, resp.StatusCode)
		default:
			return resp, nil
		}
	}
	return nil, lastErr
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// backoff returns initial*2^retry capped at max.
func backoff(initial time.Duration, retry int, max time.Duration) time.Duration {
	if retry > 30 {
		return max
	}
	d := initial << retry
	if d > max || d <= 0 {
		return max
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
