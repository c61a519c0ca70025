// Package httpfetch implements the Retry Fetcher: a GET client with the
// exact status-code policy every upstream collaborator (NPTG, NaPTAN,
// NOC, BODS, the TNDS slug snapshot) shares:
//
//	200            -> success, body returned.
//	400, 404       -> fatal to the requesting unit, UpstreamRejected.
//	429            -> retried indefinitely with a fixed backoff.
//	anything else  -> retried a bounded number of times, then
//	                  UpstreamUnavailable.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	pipelineerrors "github.com/uktransitdata/corpus-pipeline/errors"
)

// Clock abstracts time.Sleep so tests can run the 429 backoff instantly.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	ThrottleBackoff    time.Duration // sleep between 429 retries
	BoundedRetries     int           // retries after the first request for non-200/400/404/429 statuses
	BoundedRetryDelay time.Duration
	Clock             Clock
}

// DefaultOptions returns the policy used by every collaborator loader
// unless overridden.
func DefaultOptions() Options {
	return Options{
		Timeout:           30 * time.Second,
		ThrottleBackoff:    10 * time.Second,
		BoundedRetries:     3,
		BoundedRetryDelay: 2 * time.Second,
		Clock:             realClock{},
	}
}

// Client is a GET-only HTTP client implementing the Retry Fetcher policy.
type Client struct {
	httpClient *http.Client
	opts       Options
}

// New creates a Client with the given options, filling in defaults for
// any zero-valued field.
func New(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.Timeout == 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.ThrottleBackoff == 0 {
		opts.ThrottleBackoff = defaults.ThrottleBackoff
	}
	if opts.BoundedRetries == 0 {
		opts.BoundedRetries = defaults.BoundedRetries
	}
	if opts.BoundedRetryDelay == 0 {
		opts.BoundedRetryDelay = defaults.BoundedRetryDelay
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
	}
}

// Get fetches url, applying the 200/400/404/429/other status policy.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	attempt := 0
	for {
		body, status, err := c.doOnce(ctx, url)
		if err != nil {
			return nil, pipelineerrors.New(pipelineerrors.UpstreamUnavailable, "request failed").
				WithFile(url).WithCause(err)
		}

		switch {
		case status == http.StatusOK:
			return body, nil

		case status == http.StatusBadRequest || status == http.StatusNotFound:
			return nil, pipelineerrors.New(pipelineerrors.UpstreamRejected,
				fmt.Sprintf("endpoint returned %d", status)).WithFile(url)

		case status == http.StatusTooManyRequests:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			c.opts.Clock.Sleep(c.opts.ThrottleBackoff)
			continue

		default:
			attempt++
			if attempt > c.opts.BoundedRetries {
				return nil, pipelineerrors.New(pipelineerrors.UpstreamUnavailable,
					fmt.Sprintf("endpoint returned %d after %d attempts", status, attempt)).WithFile(url)
			}
			c.opts.Clock.Sleep(c.opts.BoundedRetryDelay)
			continue
		}
	}
}

func (c *Client) doOnce(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "corpus-pipeline/1.0")
	req.Header.Set("Accept", "application/xml, application/json, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, 0, err
		}
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}
