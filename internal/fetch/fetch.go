// Package fetch pulls fresh enrolment extracts from the upstream open-data
// API and drops them into the upload directory for the next pipeline run to
// pick up. Periodicity comes from the scheduler; this client makes exactly
// one attempt per call.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited means the upstream returned 429; the caller should wait for
// the next scheduled cycle rather than retry.
var ErrRateLimited = errors.New("fetch: upstream rate limited")

const (
	requestTimeout = 60 * time.Second

	// fetchSubdir under the upload directory keeps fetched files apart from
	// operator uploads.
	fetchSubdir = "api_fetch"
)

// Client downloads CSV extracts from a fixed URL.
type Client struct {
	url       string
	clientID  string
	uploadDir string
	http      *http.Client
	limiter   *rate.Limiter
	now       func() time.Time
	log       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithClock overrides the timestamp source for deterministic file names.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a fetch client. One request every two seconds is allowed;
// the limiter spans calls so schedulers and manual triggers share the budget.
func NewClient(url, clientID, uploadDir string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch: url is required")
	}
	c := &Client{
		url:       url,
		clientID:  clientID,
		uploadDir: uploadDir,
		http:      &http.Client{Timeout: requestTimeout},
		limiter:   rate.NewLimiter(rate.Every(2*time.Second), 1),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchLatest downloads one extract and returns the saved path. A 429 maps
// to ErrRateLimited; any other non-200 status is an error.
func (c *Client) FetchLatest(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("fetch: limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: build request: %w", err)
	}
	if c.clientID != "" {
		req.Header.Set("client_id", c.clientID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("fetch: upstream status %d", resp.StatusCode)
	}

	dir := filepath.Join(c.uploadDir, fetchSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("fetch: create %s: %w", dir, err)
	}

	name := fmt.Sprintf("enrolment_%s.csv", c.now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("fetch: create file: %w", err)
	}
	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("fetch: save body: %w", err)
	}

	c.log.Info("fetched upstream extract", "path", path, "bytes", written)
	return path, nil
}
