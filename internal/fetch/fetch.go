// Package fetch provides an HTTP downloader for remote source media.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Static errors for fetch operations.
var (
	// ErrURLRequired is returned when the source URL is empty.
	ErrURLRequired = errors.New("fetch: URL is required")
	// ErrTooLarge is returned when the response body exceeds the size cap.
	ErrTooLarge = errors.New("fetch: response body exceeds size limit")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("fetch: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("fetch: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("fetch: request failed")
)

// DefaultMaxBytes caps downloads at 512 MiB unless configured otherwise.
const DefaultMaxBytes = 512 << 20

// Fetcher defines the interface for downloading remote media.
type Fetcher interface {
	// Download streams the body of url into dst and returns the number of
	// bytes written.
	Download(ctx context.Context, url string, dst io.Writer) (int64, error)
}

// HTTPFetcher is the HTTP implementation of the Fetcher interface.
// Transient failures (transport errors, 5xx, 429) are retried with
// exponential backoff before any body bytes are written to dst.
type HTTPFetcher struct {
	httpClient  *http.Client
	maxBytes    int64
	maxRetries  int
	baseBackoff time.Duration
}

// Option is a function that configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.httpClient = c
	}
}

// WithTimeout sets the per-download timeout on the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.httpClient.Timeout = d
	}
}

// WithMaxBytes caps the number of body bytes accepted per download.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) Option {
	return func(f *HTTPFetcher) {
		f.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.baseBackoff = d
	}
}

// NewHTTPFetcher creates a new HTTPFetcher.
// Redirects are followed by the underlying HTTP client.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		maxBytes:    DefaultMaxBytes,
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Download streams the body of url into dst and returns the number of
// bytes written.
func (f *HTTPFetcher) Download(ctx context.Context, url string, dst io.Writer) (int64, error) {
	if url == "" {
		return 0, ErrURLRequired
	}

	var lastErr error
	backoff := f.baseBackoff

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, fmt.Errorf("fetch: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		written, err := f.download(ctx, url, dst)
		if err == nil {
			return written, nil
		}

		if !isRetryable(err) {
			return written, err
		}

		lastErr = err
	}

	return 0, fmt.Errorf("fetch: max retries exceeded: %w", lastErr)
}

// download performs a single download attempt.
func (f *HTTPFetcher) download(ctx context.Context, url string, dst io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch: create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, &retryableError{err: fmt.Errorf("fetch: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	// Handle non-2xx status codes before touching dst
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return 0, &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(body))}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == http.StatusTooManyRequests {
			return 0, &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(body))}
		}
		return 0, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	// Copy at most maxBytes+1 so an oversized body is detectable.
	written, err := io.Copy(dst, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		// dst may already hold partial data, so this is not retryable.
		return written, fmt.Errorf("fetch: read body: %w", err)
	}
	if written > f.maxBytes {
		return written, fmt.Errorf("%w: cap is %d bytes", ErrTooLarge, f.maxBytes)
	}

	return written, nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
