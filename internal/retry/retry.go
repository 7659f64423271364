// Package retry executes fallible operations against unreliable external
// providers with capped exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 30 * time.Second
)

// Options tunes a single retried operation. The zero value applies defaults.
type Options struct {
	// MaxRetries is the number of retry attempts after the first try.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// ShouldRetry decides whether an error is transient. Defaults to Retryable.
	ShouldRetry func(error) bool
	// OnRetry is invoked before each wait, for logging.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = Retryable
	}
	return o
}

// Do runs op until it succeeds, fails with a non-retryable error, or exhausts
// MaxRetries+1 attempts. The last error is returned verbatim so callers keep
// handling the underlying type.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == opts.MaxRetries || !opts.ShouldRetry(err) {
			break
		}
		delay := backoffDelay(attempt, opts.BaseDelay, opts.MaxDelay)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err, delay)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

// backoffDelay doubles the base delay per attempt and adds uniform jitter of
// up to half the base delay, capped at max. Bases too small to carry jitter
// back off without it.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base << attempt
	if delay <= 0 || delay > max {
		return max
	}
	if half := int64(base) / 2; half > 0 {
		delay += time.Duration(rand.Int64N(half))
	}
	if delay > max {
		return max
	}
	return delay
}

// HTTPError marks a transport-successful response whose status indicates
// failure. Responses with status 429 or >= 500 are retryable.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %s: %s", e.Status, e.Body)
	}
	return "http " + e.Status
}

// status5xx matches any server-error status carried in an error message.
var status5xx = regexp.MustCompile(`\b5\d\d\b`)

// Retryable is the default transient-error policy: HTTP 429 and 5xx, plus
// error messages indicating network failure or timeout.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"network",
		"temporarily unavailable",
		"429",
		"too many requests",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return status5xx.MatchString(msg)
}

// DoRequest retries an HTTP call, treating 429 and 5xx responses as failures
// even though the call succeeded transport-wise. Other statuses, including
// 4xx, are returned to the caller undisturbed.
func DoRequest(ctx context.Context, opts Options, send func(ctx context.Context) (*resty.Response, error)) (*resty.Response, error) {
	return Do(ctx, opts, func(ctx context.Context) (*resty.Response, error) {
		resp, err := send(ctx)
		if err != nil {
			return nil, err
		}
		code := resp.StatusCode()
		if code == http.StatusTooManyRequests || code >= 500 {
			return nil, &HTTPError{StatusCode: code, Status: resp.Status(), Body: strings.TrimSpace(resp.String())}
		}
		return resp, nil
	})
}
