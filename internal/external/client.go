// Package external contains the outbound HTTP layer for third-party provider
// APIs. Every provider client is built on BaseClient, so circuit breaking,
// retry behavior, trace header propagation, and AppError mapping are uniform
// across vendors.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"alathletics/internal/types"

	"github.com/sony/gobreaker/v2"
)

// RetryPolicy bounds how often and how long BaseClient retries a failed call.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy is the policy used for billing provider calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    500 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// BaseClient executes outbound HTTP requests behind a circuit breaker with
// bounded retries. Provider clients embed it rather than holding a raw
// *http.Client.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration)
}

// BaseClientOption customizes a BaseClient at construction time.
type BaseClientOption func(*BaseClient)

// WithSleepFunc replaces the inter-retry sleep. Tests inject a no-op so retry
// paths run instantly.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// NewBaseClient builds a BaseClient around the given http client. The breaker
// trips after six consecutive failures and half-opens after 30 seconds,
// admitting one trial request.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	c := &BaseClient{
		client: httpClient,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil
			},
		}),
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends the request through the breaker, retrying 429 and 5xx responses up
// to MaxRetries times. The context's request id is forwarded as X-Request-Id
// for cross-service correlation, and the configured User-Agent is applied.
//
// Responses below 500 (other than 429) are returned to the caller unchanged,
// including 4xx; interpreting provider error bodies is the provider client's
// job. The caller owns closing the returned body. When retries are exhausted
// or the breaker is open, Do returns an AppError with an upstream_* code and
// no response.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if requestID := types.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Buffer the body once so every attempt can replay it.
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"failed to read request body for retry support",
				err,
			)
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error

	attempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if payload != nil {
			req.Body = io.NopCloser(bytes.NewReader(payload))
			req.ContentLength = int64(len(payload))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// The breaker counts 429 and 5xx as failures; everything else,
			// 4xx included, is a healthy upstream giving an answer.
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < attempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if isBreakerErr(err) {
			break
		}

		// Only 429 and 5xx loop again.
		if resp != nil && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return resp, nil
		}

		if attempt < attempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(lastResp, lastErr)
}

// computeBackoff picks the wait before the next attempt. A parseable
// Retry-After header wins (capped at MaxWait); otherwise exponential backoff
// with full jitter over [MinWait, min(MaxWait, MinWait*2^attempt)].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if wait, ok := retryAfterWait(resp, c.retryPolicy); ok {
		return wait
	}

	ceiling := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	if limit := float64(c.retryPolicy.MaxWait); ceiling > limit {
		ceiling = limit
	}

	floor := float64(c.retryPolicy.MinWait)
	if ceiling <= floor {
		return c.retryPolicy.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

// retryAfterWait extracts a usable wait from the Retry-After header, which
// may be either delta-seconds or an HTTP date.
func retryAfterWait(resp *http.Response, policy RetryPolicy) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		wait := time.Duration(seconds) * time.Second
		if wait > policy.MaxWait {
			wait = policy.MaxWait
		}
		return wait, true
	}

	if t, err := http.ParseTime(header); err == nil {
		wait := time.Until(t)
		if wait <= 0 {
			return policy.MinWait, true
		}
		if wait > policy.MaxWait {
			wait = policy.MaxWait
		}
		return wait, true
	}

	return 0, false
}

// isBreakerErr reports whether the breaker rejected the call without sending
// it. Retrying would only feed the open breaker, so Do stops immediately.
func isBreakerErr(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// mapError converts a terminal transport failure into the AppError the
// service layers expect.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if isBreakerErr(err) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				"upstream rate limit exceeded",
				err,
			)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d after retries", resp.StatusCode),
				err,
			)
		}
	}

	return types.NewAppError(
		types.ErrCodeUpstreamUnavailable,
		"upstream request failed",
		err,
	)
}
