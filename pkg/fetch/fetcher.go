package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// HTTPFetcher performs a request with whatever retry policy the implementation carries.
type HTTPFetcher interface {
	FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error)
}

// RetryPolicy bounds the retry loop of a Fetcher
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// RetryPolicyFromConfig extracts the retry settings of a validated AppConfig.
func RetryPolicyFromConfig(cfg *config.AppConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialRetryDelay,
		MaxDelay:     cfg.MaxRetryDelay,
	}
}

// delay returns the exponential backoff before retry number attempt (1-based), with +/-10% jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(attempt-1)))
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	if spread := int64(d) / 5; spread > 0 {
		d += time.Duration(rand.Int63n(spread)) - d/10
	}
	return max(d, 0)
}

// Fetcher makes HTTP requests, retrying network errors, 5xx and 429 responses
type Fetcher struct {
	client *http.Client
	policy RetryPolicy
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, policy RetryPolicy, log *logrus.Entry) *Fetcher {
	return &Fetcher{client: client, policy: policy, log: log}
}

// FetchWithRetry executes req under ctx.
// On success the caller owns the response body. For non-retryable 4xx and
// other non-2xx statuses both the response and a wrapped error are returned,
// and the caller must close the body.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	reqLog := f.log.WithField("url", req.URL.String())
	var lastErr error

	for attempt := 0; attempt <= f.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", err, lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", err)
		}

		if attempt > 0 {
			wait := f.policy.delay(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": f.policy.MaxRetries, "delay": wait}).Warn("Retrying request...")
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			drain(resp)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", err)
			lastErr = err
			continue
		}

		status := resp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": status, "attempt": attempt})
		switch {
		case status >= 200 && status < 300:
			resLog.Debug("Successfully fetched")
			return resp, nil
		case status >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, status, resp.Status)
			drain(resp)
		case status == http.StatusTooManyRequests:
			resLog.Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, status, resp.Status)
			drain(resp)
		case status >= 400:
			resLog.Warn("Client error (4xx), not retrying")
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, status, resp.Status)
		default:
			resLog.Warnf("Non-retryable/unexpected status: %d", status)
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, status, resp.Status)
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", f.policy.MaxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
