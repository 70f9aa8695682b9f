package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// withRetry makes up to Retry.MaxAttempts attempts and returns the first
// usable response or the last error.
func (c *Client) withRetry(ctx context.Context, req *http.Request, logger *slog.Logger) (*http.Response, error) {
	var err error

	for attempt := range c.cfg.Retry.MaxAttempts {
		if attempt > 0 {
			if werr := c.pause(ctx, attempt, logger); werr != nil {
				return nil, werr
			}

			if rerr := rewindBody(req); rerr != nil {
				return nil, rerr
			}
		}

		var resp *http.Response

		resp, err = c.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}

		if !isRetryableError(err) {
			return nil, err
		}

		logger.Debug("attempt failed", slog.Int("attempt", attempt+1), slog.Any("error", err))
	}

	return nil, err
}

// attempt sends req once. A 5xx response is drained, closed and returned as
// a *StatusError.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.cfg.AuthFunc != nil {
		if err := c.cfg.AuthFunc(req); err != nil {
			return nil, err
		}
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	return resp, nil
}

func (c *Client) pause(ctx context.Context, attempt int, logger *slog.Logger) error {
	wait := c.calculateBackoff(attempt)
	logger.Debug("retrying request", slog.Int("attempt", attempt+1), slog.Duration("backoff", wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rewindBody resets the body for another attempt.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}

	if req.GetBody == nil {
		return ErrBodyNotRewindable
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewinding request body: %w", err)
	}

	req.Body = body

	return nil
}

// calculateBackoff returns initial*multiplier^(attempt-1), capped at the max
// interval, with symmetric jitter of JitterFactor.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	r := c.cfg.Retry

	d := float64(r.InitialInterval) * math.Pow(r.Multiplier, float64(attempt-1))
	if r.MaxInterval > 0 {
		d = min(d, float64(r.MaxInterval))
	}

	if r.JitterFactor > 0 {
		d += d * r.JitterFactor * (rand.Float64()*2 - 1) //nolint:gosec // jitter only
	}

	return time.Duration(d)
}

// isRetryableError reports whether another attempt could succeed: server
// errors, timeouts and connection failures are, cancellation is not.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
