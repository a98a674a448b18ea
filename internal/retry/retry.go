// Package retry runs calendar service calls with exponential backoff.
//
// Classification follows the service's HTTP status codes: client mistakes
// (400, 401, 403, 404) surface immediately, transient conditions (429 and
// 5xx) back off and try again, and errors without a status code are assumed
// transient. A Retry-After header from the service always wins over the
// computed backoff when it asks for a longer wait.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"
)

// Config tunes the backoff schedule.
type Config struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// BaseDelay seeds the exponential schedule.
	BaseDelay time.Duration
	// MaxDelay caps any single wait.
	MaxDelay time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// OnRetry, when set, is called before each repeated attempt with the
	// error that caused it. Used to count retries in metrics.
	OnRetry func(ctx context.Context, attempt int, err error)
}

// DefaultConfig matches the calendar service's published guidance.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	d.OnRetry = c.OnRetry
	if c.MaxRetries > 0 {
		d.MaxRetries = c.MaxRetries
	}
	if c.BaseDelay > 0 {
		d.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		d.MaxDelay = c.MaxDelay
	}
	if c.Multiplier > 1 {
		d.Multiplier = c.Multiplier
	}
	return d
}

// ExhaustedError wraps the final error after all attempts failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs fn until it succeeds, fails permanently, exhausts the attempt
// budget or the context ends. The zero Config means DefaultConfig.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	attempts := cfg.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		delay := backoff(cfg, attempt)
		if ra, ok := retryAfter(err); ok && ra > delay {
			delay = ra
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(ctx, attempt+1, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Retryable reports whether err is worth another attempt. Errors that carry
// no HTTP status are treated as transient network conditions.
func Retryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized,
		http.StatusForbidden, http.StatusNotFound:
		return false
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return apiErr.Code >= 500
	}
}

// IsQuotaExhausted reports whether err is a rate-limit response.
func IsQuotaExhausted(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

// backoff computes base*multiplier^attempt, capped, with jitter keeping the
// result in [50%, 100%] of the computed value.
func backoff(cfg Config, attempt int) time.Duration {
	d := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	d *= 0.5 + rand.Float64()*0.5
	return time.Duration(d)
}

// retryAfter extracts the Retry-After header, in seconds, from a service
// error.
func retryAfter(err error) (time.Duration, bool) {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Header == nil {
		return 0, false
	}
	raw := apiErr.Header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	secs, convErr := strconv.Atoi(raw)
	if convErr != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// RetryAfterHint exposes the service's requested wait for callers that pace
// work beyond a single call, such as the worker pool's quota gate.
func RetryAfterHint(err error) (time.Duration, bool) {
	return retryAfter(err)
}
