package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first (0 = no retry)
	MaxRetries int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay caps every delay, including Retry-After values
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (2.0 for exponential)
	Multiplier float64

	// RespectRetryAfter uses the server's Retry-After value when present
	RespectRetryAfter bool

	// Retryable reports whether an error is worth retrying.
	// nil retries every error.
	Retryable func(error) bool

	// Logger receives one line per retry. nil disables retry logging.
	Logger *slog.Logger
}

// DefaultRetryConfig returns sensible defaults for retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          60 * time.Second,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

// RetryWithBackoffResult calls fn with exponential backoff until it succeeds,
// the retries are exhausted, or ctx is done. On failure the zero value of T
// is returned.
//
//	airlines, err := RetryWithBackoffResult(ctx, DefaultRetryConfig(), func() ([]Airline, error) {
//	    return c.fetch(ctx)
//	})
func RetryWithBackoffResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay = backoffDelay(cfg, attempt)
		if rle, ok := IsRateLimitError(err); ok && cfg.RespectRetryAfter && rle.RetryAfter > 0 {
			delay = rle.RetryAfter
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		if cfg.Logger != nil {
			cfg.Logger.Debug("retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.Any("error", err))
		}
	}

	if cfg.MaxRetries == 0 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}

// backoffDelay returns min(InitialDelay * Multiplier^attempt, MaxDelay).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	d := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return d
}
