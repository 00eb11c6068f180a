package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryConfig bounds the retries of an operation that hit a version conflict.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the retry policy used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// withRetry runs fn until it succeeds, returns an error shouldRetry rejects,
// or the attempts run out. The last error is returned.
func withRetry(ctx context.Context, cfg RetryConfig, logger *log.Entry, operation, key string, shouldRetry func(error) bool, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.InitialDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.WithFields(log.Fields{
					"operation": operation,
					"key":       key,
					"attempt":   attempt,
				}).Info("Operation succeeded after retry")
			}
			return nil
		}
		if !shouldRetry(err) || attempt == attempts {
			break
		}

		logger.WithFields(log.Fields{
			"operation": operation,
			"key":       key,
			"attempt":   attempt,
			"delay":     delay,
			"error":     err,
		}).Warn("Operation failed, retrying")

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}
