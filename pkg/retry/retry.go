// Package retry provides a small, library-free retry helper with
// exponential backoff. It generalizes the gas-price-escalation retry loop
// the teacher uses for transaction submission into a generic network-class
// backoff.
package retry

import (
	"context"
	"time"

	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

// Config parameterizes the backoff schedule. Zero-value fields fall back
// to DefaultConfig.
type Config struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// DefaultConfig returns the baseline schedule (maxRetries=3, backoff 1s..30s).
func DefaultConfig() Config {
	return Config{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: 30 * time.Second}
}

// ShouldRetry classifies an error as retryable. Defaults to
// relayerr.IsRetryable when nil is supplied to Do.
type ShouldRetry func(error) bool

// Do runs fn, retrying up to cfg.MaxRetries additional times while
// shouldRetry(err) holds, doubling the backoff delay each attempt up to
// cfg.MaxBackoff. It returns the last error if all attempts are exhausted,
// or immediately if ctx is cancelled (wrapped as relayerr.ErrShutdown).
func Do(ctx context.Context, cfg Config, shouldRetry ShouldRetry, fn func(context.Context) error) error {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	if shouldRetry == nil {
		shouldRetry = relayerr.IsRetryable
	}

	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return relayerr.ErrShutdown
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries || !shouldRetry(err) {
			return lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return relayerr.ErrShutdown
		case <-timer.C:
		}

		backoff *= 2
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return lastErr
}
