package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotReady is returned when a dependency never became ready
var ErrNotReady = errors.New("dependency not ready")

// WaitConfig holds configuration for readiness polling
type WaitConfig struct {
	MaxAttempts int           // Maximum number of probes
	Backoff     time.Duration // Wait between the first two probes
	Multiplier  float64       // Backoff multiplier
	MaxBackoff  time.Duration // Upper bound on a single wait
}

// DefaultWaitConfig returns a default readiness configuration
func DefaultWaitConfig() *WaitConfig {
	return &WaitConfig{
		MaxAttempts: 5,
		Backoff:     1 * time.Second,
		Multiplier:  2.0,
		MaxBackoff:  10 * time.Second,
	}
}

// ProbeFunc checks a dependency once
type ProbeFunc func(ctx context.Context) error

// WaitUntil probes fn until it succeeds, backing off between attempts.
// The returned error wraps both ErrNotReady and the last probe error.
func WaitUntil(ctx context.Context, fn ProbeFunc, config *WaitConfig, logger zerolog.Logger) error {
	if config == nil {
		config = DefaultWaitConfig()
	}
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := config.Backoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			logger.Debug().Int("attempt", attempt).Msg("Dependency ready")
			return nil
		}

		// Don't sleep after the last attempt
		if attempt == attempts {
			break
		}

		logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", backoff).
			Msg("Dependency not ready, waiting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * config.Multiplier)
			if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrNotReady, attempts, lastErr)
}
