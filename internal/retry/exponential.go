package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ExponentialBackoffStrategy retries recoverable failures, doubling the delay
// after every attempt up to maxDelay
type ExponentialBackoffStrategy struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// NewExponentialBackoffStrategy creates a new ExponentialBackoffStrategy
func NewExponentialBackoffStrategy(maxRetries int, initialDelay, maxDelay time.Duration) *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// Execute runs operation until it succeeds, fails with an unrecoverable error,
// runs out of attempts or ctx is done
func (s *ExponentialBackoffStrategy) Execute(ctx context.Context, name string, operation Operation) error {
	var lastErr error
	delay := s.initialDelay
	attempts := s.maxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Info("Retry: operation recovered", "operation", name, "attempt", attempt)
			}
			return nil
		}

		if !Recoverable(lastErr) {
			slog.Error("Retry: unrecoverable error",
				"operation", name,
				"attempt", attempt,
				"error", lastErr,
			)
			return lastErr
		}
		if attempt == attempts {
			break
		}

		slog.Warn("Retry: operation failed, backing off",
			"operation", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"retry_in", delay.String(),
			"error", lastErr,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry interrupted: %w", name, ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, s.maxDelay)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}

// Name returns the strategy name
func (s *ExponentialBackoffStrategy) Name() string {
	return "ExponentialBackoff"
}

// Postgres error classes worth another attempt
var recoverableSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P03": true, // cannot_connect_now
}

// Recoverable reports whether err is a transient connection or transaction
// failure. Context cancellation never is.
func Recoverable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception
		return recoverableSQLStates[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"unexpected eof",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
