package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// retryPolicy retries startup operations while dependencies come up.
type retryPolicy struct {
	attempts int
	base     time.Duration
	jitter   float64
}

// startupRetry gives three attempts with 1s and 2s waits between them, each
// jittered by up to 25%.
var startupRetry = retryPolicy{attempts: 3, base: time.Second, jitter: 0.25}

// backoff returns the wait after the given 0-indexed failed attempt.
func (p retryPolicy) backoff(attempt int) time.Duration {
	base := p.base << max(attempt, 0)
	spread := float64(base) * p.jitter * (2*rand.Float64() - 1) // #nosec G404 -- jitter only
	return base + time.Duration(spread)
}

// do runs fn until it succeeds, returns an error retryable rejects, or the
// attempts run out. A nil retryable retries every error.
func (p retryPolicy) do(ctx context.Context, what string, logger *slog.Logger, retryable func(error) bool, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == p.attempts-1 {
			break
		}

		wait := p.backoff(attempt)
		if logger != nil {
			logger.Warn(what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", p.attempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: canceled during retry: %w", what, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", what, p.attempts, err)
}

// connPatterns match driver messages for transient connection failures that
// do not surface as typed errors.
var connPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"connection timed out",
	"server closed the connection unexpectedly",
	"could not connect",
}

// isConnectionError reports whether err looks like a transient connection
// problem rather than a SQL error. Only connection errors are worth retrying.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}

	msg := err.Error()
	for _, p := range connPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
