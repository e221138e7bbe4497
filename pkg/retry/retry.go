package retry

import (
	"context"
	"errors"
	"time"
)

// Policy defines a bounded retry loop with linearly increasing backoff.
// The delay before attempt n+1 is BaseDelay * n.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// terminalError marks an error for which retrying is known to be futile.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so that Policy.Do stops retrying and returns it as-is.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err was marked with Terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// Do runs op until it succeeds, returns a terminal error, the attempt budget
// is exhausted, or ctx is cancelled. The error from the last attempt is
// returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsTerminal(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		select {
		case <-time.After(p.BaseDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
