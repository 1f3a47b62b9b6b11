package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNetwork marks failures to reach a remote backend.
	ErrNetwork = errors.New("cache backend unreachable")

	// ErrCacheMiss is the internal signal for an absent key; Get reports it
	// as a miss rather than an error.
	ErrCacheMiss = errors.New("cache miss")
)

// transient marks an error worth another attempt.
type transient struct{ err error }

func (e transient) Error() string { return e.err.Error() }
func (e transient) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var t transient
	return errors.As(err, &t)
}

// backoff retries transient errors, doubling the delay after each attempt.
type backoff struct {
	attempts int
	delay    time.Duration
}

var defaultBackoff = backoff{attempts: 3, delay: 100 * time.Millisecond}

// do calls fn until it succeeds, fails permanently or runs out of
// attempts. The last transient error is returned unmarked.
func (b backoff) do(ctx context.Context, fn func() error) error {
	delay := b.delay
	attempts := max(b.attempts, 1)
	var err error
	for i := range attempts {
		if err = fn(); err == nil || !isTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	var t transient
	errors.As(err, &t)
	return t.err
}
