package source

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// maxRetryAfter caps how long a server may ask us to wait.
const maxRetryAfter = 30 * time.Second

// RetryableError marks a failure worth another attempt. A positive After
// replaces the backoff delay before the next one.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry runs fn up to attempts times. The wait between attempts starts at
// delay and doubles, unless the failure names its own wait. Errors not
// wrapped in [RetryableError] end the loop at once.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	for i := 0; ; i++ {
		err := fn()
		var re *RetryableError
		if err == nil || !errors.As(err, &re) || i == attempts-1 {
			return err
		}

		wait := delay
		if re.After > 0 {
			wait = min(re.After, maxRetryAfter)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

// retryAfter reads a Retry-After header given in seconds. HTTP dates are
// not honoured and yield zero.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
