package morph

import (
	"context"
	"time"
)

// Bounds of the wait for a previous frame to finish.
const (
	MinWait      = 80 * time.Millisecond
	MaxWait      = 200 * time.Millisecond
	pollInterval = 2 * time.Millisecond
)

// Yield runs between the stages of a frame. Returning an error aborts the
// frame.
type Yield func(ctx context.Context) error

func defaultYield(ctx context.Context) error { return ctx.Err() }

// waitFor polls cond until it holds, the bound elapses or ctx is done. The
// bound is clamped to [MinWait, MaxWait]. It reports the final value of
// cond.
func waitFor(ctx context.Context, bound time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}
	bound = min(max(bound, MinWait), MaxWait)
	timer := time.NewTimer(bound)
	defer timer.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return cond()
		case <-timer.C:
			return cond()
		case <-tick.C:
			if cond() {
				return true
			}
		}
	}
}
