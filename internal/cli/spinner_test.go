package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerDrawsProgress(t *testing.T) {
	var out syncBuffer
	s := newSpinnerTo(context.Background(), &out, "Rendering frames")
	s.Progress(0, 49)
	s.Start()
	s.Progress(12, 49)
	time.Sleep(3 * spinnerInterval)
	s.Stop()

	if got := out.String(); !strings.Contains(got, "Rendering frames 12/49") {
		t.Errorf("output %q lacks the counter", got)
	}
	if s.Cancelled() {
		t.Error("a spinner stopped by its caller is not cancelled")
	}
}

func TestSpinnerProgressNeverGoesBack(t *testing.T) {
	s := newSpinnerTo(context.Background(), &syncBuffer{}, "Encoding")
	s.Progress(5, 10)
	s.Progress(3, 10)
	if got := s.status(); got != "Encoding 5/10" {
		t.Errorf("status = %q", got)
	}
}

func TestSpinnerWithoutTotal(t *testing.T) {
	s := newSpinnerTo(context.Background(), &syncBuffer{}, "Computing layouts...")
	if got := s.status(); got != "Computing layouts..." {
		t.Errorf("status = %q", got)
	}
}

func TestSpinnerCancelledByContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() (context.Context, context.CancelFunc)
	}{
		{"cancel", func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx, cancel
		}},
		{"timeout", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 20*time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()

			s := newSpinnerTo(ctx, &syncBuffer{}, "Waiting")
			s.Start()
			time.Sleep(60 * time.Millisecond)
			if !s.Cancelled() {
				t.Error("spinner should report cancellation")
			}
			s.Stop()
		})
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinnerTo(context.Background(), &syncBuffer{}, "Stopping")
	s.Start()
	s.Stop()
	s.Stop()
	s.StopWithSuccess("Done")
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	done := make(chan struct{})
	go func() {
		newSpinnerTo(context.Background(), &syncBuffer{}, "Idle").StopWithError("Failed")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a spinner that never started")
	}
}
