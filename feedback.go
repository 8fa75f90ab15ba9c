package beacon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// FeedbackSource supplies the data passed to Updater.Update. How the data is
// produced is up to the surrounding system; a nil result with a nil error
// means no feedback is available yet.
type FeedbackSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FeedbackFunc adapts a function into a FeedbackSource.
type FeedbackFunc func(ctx context.Context) ([]byte, error)

// Fetch calls f.
func (f FeedbackFunc) Fetch(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// starter is implemented by sources that need a background goroutine.
type starter interface {
	Start(ctx context.Context) error
}

// WatchedFeedback adapts a Watcher into a FeedbackSource that always returns
// the most recent value the watcher emitted.
type WatchedFeedback struct {
	watcher  Watcher
	latest   atomic.Pointer[[]byte]
	received atomic.Uint64

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// NewWatchedFeedback wraps w. Call Start before Fetch returns anything.
func NewWatchedFeedback(w Watcher) *WatchedFeedback {
	return &WatchedFeedback{watcher: w, done: make(chan struct{})}
}

// Start begins consuming the watcher until ctx is canceled or the watcher
// closes its channel. Subsequent calls are no-ops.
func (f *WatchedFeedback) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return nil
	}

	changes, err := f.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start feedback watcher: %w", err)
	}
	f.started = true

	go func() {
		defer close(f.done)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-changes:
				if !ok {
					return
				}
				f.latest.Store(&raw)
				f.received.Add(1)
			}
		}
	}()
	return nil
}

// Fetch returns a copy of the latest value, or nil if none has arrived.
func (f *WatchedFeedback) Fetch(_ context.Context) ([]byte, error) {
	ptr := f.latest.Load()
	if ptr == nil {
		return nil, nil
	}
	out := make([]byte, len(*ptr))
	copy(out, *ptr)
	return out, nil
}

// Received returns how many values the watcher has emitted.
func (f *WatchedFeedback) Received() uint64 {
	return f.received.Load()
}

// Done is closed once the watcher goroutine exits.
func (f *WatchedFeedback) Done() <-chan struct{} {
	return f.done
}

var (
	_ FeedbackSource = FeedbackFunc(nil)
	_ FeedbackSource = (*WatchedFeedback)(nil)
)
