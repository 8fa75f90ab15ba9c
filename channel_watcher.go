package beacon

import (
	"bytes"
	"context"
)

// ChannelWatcher feeds feedback produced in the same process to a
// Coordinator. Each value is copied as it is forwarded, so a producer may
// reuse its buffer once the send returns.
type ChannelWatcher struct {
	ch <-chan []byte
}

// NewChannelWatcher creates a ChannelWatcher reading from ch.
func NewChannelWatcher(ch <-chan []byte) *ChannelWatcher {
	return &ChannelWatcher{ch: ch}
}

// Watch forwards copies of the values received on the wrapped channel until
// ctx is canceled or the channel is closed. The returned channel is closed
// when forwarding stops.
func (w *ChannelWatcher) Watch(ctx context.Context) (<-chan []byte, error) {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-w.ch:
				if !ok {
					return
				}
				select {
				case out <- bytes.Clone(v):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ Watcher = (*ChannelWatcher)(nil)
