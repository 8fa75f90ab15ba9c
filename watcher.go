package beacon

import "context"

// Watcher observes a feedback source for changes and emits raw bytes on a
// channel. Implementations should emit the current value immediately upon
// Watch() being called so the first update sees existing feedback.
type Watcher interface {
	// Watch begins observing the source and returns a channel that emits
	// raw bytes when changes occur. The channel is closed when the context
	// is canceled or an unrecoverable error occurs.
	Watch(ctx context.Context) (<-chan []byte, error)
}
