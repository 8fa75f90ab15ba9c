package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// KVWatcher watches one key of a JetStream KV bucket and emits its value
// every time it is put. It implements beacon.Watcher, so wrapping it in
// beacon.NewWatchedFeedback makes it a feedback source.
type KVWatcher struct {
	kv  jetstream.KeyValue
	key string
}

// NewKVWatcher creates a KVWatcher for key in kv.
func NewKVWatcher(kv jetstream.KeyValue, key string) *KVWatcher {
	return &KVWatcher{kv: kv, key: key}
}

// Watch emits the current value, if any, followed by every new value.
// Deletes and purges are skipped; the last feedback stays in effect.
func (w *KVWatcher) Watch(ctx context.Context) (<-chan []byte, error) {
	watcher, err := w.kv.Watch(ctx, w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to watch key %s: %w", w.key, err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer watcher.Stop() //nolint:errcheck // stop on a closed watcher is harmless

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				// nil marks the end of the initial values
				if entry == nil {
					continue
				}
				if op := entry.Operation(); op == jetstream.KeyValueDelete || op == jetstream.KeyValuePurge {
					continue
				}

				select {
				case out <- entry.Value():
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
