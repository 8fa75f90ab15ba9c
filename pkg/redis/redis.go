// Package redis provides a feedback watcher for a Redis key using keyspace
// notifications.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Watcher watches a Redis key holding experiment feedback. It implements
// beacon.Watcher; wrap it in beacon.NewWatchedFeedback to use it as a
// feedback source.
//
// Requires keyspace notifications:
//
//	CONFIG SET notify-keyspace-events KEA
type Watcher struct {
	client *redis.Client
	key    string
}

// New creates a Watcher for key.
func New(client *redis.Client, key string) *Watcher {
	return &Watcher{client: client, key: key}
}

// Key returns the watched key.
func (w *Watcher) Key() string {
	return w.key
}

// Watch emits the current value, if set, and then the new value after
// every write to the key. Deletes keep the last feedback in effect.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	channel := fmt.Sprintf("__keyspace@%d__:%s", w.client.Options().DB, w.key)
	pubsub := w.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to keyspace notifications: %w", err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer pubsub.Close()

		val, err := w.client.Get(ctx, w.key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return
		}
		if err == nil {
			select {
			case out <- val:
			case <-ctx.Done():
				return
			}
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				switch msg.Payload {
				case "set", "setex", "psetex", "setnx", "mset", "setrange", "append":
					val, err := w.client.Get(ctx, w.key).Bytes()
					if err != nil {
						continue
					}
					select {
					case out <- val:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}
