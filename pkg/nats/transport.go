// Package nats provides the NATS transport between a beacon Coordinator and
// its peer, and a watcher for feedback stored in a JetStream KV bucket.
//
// Each peer has a request subject, "<prefix>.<peer>". The peer publishes its
// status code there as a NATS request; the coordinator answers on the
// request's reply inbox.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/zoobzio/beacon"
)

// Subject returns the request subject of peer.
func Subject(prefix, peer string) string {
	return prefix + "." + peer
}

// Transport implements beacon.Transport over NATS request/reply.
type Transport struct {
	nc     *nats.Conn
	prefix string

	mu      sync.Mutex
	subs    map[string]*nats.Subscription
	pending map[string]*nats.Msg
}

// NewTransport creates a Transport on nc using subjects under prefix.
func NewTransport(nc *nats.Conn, prefix string) *Transport {
	return &Transport{
		nc:      nc,
		prefix:  prefix,
		subs:    make(map[string]*nats.Subscription),
		pending: make(map[string]*nats.Msg),
	}
}

// Subscribe starts listening for requests from peers before the first
// Receive, so requests sent during startup are queued instead of dropped.
func (t *Transport) Subscribe(peers ...string) error {
	for _, peer := range peers {
		if _, err := t.subscription(peer); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) subscription(peer string) (*nats.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sub, ok := t.subs[peer]; ok {
		return sub, nil
	}
	sub, err := t.nc.SubscribeSync(Subject(t.prefix, peer))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Subject(t.prefix, peer), err)
	}
	t.subs[peer] = sub
	return sub, nil
}

// Receive waits for the next request from peer. The request stays pending
// until Send answers it.
func (t *Transport) Receive(ctx context.Context, peer string) (beacon.RequestCode, error) {
	sub, err := t.subscription(peer)
	if err != nil {
		return "", err
	}
	msg, err := sub.NextMsgWithContext(ctx)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	t.pending[peer] = msg
	t.mu.Unlock()

	return beacon.ParseRequestCode(msg.Data), nil
}

// Send answers the pending request of peer. A full outbound buffer while
// reconnecting is reported as beacon.ErrQueueFull so the caller can retry.
func (t *Transport) Send(ctx context.Context, peer string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	msg, ok := t.pending[peer]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("reply to %q: %w", peer, beacon.ErrNoPendingRequest)
	}

	err := msg.Respond(payload)
	switch {
	case err == nil:
	case errors.Is(err, nats.ErrReconnectBufExceeded):
		return fmt.Errorf("reply to %q: %w: %w", peer, beacon.ErrQueueFull, err)
	case errors.Is(err, nats.ErrMsgNoReply):
		err = fmt.Errorf("reply to %q: %w: %w", peer, beacon.ErrNoPendingRequest, err)
	default:
		return fmt.Errorf("reply to %q: %w", peer, err)
	}

	t.mu.Lock()
	if t.pending[peer] == msg {
		delete(t.pending, peer)
	}
	t.mu.Unlock()
	return err
}

// Close unsubscribes from every peer subject. It does not close the
// connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for peer, sub := range t.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
		delete(t.subs, peer)
	}
	clear(t.pending)
	return errors.Join(errs...)
}

var _ beacon.Transport = (*Transport)(nil)

// Request is the peer side: it sends code on the peer's subject and returns
// the coordinator's reply.
func Request(ctx context.Context, nc *nats.Conn, prefix, peer string, code beacon.RequestCode) ([]byte, error) {
	msg, err := nc.RequestWithContext(ctx, Subject(prefix, peer), []byte(code))
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", Subject(prefix, peer), err)
	}
	return msg.Data, nil
}
