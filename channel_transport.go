package beacon

import (
	"context"
	"fmt"
	"sync"
)

// DefaultReplyBuffer is the per-peer reply queue size of a ChannelTransport.
const DefaultReplyBuffer = 1

// ChannelTransport is an in-process Transport backed by channels.
// Useful for testing and for embedding the coordinator next to its peer.
//
// Each peer has an unbuffered request channel and a bounded reply queue.
// Send fails with ErrQueueFull when the reply queue is full.
type ChannelTransport struct {
	mu     sync.Mutex
	peers  map[string]*channelPeer
	buffer int
}

type channelPeer struct {
	requests chan RequestCode
	replies  chan []byte
}

// NewChannelTransport creates a ChannelTransport with reply queues of the
// given size. Sizes below 1 use DefaultReplyBuffer.
func NewChannelTransport(buffer int) *ChannelTransport {
	if buffer < 1 {
		buffer = DefaultReplyBuffer
	}
	return &ChannelTransport{
		peers:  make(map[string]*channelPeer),
		buffer: buffer,
	}
}

func (t *ChannelTransport) peer(id string) *channelPeer {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if !ok {
		p = &channelPeer{
			requests: make(chan RequestCode),
			replies:  make(chan []byte, t.buffer),
		}
		t.peers[id] = p
	}
	return p
}

// Receive blocks until peer sends a request.
func (t *ChannelTransport) Receive(ctx context.Context, peer string) (RequestCode, error) {
	p := t.peer(peer)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case code := <-p.requests:
		return code, nil
	}
}

// Send queues payload for peer without blocking.
func (t *ChannelTransport) Send(ctx context.Context, peer string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := t.peer(peer)
	select {
	case p.replies <- payload:
		return nil
	default:
		return fmt.Errorf("reply to %q: %w", peer, ErrQueueFull)
	}
}

// Peer returns the peer side of the transport for the given identity.
func (t *ChannelTransport) Peer(id string) *ChannelPeer {
	return &ChannelPeer{id: id, p: t.peer(id)}
}

// Ensure ChannelTransport implements Transport.
var _ Transport = (*ChannelTransport)(nil)

// ChannelPeer is the requesting side of a ChannelTransport.
type ChannelPeer struct {
	id string
	p  *channelPeer
}

// ID returns the peer identity.
func (c *ChannelPeer) ID() string {
	return c.id
}

// Request sends code and waits for the reply.
func (c *ChannelPeer) Request(ctx context.Context, code RequestCode) ([]byte, error) {
	if err := c.Send(ctx, code); err != nil {
		return nil, err
	}
	return c.Reply(ctx)
}

// Send delivers a request without waiting for the reply.
func (c *ChannelPeer) Send(ctx context.Context, code RequestCode) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.p.requests <- code:
		return nil
	}
}

// Reply waits for the next reply.
func (c *ChannelPeer) Reply(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data := <-c.p.replies:
		return data, nil
	}
}
