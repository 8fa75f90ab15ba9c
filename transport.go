package beacon

import (
	"bytes"
	"context"
)

// RequestCode is the status a peer sends when asking for a snapshot.
type RequestCode string

// Request codes understood by the Coordinator.
const (
	// CodeExpNeeded asks for the complete experiment, e.g. after the peer
	// restarted.
	CodeExpNeeded RequestCode = "EXPNEEDED"

	// CodeNoError acknowledges the previous cycle and asks for the next one.
	CodeNoError RequestCode = "NOERROR"
)

// ParseRequestCode trims raw into a RequestCode. Unknown codes are returned
// as-is so the Coordinator can report them.
func ParseRequestCode(raw []byte) RequestCode {
	return RequestCode(bytes.TrimSpace(raw))
}

// Known reports whether c is part of the protocol.
func (c RequestCode) Known() bool {
	return c == CodeExpNeeded || c == CodeNoError
}

// Transport is the request/reply channel between the Coordinator and its
// peer. Peers are addressed by stable identities.
//
// Receive blocks until the peer sends its next request or ctx is done.
// Send delivers exactly one reply to the peer's outstanding request; it
// should return an error wrapping ErrQueueFull when the peer is not
// draining, so the send policy can retry.
type Transport interface {
	Receive(ctx context.Context, peer string) (RequestCode, error)
	Send(ctx context.Context, peer string, payload []byte) error
}
