package beacon

import (
	"errors"
	"fmt"
)

// Loader errors.
var (
	// ErrModuleNotFound means no experiment module is registered under the name.
	ErrModuleNotFound = errors.New("experiment module not found")

	// ErrNoExperiment means the module registers nothing implementing Experiment.
	ErrNoExperiment = errors.New("module defines no experiment")

	// ErrAmbiguousExperiment means the module registers more than one Experiment.
	ErrAmbiguousExperiment = errors.New("module defines more than one experiment")
)

// Handle errors.
var (
	ErrModeAlreadySet = errors.New("scheduling mode already set")
	ErrModeAfterBuild = errors.New("scheduling mode set after first build")
	ErrModeNotSet     = errors.New("scheduling mode not set before build")
)

// Transport errors.
var (
	// ErrQueueFull is returned by transports whose outbound queue for a peer
	// cannot accept another message. Sends failing with it are retried.
	ErrQueueFull = errors.New("outbound queue full")

	// ErrNoPendingRequest is returned by Send when the peer has no request
	// awaiting a reply.
	ErrNoPendingRequest = errors.New("no pending request for peer")
)

// ErrAlreadyStarted is returned by Run when the coordinator is already running.
var ErrAlreadyStarted = errors.New("coordinator already started")

// LoadError reports a module that cannot be turned into exactly one
// experiment. It is fatal at startup.
type LoadError struct {
	Module string
	Count  int
	Err    error
}

func (e *LoadError) Error() string {
	switch {
	case errors.Is(e.Err, ErrModuleNotFound):
		return fmt.Sprintf("load %q: %v", e.Module, e.Err)
	default:
		return fmt.Sprintf("load %q: %v: found %d experiments, exactly 1 is required", e.Module, e.Err, e.Count)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// Fault operations.
const (
	OpBuild     = "build"
	OpUpdate    = "update"
	OpFeedback  = "feedback"
	OpSerialize = "serialize"
)

// Fault is an error raised inside the experiment or its collaborators during
// a single cycle. Faults are contained: the coordinator records them and
// keeps serving the last good snapshot.
type Fault struct {
	Op  string
	Err error
	// Panicked is set when Err was recovered from a panic.
	Panicked bool
}

func (f *Fault) Error() string {
	if f.Panicked {
		return fmt.Sprintf("%s panicked: %v", f.Op, f.Err)
	}
	return fmt.Sprintf("%s failed: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// SendError reports a reply that could not be delivered after every retry.
type SendError struct {
	Peer     string
	Attempts int
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %q failed after %d attempts: %v", e.Peer, e.Attempts, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// UnrecognizedRequestError reports a request code outside the protocol.
type UnrecognizedRequestError struct {
	Peer string
	Code RequestCode
}

func (e *UnrecognizedRequestError) Error() string {
	return fmt.Sprintf("unrecognized request code %q from %q", string(e.Code), e.Peer)
}
