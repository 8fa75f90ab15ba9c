// Package testing provides test utilities and helpers for beacon coordinator testing.
package testing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/beacon"
)

// TestExperiment is a standard experiment for testing coordinators. Its
// Build lays out Beams scans; feedback is a decimal beam count.
type TestExperiment struct {
	beacon.Prototype
	Beams int   `json:"beams" yaml:"beams"`
	Scans []int `json:"scans" yaml:"scans"`

	builds atomic.Int32
}

// Build implements beacon.Experiment.
func (e *TestExperiment) Build(_ context.Context) error {
	if e.Beams < 1 {
		return errors.New("beams must be at least 1")
	}
	e.Scans = make([]int, e.Beams)
	for i := range e.Scans {
		e.Scans[i] = i
	}
	e.builds.Add(1)
	return nil
}

// Update implements beacon.Updater. Empty feedback changes nothing.
func (e *TestExperiment) Update(_ context.Context, feedback []byte) (bool, error) {
	if len(feedback) == 0 {
		return false, nil
	}
	n := 0
	for _, c := range feedback {
		if c < '0' || c > '9' {
			return false, errors.New("feedback must be a beam count")
		}
		n = n*10 + int(c-'0')
	}
	if n == e.Beams {
		return false, nil
	}
	e.Beams = n
	return true, nil
}

// Builds returns the number of successful builds.
func (e *TestExperiment) Builds() int {
	return int(e.builds.Load())
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// WaitForState waits until the coordinator reaches the expected state or timeout occurs.
func WaitForState(t *testing.T, c *beacon.Coordinator, expected beacon.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return c.State() == expected
	})
}

// RequireState fails the test immediately if the coordinator is not in the expected state.
func RequireState(t *testing.T, c *beacon.Coordinator, expected beacon.State) {
	t.Helper()
	if got := c.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// NewTestCoordinator creates a coordinator serving exp over an in-process
// transport, runs it until the test ends, and returns it with the peer
// side of the transport.
func NewTestCoordinator(t *testing.T, exp beacon.Experiment, feedback beacon.FeedbackSource) (*beacon.Coordinator, *beacon.ChannelPeer) {
	t.Helper()
	transport := beacon.NewChannelTransport(1)
	c := beacon.New(exp, beacon.ModeCommon, transport)
	if feedback != nil {
		c.Feedback(feedback)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("coordinator did not stop")
		}
	})
	return c, transport.Peer(beacon.DefaultPeer)
}

// Request sends code from peer and decodes the reply into T. A nil result
// is the unchanged sentinel.
func Request[T any](t *testing.T, peer *beacon.ChannelPeer, code beacon.RequestCode) *T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := peer.Request(ctx, code)
	if err != nil {
		t.Fatalf("Request(%s) error = %v", code, err)
	}
	v, err := beacon.Decode[T](beacon.JSONCodec{}, data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return v
}
