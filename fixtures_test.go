package beacon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// staticExperiment has no Update method.
type staticExperiment struct {
	Prototype
	Value  int `json:"value" yaml:"value"`
	Scans  int `json:"scans" yaml:"scans"`
	builds atomic.Int32
	fail   atomic.Bool
}

func (e *staticExperiment) Build(_ context.Context) error {
	if e.fail.Load() {
		return errors.New("build exploded")
	}
	e.builds.Add(1)
	e.Scans = e.Value * 10
	return nil
}

// feedbackExperiment takes its value from feedback holding a decimal number.
type feedbackExperiment struct {
	Prototype
	Value      int `json:"value" yaml:"value"`
	Scans      int `json:"scans" yaml:"scans"`
	builds     atomic.Int32
	updates    atomic.Int32
	failBuild  atomic.Bool
	panicBuild atomic.Bool
	failUpdate atomic.Bool

	// gate, when set, holds Build until it is closed. entered is signaled
	// once Build is waiting on it.
	gate    chan struct{}
	entered chan struct{}
}

func newFeedbackExperiment(value int) *feedbackExperiment {
	return &feedbackExperiment{Value: value}
}

func (e *feedbackExperiment) Build(_ context.Context) error {
	if e.gate != nil {
		select {
		case e.entered <- struct{}{}:
		default:
		}
		<-e.gate
	}
	if e.panicBuild.Load() {
		panic("build blew up")
	}
	if e.failBuild.Load() {
		return errors.New("build exploded")
	}
	e.builds.Add(1)
	e.Scans = e.Value * 10
	return nil
}

func (e *feedbackExperiment) Update(_ context.Context, feedback []byte) (bool, error) {
	e.updates.Add(1)
	if e.failUpdate.Load() {
		return false, errors.New("update exploded")
	}
	if len(feedback) == 0 {
		return false, nil
	}
	v, err := strconv.Atoi(string(feedback))
	if err != nil {
		return false, fmt.Errorf("bad feedback: %w", err)
	}
	if v == e.Value {
		return false, nil
	}
	e.Value = v
	return true, nil
}

// wireExperiment is what peers decode replies into.
type wireExperiment struct {
	Mode  SchedulingMode `json:"scheduling_mode" yaml:"scheduling_mode"`
	Value int            `json:"value" yaml:"value"`
	Scans int            `json:"scans" yaml:"scans"`
}

// feedbackValue is a FeedbackSource tests can change at will.
type feedbackValue struct {
	v atomic.Pointer[string]
}

func newFeedbackValue(s string) *feedbackValue {
	f := &feedbackValue{}
	f.set(s)
	return f
}

func (f *feedbackValue) set(s string) { f.v.Store(&s) }

func (f *feedbackValue) Fetch(_ context.Context) ([]byte, error) {
	return []byte(*f.v.Load()), nil
}

// flakyTransport fails sends while failing is set.
type flakyTransport struct {
	*ChannelTransport
	failing  atomic.Bool
	failures atomic.Int32
}

func (t *flakyTransport) Send(ctx context.Context, peer string, payload []byte) error {
	if t.failing.Load() {
		t.failures.Add(1)
		return fmt.Errorf("flaky: %w", ErrQueueFull)
	}
	return t.ChannelTransport.Send(ctx, peer, payload)
}

// startCoordinator runs c in the background until the test ends.
func startCoordinator(t *testing.T, c *Coordinator) {
	t.Helper()
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
}

// request sends code as peer and decodes the reply. A nil result is the
// unchanged sentinel.
func request(t *testing.T, peer *ChannelPeer, code RequestCode) *wireExperiment {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := peer.Request(ctx, code)
	if err != nil {
		t.Fatalf("Request(%s) error = %v", code, err)
	}
	exp, err := Decode[wireExperiment](JSONCodec{}, data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return exp
}

// waitFor polls a condition until it returns true or timeout is reached.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

// waitForRuns waits until the worker has completed n cycles.
func waitForRuns(t *testing.T, c *Coordinator, n uint64) {
	t.Helper()
	if !waitFor(t, 5*time.Second, func() bool { return c.WorkerRuns() >= n }) {
		t.Fatalf("timeout waiting for %d worker runs, got %d", n, c.WorkerRuns())
	}
}
