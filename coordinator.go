package beacon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sourcegraph/conc/panics"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Defaults for a Coordinator.
const (
	DefaultPeer         = "control"
	DefaultSendAttempts = 5
	DefaultSendDelay    = 50 * time.Millisecond
	DefaultSendMaxDelay = 2 * time.Second
)

// Reasons attached to SnapshotSent.
const (
	reasonRequested    = "requested"
	reasonChanged      = "changed"
	reasonUnchanged    = "unchanged"
	reasonUnrecognized = "unrecognized"
)

// opSend and opRequest label faults outside the experiment.
const (
	opSend    = "send"
	opRequest = "request"
)

// Coordinator owns an experiment and serves snapshots of it to one peer.
//
// Each request from the peer gets exactly one reply: the full experiment
// when the peer asks for it or when the experiment changed since the last
// full reply, and the unchanged sentinel otherwise. When the experiment
// supports feedback, an update worker regenerates it in the background
// between requests.
type Coordinator struct {
	handle       *Handle
	mode         SchedulingMode
	transport    Transport
	peer         string
	feedback     FeedbackSource
	codec        Codec
	clock        clockz.Clock
	metrics      MetricsProvider
	onStop       func(State)
	sendAttempts uint
	sendDelay    time.Duration
	sendMaxDelay time.Duration
	faults       *faultRing

	snapshotter *Snapshotter
	worker      updateWorker
	state       atomic.Int32
	lastError   atomic.Pointer[error]
	replies     atomic.Uint64

	// mu guards the experiment, dirty and cached. It is never held while
	// waiting on the transport or the feedback source.
	mu     sync.Mutex
	dirty  bool
	cached *Snapshot

	runMu   sync.Mutex
	started bool
}

// New creates a Coordinator serving exp, attached to mode, over transport.
//
// Instance configuration uses chainable methods before calling Run():
//
//	c := beacon.New(exp, beacon.ModeCommon, transport).
//	    Peer("radar-control").
//	    Feedback(beacon.NewWatchedFeedback(beacon.NewFileWatcher(path))).
//	    SendPolicy(5, 50*time.Millisecond, 2*time.Second)
func New(exp Experiment, mode SchedulingMode, transport Transport) *Coordinator {
	c := &Coordinator{
		handle:       NewHandle(exp),
		mode:         mode,
		transport:    transport,
		peer:         DefaultPeer,
		codec:        JSONCodec{},
		clock:        clockz.RealClock,
		sendAttempts: DefaultSendAttempts,
		sendDelay:    DefaultSendDelay,
		sendMaxDelay: DefaultSendMaxDelay,
		dirty:        true,
	}
	c.state.Store(int32(StateLoading))
	return c
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Peer sets the identity of the peer requests are received from.
// Default: "control". Must be called before Run().
func (c *Coordinator) Peer(id string) *Coordinator {
	c.peer = id
	return c
}

// Feedback sets the source of data for Updater.Update. Without a source,
// or when the experiment has no Update method, no update worker runs.
// Must be called before Run().
func (c *Coordinator) Feedback(source FeedbackSource) *Coordinator {
	c.feedback = source
	return c
}

// Codec sets the snapshot wire format. Default: JSONCodec.
// Must be called before Run().
func (c *Coordinator) Codec(codec Codec) *Coordinator {
	c.codec = codec
	return c
}

// Clock sets a custom clock for timing and fault timestamps.
// Use this with clockz.FakeClock for deterministic tests.
// Must be called before Run().
func (c *Coordinator) Clock(clock clockz.Clock) *Coordinator {
	c.clock = clock
	return c
}

// Metrics sets a metrics provider for observability integration.
// Must be called before Run().
func (c *Coordinator) Metrics(provider MetricsProvider) *Coordinator {
	c.metrics = provider
	return c
}

// OnStop sets a callback invoked with the final state when Run returns.
// Must be called before Run().
func (c *Coordinator) OnStop(fn func(State)) *Coordinator {
	c.onStop = fn
	return c
}

// SendPolicy sets how replies are retried when the transport refuses them:
// up to attempts tries with exponential backoff starting at delay and capped
// at maxDelay. Attempts below 1 are treated as 1.
// Must be called before Run().
func (c *Coordinator) SendPolicy(attempts int, delay, maxDelay time.Duration) *Coordinator {
	if attempts < 1 {
		attempts = 1
	}
	c.sendAttempts = uint(attempts)
	c.sendDelay = delay
	c.sendMaxDelay = maxDelay
	return c
}

// ErrorHistorySize sets the number of recent faults to retain.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Run().
func (c *Coordinator) ErrorHistorySize(n int) *Coordinator {
	c.faults = newFaultRing(n)
	return c
}

// -----------------------------------------------------------------------------
// Introspection
// -----------------------------------------------------------------------------

// State returns the current state of the Coordinator.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// WorkerState returns the state of the update worker.
func (c *Coordinator) WorkerState() WorkerState {
	return c.worker.State()
}

// WorkerRuns returns how many update cycles have completed.
func (c *Coordinator) WorkerRuns() uint64 {
	return c.worker.runs.Load()
}

// UpdatesEnabled reports whether an update worker will run.
func (c *Coordinator) UpdatesEnabled() bool {
	return c.feedback != nil && !c.handle.Static()
}

// Dirty reports whether the next NOERROR request will receive a full snapshot.
func (c *Coordinator) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Current returns the last good full snapshot and true, or false if none
// has been built.
func (c *Coordinator) Current() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return Snapshot{}, false
	}
	return *c.cached, true
}

// Replies returns how many replies reached the transport.
func (c *Coordinator) Replies() uint64 {
	return c.replies.Load()
}

// LastError returns the last fault encountered, or nil if the last build
// succeeded.
func (c *Coordinator) LastError() error {
	ptr := c.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns the recent faults, oldest first.
// Returns nil if error history is not enabled (see ErrorHistorySize).
func (c *Coordinator) ErrorHistory() []error {
	incidents := c.faults.all()
	if incidents == nil {
		return nil
	}
	errs := make([]error, len(incidents))
	for i, in := range incidents {
		errs[i] = in.Err
	}
	return errs
}

// Incidents returns the recent faults with their timestamps, oldest first.
func (c *Coordinator) Incidents() []Incident {
	return c.faults.all()
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

// Run serves the peer until ctx is canceled or the transport fails to
// receive. It attaches the scheduling mode, starts the feedback source if
// it needs starting, then loops: receive, reply, maybe start the update
// worker. Before returning it waits for an in-flight update to finish.
//
// Faults inside a cycle never end the loop. Run returns nil on
// cancellation and an error for startup failures or a broken transport.
// Run can only be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runMu.Lock()
	if c.started {
		c.runMu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.runMu.Unlock()

	snapshotter, err := NewSnapshotter(c.codec)
	if err != nil {
		return err
	}
	c.snapshotter = snapshotter

	c.mu.Lock()
	err = c.handle.SetSchedulingMode(c.mode)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("attach scheduling mode: %w", err)
	}

	if s, ok := c.feedback.(starter); ok && c.UpdatesEnabled() {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}

	updates := "static"
	if c.UpdatesEnabled() {
		updates = "enabled"
	}
	capitan.Emit(ctx, CoordinatorStarted,
		KeyPeer.Field(c.peer),
		KeyMode.Field(c.mode.String()),
		KeyUpdates.Field(updates),
		KeyContentType.Field(c.codec.ContentType()),
	)

	defer func() {
		c.worker.wait()
		finalState := c.State()
		capitan.Emit(ctx, CoordinatorStopped,
			KeyState.Field(finalState.String()),
		)
		if c.onStop != nil {
			c.onStop(finalState)
		}
	}()

	for {
		code, err := c.transport.Receive(ctx, c.peer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive from %q: %w", c.peer, err)
		}

		c.serve(ctx, code)

		if c.UpdatesEnabled() {
			c.worker.tryStart(func() { c.update(ctx) })
		}
	}
}

// serve answers one request.
func (c *Coordinator) serve(ctx context.Context, code RequestCode) {
	capitan.Emit(ctx, RequestReceived,
		KeyPeer.Field(c.peer),
		KeyCode.Field(string(code)),
	)
	if c.metrics != nil {
		c.metrics.OnRequest(code)
	}

	snap, reason := c.respond(ctx, code)
	c.reply(ctx, snap, reason)
}

// respond decides the reply under the lock. Taking the lock is the point at
// which the request counts as dequeued: everything the worker finished
// before is reflected, nothing it starts after is.
func (c *Coordinator) respond(ctx context.Context, code RequestCode) (Snapshot, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch code {
	case CodeExpNeeded:
		if c.dirty || c.cached == nil {
			if snap, ok := c.refresh(ctx); ok {
				return snap, reasonRequested
			}
		}
		if c.cached != nil {
			return *c.cached, reasonRequested
		}
		return c.unchanged(), reasonRequested

	case CodeNoError:
		if !c.dirty {
			return c.unchanged(), reasonUnchanged
		}
		if snap, ok := c.refresh(ctx); ok {
			return snap, reasonChanged
		}
		return c.unchanged(), reasonUnchanged

	default:
		err := &UnrecognizedRequestError{Peer: c.peer, Code: code}
		c.record(opRequest, err)
		capitan.Emit(ctx, RequestUnrecognized,
			KeyPeer.Field(c.peer),
			KeyCode.Field(string(code)),
			KeyError.Field(err.Error()),
		)
		return c.unchanged(), reasonUnrecognized
	}
}

// refresh builds the experiment if it is not built, serializes it, caches
// the result and clears the dirty flag. Must be called with mu held.
func (c *Coordinator) refresh(ctx context.Context) (Snapshot, bool) {
	start := c.clock.Now()
	oldState := c.State()

	if !c.handle.Built() {
		if err := c.handle.Rebuild(ctx); err != nil {
			c.degrade(ctx, OpBuild, err)
			return Snapshot{}, false
		}
	}

	data, err := c.snapshotter.Serialize(c.handle.Experiment())
	if err != nil {
		c.degrade(ctx, OpSerialize, err)
		return Snapshot{}, false
	}

	snap := &Snapshot{
		Kind:       SnapshotFull,
		Payload:    data,
		Generation: c.handle.Builds(),
	}
	c.cached = snap
	c.dirty = false
	c.lastError.Store(nil)
	c.faults.clear()
	c.transitionState(ctx, oldState, StateHealthy)

	elapsed := c.clock.Since(start)
	capitan.Emit(ctx, SnapshotBuilt,
		KeyGeneration.Field(int(snap.Generation)), //nolint:gosec // build counts stay far below MaxInt
		KeyBytes.Field(len(data)),
		KeyDuration.Field(elapsed),
	)
	if c.metrics != nil {
		c.metrics.OnBuildSuccess(elapsed)
	}
	return *snap, true
}

func (c *Coordinator) unchanged() Snapshot {
	return Snapshot{Kind: SnapshotUnchanged, Payload: c.snapshotter.Unchanged()}
}

// reply hands snap to the transport, retrying with backoff. A reply that
// cannot be delivered is reported, and a lost full snapshot re-arms the
// dirty flag so the next NOERROR carries it again.
func (c *Coordinator) reply(ctx context.Context, snap Snapshot, reason string) {
	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return c.transport.Send(ctx, c.peer, snap.Payload)
		},
		retry.Context(ctx),
		retry.Attempts(c.sendAttempts),
		retry.Delay(c.sendDelay),
		retry.MaxDelay(c.sendMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded) &&
				!errors.Is(err, ErrNoPendingRequest)
		}),
		retry.OnRetry(func(n uint, err error) {
			capitan.Emit(ctx, SendRetried,
				KeyPeer.Field(c.peer),
				KeyAttempt.Field(int(n)+1), //nolint:gosec // bounded by sendAttempts
				KeyError.Field(err.Error()),
			)
		}),
	)
	if err != nil {
		sendErr := &SendError{Peer: c.peer, Attempts: attempts, Err: err}
		c.record(opSend, sendErr)
		capitan.Emit(ctx, SendFailed,
			KeyPeer.Field(c.peer),
			KeySnapshot.Field(snap.Kind.String()),
			KeyAttempt.Field(attempts),
			KeyError.Field(sendErr.Error()),
		)
		if snap.Kind == SnapshotFull {
			c.mu.Lock()
			c.dirty = true
			c.mu.Unlock()
		}
		return
	}

	c.replies.Add(1)
	capitan.Emit(ctx, SnapshotSent,
		KeyPeer.Field(c.peer),
		KeySnapshot.Field(snap.Kind.String()),
		KeyReason.Field(reason),
		KeyGeneration.Field(int(snap.Generation)), //nolint:gosec // build counts stay far below MaxInt
		KeyBytes.Field(len(snap.Payload)),
	)
	if c.metrics != nil {
		c.metrics.OnReply(snap.Kind, len(snap.Payload))
	}
}

// -----------------------------------------------------------------------------
// Update worker
// -----------------------------------------------------------------------------

// update is one worker cycle. Anything that escapes the handle's own panic
// capture, such as a panicking feedback source, is caught here.
func (c *Coordinator) update(ctx context.Context) {
	start := c.clock.Now()
	capitan.Emit(ctx, WorkerStarted)

	var changed bool
	var pc panics.Catcher
	pc.Try(func() { changed = c.cycle(ctx) })
	if r := pc.Recovered(); r != nil {
		fault := &Fault{Op: OpUpdate, Err: r.AsError(), Panicked: true}
		c.mu.Lock()
		c.degrade(ctx, OpUpdate, fault)
		c.mu.Unlock()
	}

	elapsed := c.clock.Since(start)
	capitan.Emit(ctx, WorkerFinished, KeyDuration.Field(elapsed))
	if c.metrics != nil {
		c.metrics.OnWorkerRun(changed, elapsed)
	}
}

// cycle fetches feedback, applies it and rebuilds when needed. It reports
// whether a new build is waiting to be served.
func (c *Coordinator) cycle(ctx context.Context) bool {
	data, err := c.feedback.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		fault := &Fault{Op: OpFeedback, Err: err}
		c.record(OpFeedback, fault)
		capitan.Emit(ctx, UpdateFailed,
			KeyOp.Field(OpFeedback),
			KeyError.Field(fault.Error()),
		)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	changed, err := c.handle.ApplyFeedback(ctx, data)
	if err != nil {
		c.degrade(ctx, OpUpdate, err)
		return false
	}
	if !changed && c.handle.Built() {
		return false
	}

	// Either feedback changed the experiment, or an earlier fault left it
	// unbuilt. In both cases the rebuilt experiment differs from the cache.
	if err := c.handle.Rebuild(ctx); err != nil {
		c.degrade(ctx, OpBuild, err)
		return false
	}
	c.dirty = true
	capitan.Emit(ctx, UpdateApplied,
		KeyGeneration.Field(int(c.handle.Builds())), //nolint:gosec // build counts stay far below MaxInt
	)
	return true
}

// -----------------------------------------------------------------------------
// Faults and state
// -----------------------------------------------------------------------------

// degrade records a fault that leaves the last good snapshot in service.
// Build and serialize faults emit RebuildFailed, the rest UpdateFailed.
// Must be called with mu held.
func (c *Coordinator) degrade(ctx context.Context, op string, err error) {
	oldState := c.State()
	c.record(op, err)
	c.transitionState(ctx, oldState, c.failureState())

	switch op {
	case OpBuild, OpSerialize:
		capitan.Emit(ctx, RebuildFailed, KeyOp.Field(op), KeyError.Field(err.Error()))
	default:
		capitan.Emit(ctx, UpdateFailed, KeyOp.Field(op), KeyError.Field(err.Error()))
	}
}

// record stores a fault atomically and adds it to the history.
func (c *Coordinator) record(op string, err error) {
	e := err
	c.lastError.Store(&e)
	c.faults.push(c.clock.Now(), err)
	if c.metrics != nil {
		c.metrics.OnFault(op)
	}
}

// failureState returns the state after a fault, based on whether a good
// snapshot exists. Must be called with mu held.
func (c *Coordinator) failureState() State {
	if c.cached == nil {
		return StateEmpty
	}
	return StateDegraded
}

// transitionState updates the state and emits a state change event if changed.
func (c *Coordinator) transitionState(ctx context.Context, oldState, newState State) {
	if oldState == newState {
		return
	}
	c.state.Store(int32(newState))
	capitan.Emit(ctx, CoordinatorStateChanged,
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	if c.metrics != nil {
		c.metrics.OnStateChange(oldState, newState)
	}
}
