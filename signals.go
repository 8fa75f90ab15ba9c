package beacon

import "github.com/zoobzio/capitan"

// Coordinator lifecycle signals.
var (
	// CoordinatorStarted is emitted when a Coordinator begins serving its peer.
	CoordinatorStarted = capitan.NewSignal(
		"beacon.coordinator.started",
		"Coordinator serving started",
	)

	// CoordinatorStopped is emitted when a Coordinator stops serving.
	CoordinatorStopped = capitan.NewSignal(
		"beacon.coordinator.stopped",
		"Coordinator serving stopped",
	)

	// CoordinatorStateChanged is emitted when a Coordinator transitions between states.
	CoordinatorStateChanged = capitan.NewSignal(
		"beacon.coordinator.state.changed",
		"Coordinator state transition",
	)

	// ExperimentLoaded is emitted when a Registry resolves a module.
	ExperimentLoaded = capitan.NewSignal(
		"beacon.experiment.loaded",
		"Experiment resolved from module",
	)
)

// Request/reply signals.
var (
	// RequestReceived is emitted for every request dequeued from the transport.
	RequestReceived = capitan.NewSignal(
		"beacon.request.received",
		"Request received from peer",
	)

	// RequestUnrecognized is emitted for request codes outside the protocol.
	RequestUnrecognized = capitan.NewSignal(
		"beacon.request.unrecognized",
		"Unrecognized request code",
	)

	// SnapshotBuilt is emitted when a rebuild+serialize cycle succeeds.
	SnapshotBuilt = capitan.NewSignal(
		"beacon.snapshot.built",
		"Snapshot built and serialized",
	)

	// SnapshotSent is emitted when a reply reaches the transport.
	SnapshotSent = capitan.NewSignal(
		"beacon.snapshot.sent",
		"Snapshot sent to peer",
	)

	// SendRetried is emitted before each retry of a failed send.
	SendRetried = capitan.NewSignal(
		"beacon.send.retried",
		"Send to peer retried",
	)

	// SendFailed is emitted when a reply could not be delivered.
	SendFailed = capitan.NewSignal(
		"beacon.send.failed",
		"Send to peer failed",
	)
)

// Experiment mutation signals.
var (
	// RebuildFailed is emitted when the experiment's build step faults.
	RebuildFailed = capitan.NewSignal(
		"beacon.rebuild.failed",
		"Experiment rebuild failed",
	)

	// UpdateFailed is emitted when fetching or applying feedback faults.
	UpdateFailed = capitan.NewSignal(
		"beacon.update.failed",
		"Experiment update failed",
	)

	// UpdateApplied is emitted when feedback changed the experiment and the
	// rebuild succeeded.
	UpdateApplied = capitan.NewSignal(
		"beacon.update.applied",
		"Experiment updated from feedback",
	)

	// WorkerStarted is emitted when the update worker starts a cycle.
	WorkerStarted = capitan.NewSignal(
		"beacon.worker.started",
		"Update worker started",
	)

	// WorkerFinished is emitted when the update worker returns to idle.
	WorkerFinished = capitan.NewSignal(
		"beacon.worker.finished",
		"Update worker finished",
	)
)
