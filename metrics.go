package beacon

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key coordinator events.
type MetricsProvider interface {
	// OnStateChange is called when the coordinator transitions between states.
	OnStateChange(from, to State)

	// OnRequest is called for every request dequeued from the transport.
	OnRequest(code RequestCode)

	// OnReply is called after a reply was handed to the transport.
	OnReply(kind SnapshotKind, size int)

	// OnBuildSuccess is called when a rebuild+serialize cycle succeeds.
	OnBuildSuccess(duration time.Duration)

	// OnFault is called when an operation faults. Op is one of the Op*
	// constants, "send" or "request".
	OnFault(op string)

	// OnWorkerRun is called when an update worker cycle completes.
	// Changed reports whether the experiment was rebuilt from feedback.
	OnWorkerRun(changed bool, duration time.Duration)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)            {}
func (NoOpMetricsProvider) OnRequest(_ RequestCode)             {}
func (NoOpMetricsProvider) OnReply(_ SnapshotKind, _ int)       {}
func (NoOpMetricsProvider) OnBuildSuccess(_ time.Duration)      {}
func (NoOpMetricsProvider) OnFault(_ string)                    {}
func (NoOpMetricsProvider) OnWorkerRun(_ bool, _ time.Duration) {}
